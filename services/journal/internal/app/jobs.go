package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dropjournal/pkg/queue"
)

// HandleJob runs one background job. It is the queue consumer's handler.
func (a *App) HandleJob(ctx context.Context, job queue.Job) error {
	start := time.Now()
	var err error
	switch job.Kind {
	case queue.KindEntryTags:
		err = a.AnalyzeEntryTags(ctx, job.SubjectID)
	case queue.KindConversationSummary:
		err = a.SummarizeConversation(ctx, job.SubjectID)
	default:
		slog.Warn("unknown job kind dropped", "job_id", job.ID, "kind", job.Kind)
		return nil
	}
	if err != nil {
		slog.Warn("job attempt failed", "job_id", job.ID, "kind", job.Kind, "subject_id", job.SubjectID, "attempt", job.Attempts, "err", err)
		return fmt.Errorf("%s %s: %w", job.Kind, job.SubjectID, err)
	}
	slog.Info("job done", "job_id", job.ID, "kind", job.Kind, "subject_id", job.SubjectID, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
