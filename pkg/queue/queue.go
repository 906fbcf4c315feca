package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

// Job kinds dispatched by the journal service.
const (
	KindEntryTags           = "entry.tags"
	KindConversationSummary = "conversation.summary"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ErrQueueFull is returned by bounded in-process queues when no slot is free.
var ErrQueueFull = errors.New("queue full")

// Job is one unit of background work about a single subject (an entry or a
// conversation id).
type Job struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	SubjectID    string    `json:"subjectId"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler processes one job. Returning an error schedules a retry until the
// backend's retry budget is spent.
type Handler func(ctx context.Context, job Job) error

// Queue is a fire-and-forget job queue.
type Queue interface {
	Enqueue(ctx context.Context, kind, subjectID string) (Job, error)
	// Run consumes jobs with concurrency workers until ctx is canceled.
	Run(ctx context.Context, concurrency int, handler Handler) error
	Close() error
}

func newJob(id, kind, subjectID string) (Job, error) {
	kind = strings.TrimSpace(kind)
	subjectID = strings.TrimSpace(subjectID)
	if kind == "" {
		return Job{}, errors.New("job kind required")
	}
	if subjectID == "" {
		return Job{}, errors.New("job subject required")
	}
	now := time.Now().UTC()
	return Job{
		ID:        id,
		Kind:      kind,
		SubjectID: subjectID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// safeHandle runs handler and converts a panic into an error so one bad job
// cannot take down a worker.
func safeHandle(ctx context.Context, handler Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("queue handler panic", "job_id", job.ID, "kind", job.Kind, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
