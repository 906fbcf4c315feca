package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dropjournal/pkg/ai"
	"dropjournal/pkg/domain"
	"dropjournal/pkg/queue"
	"dropjournal/pkg/session"
	"dropjournal/pkg/storage"
	"dropjournal/pkg/store"
)

const (
	defaultAITimeout        = 30 * time.Second
	defaultMaxMessages      = 10
	defaultSummaryThreshold = 10
	defaultExportURLTTL     = 15 * time.Minute
)

// Coach is the AI gateway used by the journal.
type Coach interface {
	GenerateResponse(ctx context.Context, prompt string, history []ai.Turn) (string, error)
	AnalyzeTags(ctx context.Context, text string) ([]ai.TagSuggestion, error)
	GenerateSummary(ctx context.Context, history []ai.Turn) (string, error)
}

// JobQueue accepts fire-and-forget background jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, kind, subjectID string) (queue.Job, error)
}

// Config holds runtime dependencies for the core application.
type Config struct {
	Store         store.Store
	Sessions      *session.Manager
	RefreshTokens session.RefreshStore
	Coach         Coach
	Jobs          JobQueue
	// Exports is optional; nil disables journal export.
	Exports storage.ObjectStore

	Location         *time.Location
	AITimeout        time.Duration
	MaxMessages      int
	SummaryThreshold int
	ExportURLTTL     time.Duration
	Now              func() time.Time
}

// App is the core application service wiring together storage, sessions,
// the AI coach and background jobs.
type App struct {
	store         store.Store
	sessions      *session.Manager
	refreshTokens session.RefreshStore
	coach         Coach
	jobs          JobQueue
	exports       storage.ObjectStore

	loc              *time.Location
	aiTimeout        time.Duration
	maxMessages      int
	summaryThreshold int
	exportURLTTL     time.Duration
	now              func() time.Time
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Sessions == nil || cfg.RefreshTokens == nil {
		return nil, errors.New("session manager and refresh store required")
	}
	if cfg.Coach == nil {
		return nil, errors.New("coach required")
	}
	if cfg.Jobs == nil {
		return nil, errors.New("job queue required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = defaultMaxMessages
	}
	if cfg.SummaryThreshold <= 0 {
		cfg.SummaryThreshold = defaultSummaryThreshold
	}
	if cfg.ExportURLTTL <= 0 {
		cfg.ExportURLTTL = defaultExportURLTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &App{
		store:            cfg.Store,
		sessions:         cfg.Sessions,
		refreshTokens:    cfg.RefreshTokens,
		coach:            cfg.Coach,
		jobs:             cfg.Jobs,
		exports:          cfg.Exports,
		loc:              cfg.Location,
		aiTimeout:        cfg.AITimeout,
		maxMessages:      cfg.MaxMessages,
		summaryThreshold: cfg.SummaryThreshold,
		exportURLTTL:     cfg.ExportURLTTL,
		now:              cfg.Now,
	}, nil
}

// Today returns the current calendar date in the configured time zone.
func (a *App) Today() string {
	return domain.FormatDate(a.now().In(a.loc))
}

// dispatch enqueues a background job. Failures are logged and swallowed so
// the primary write is never undone by a queue outage.
func (a *App) dispatch(ctx context.Context, kind, subjectID string) {
	job, err := a.jobs.Enqueue(context.WithoutCancel(ctx), kind, subjectID)
	if err != nil {
		slog.Warn("job dispatch failed", "kind", kind, "subject_id", subjectID, "err", err)
		return
	}
	slog.Debug("job dispatched", "kind", kind, "subject_id", subjectID, "job_id", job.ID)
}

func invalid(msg string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(msg, args...))
}
