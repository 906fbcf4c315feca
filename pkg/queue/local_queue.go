package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalQueue runs jobs in-process on a buffered channel. Jobs still buffered
// when the process stops are lost.
type LocalQueue struct {
	jobs       chan Job
	maxRetries int
	retryDelay time.Duration

	mu     sync.Mutex
	closed bool
}

type LocalQueueConfig struct {
	Buffer     int
	MaxRetries int
	RetryDelay time.Duration
}

func NewLocalQueue(cfg LocalQueueConfig) *LocalQueue {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay < 0 {
		retryDelay = 0
	}
	return &LocalQueue{
		jobs:       make(chan Job, buffer),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

func (q *LocalQueue) Enqueue(_ context.Context, kind, subjectID string) (Job, error) {
	job, err := newJob(uuid.NewString(), kind, subjectID)
	if err != nil {
		return Job{}, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Job{}, ErrQueueFull
	}
	select {
	case q.jobs <- job:
		return job, nil
	default:
		return Job{}, ErrQueueFull
	}
}

func (q *LocalQueue) Run(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-q.jobs:
					if !ok {
						return
					}
					q.process(ctx, job, handler)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (q *LocalQueue) process(ctx context.Context, job Job, handler Handler) {
	for {
		job.Attempts++
		job.Status = StatusProcessing
		job.UpdatedAt = time.Now().UTC()
		err := safeHandle(ctx, handler, job)
		if err == nil {
			return
		}
		if job.Attempts >= q.maxRetries {
			slog.Error("queue job failed", "job_id", job.ID, "kind", job.Kind, "subject_id", job.SubjectID, "attempts", job.Attempts, "err", err)
			return
		}
		if !sleepCtx(ctx, q.retryDelay) {
			return
		}
	}
}

// Close stops accepting jobs and lets workers drain the buffer.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
