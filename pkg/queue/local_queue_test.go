package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalQueueDeliversJobs(t *testing.T) {
	q := NewLocalQueue(LocalQueueConfig{Buffer: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[string]string{}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		_ = q.Run(ctx, 2, func(_ context.Context, j Job) error {
			mu.Lock()
			seen[j.SubjectID] = j.Kind
			mu.Unlock()
			wg.Done()
			return nil
		})
	}()

	if _, err := q.Enqueue(ctx, KindEntryTags, "e1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, KindConversationSummary, "c1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitGroupTimeout(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if seen["e1"] != KindEntryTags || seen["c1"] != KindConversationSummary {
		t.Fatalf("unexpected jobs: %+v", seen)
	}
}

func TestLocalQueueRetriesUntilBudget(t *testing.T) {
	q := NewLocalQueue(LocalQueueConfig{MaxRetries: 3})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := make(chan int, 10)
	go func() {
		_ = q.Run(ctx, 1, func(_ context.Context, j Job) error {
			attempts <- j.Attempts
			return errors.New("fail")
		})
	}()
	if _, err := q.Enqueue(ctx, KindEntryTags, "e1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	for want := 1; want <= 3; want++ {
		select {
		case got := <-attempts:
			if got != want {
				t.Fatalf("attempt = %d, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d not made", want)
		}
	}
	select {
	case got := <-attempts:
		t.Fatalf("unexpected extra attempt %d", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalQueueFullAndClosed(t *testing.T) {
	q := NewLocalQueue(LocalQueueConfig{Buffer: 1})
	ctx := context.Background()
	if _, err := q.Enqueue(ctx, KindEntryTags, "e1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, KindEntryTags, "e2"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := q.Enqueue(ctx, KindEntryTags, "e3"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull after close, got %v", err)
	}

	// Buffered job still drains after close.
	var got Job
	if err := q.Run(ctx, 1, func(_ context.Context, j Job) error {
		got = j
		return nil
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got.SubjectID != "e1" {
		t.Fatalf("expected drained job e1, got %+v", got)
	}
}

func TestSafeHandleRecoversPanic(t *testing.T) {
	err := safeHandle(context.Background(), func(context.Context, Job) error { panic("kaboom") }, Job{ID: "j"})
	if err == nil {
		t.Fatalf("expected error from panic")
	}
}

func waitGroupTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for jobs")
	}
}
