package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPQueue publishes jobs to a durable RabbitMQ queue and consumes them with
// manual acknowledgements. Failed jobs are republished with an incremented
// attempt count until MaxRetries is reached.
type AMQPQueue struct {
	conn       *amqp.Connection
	queue      string
	maxRetries int
	retryDelay time.Duration

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

type AMQPQueueConfig struct {
	URL        string
	Queue      string
	MaxRetries int
	RetryDelay time.Duration
}

func NewAMQPQueue(cfg AMQPQueueConfig) (*AMQPQueue, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	name := strings.TrimSpace(cfg.Queue)
	if name == "" {
		return nil, errors.New("amqp queue name required")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", name, err)
	}
	return &AMQPQueue{
		conn:       conn,
		queue:      name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		pubCh:      ch,
	}, nil
}

func (q *AMQPQueue) Enqueue(ctx context.Context, kind, subjectID string) (Job, error) {
	job, err := newJob(uuid.NewString(), kind, subjectID)
	if err != nil {
		return Job{}, err
	}
	if err := q.publish(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (q *AMQPQueue) publish(ctx context.Context, job Job) error {
	msg, err := encodeJob(job)
	if err != nil {
		return err
	}
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	if err := q.pubCh.PublishWithContext(ctx, "", q.queue, false, false, msg); err != nil {
		return fmt.Errorf("amqp publish %s: %w", job.Kind, err)
	}
	return nil
}

func (q *AMQPQueue) Run(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp consumer channel: %w", err)
	}
	defer ch.Close()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("amqp qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
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
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					q.handleDelivery(ctx, d, handler)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	job, err := decodeAMQPJob(d.Body)
	if err != nil {
		slog.Warn("amqp drop malformed job", "err", err)
		_ = d.Ack(false)
		return
	}
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	err = safeHandle(ctx, handler, job)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	if job.Attempts >= q.maxRetries {
		slog.Error("queue job failed", "job_id", job.ID, "kind", job.Kind, "subject_id", job.SubjectID, "attempts", job.Attempts, "err", err)
		_ = d.Ack(false)
		return
	}
	if !sleepCtx(ctx, q.retryDelay) {
		// Shutting down: hand the delivery back to the broker.
		_ = d.Nack(false, true)
		return
	}
	job.Status = StatusQueued
	job.ErrorMessage = err.Error()
	if pubErr := q.publish(ctx, job); pubErr != nil {
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (q *AMQPQueue) Close() error {
	q.pubMu.Lock()
	_ = q.pubCh.Close()
	q.pubMu.Unlock()
	return q.conn.Close()
}

func encodeJob(job Job) (amqp.Publishing, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Type:         job.Kind,
		Timestamp:    job.CreatedAt,
		Body:         body,
	}, nil
}

func decodeAMQPJob(body []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return Job{}, err
	}
	if job.ID == "" || job.Kind == "" || job.SubjectID == "" {
		return Job{}, errors.New("job missing id, kind or subject")
	}
	return job, nil
}
