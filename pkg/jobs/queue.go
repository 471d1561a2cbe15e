package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBackoff = 30 * time.Second

// Job represents a queued background task.
type Job[T any] struct {
	ID       string
	Type     string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler[T any] func(context.Context, Job[T]) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	Processed int64
	Retried   int64
	Abandoned int64
	Buffered  int
}

// Queue is an in-memory job dispatcher backed by goroutines. Failed jobs are retried
// with exponential backoff; Stop drains whatever is still buffered.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	giveUp  func(Job[T], error)

	workers      int
	maxRetries   int
	retryDelay   time.Duration
	drainTimeout time.Duration
	logger       *zap.Logger

	jobs    chan Job[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool

	processed atomic.Int64
	retried   atomic.Int64
	abandoned atomic.Int64
}

// NewQueue builds a new queue with the provided handler.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue[T]{
		name:         name,
		handler:      handler,
		workers:      cfg.Workers,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger.With(zap.String("queue", name)),
		jobs:         make(chan Job[T], cfg.BufferSize),
	}
}

// OnGiveUp registers a callback for jobs that exhausted their retries or could not be
// drained at shutdown. Register it before Start.
func (q *Queue[T]) OnGiveUp(fn func(Job[T], error)) {
	q.giveUp = fn
}

// Start begins worker consumption. Safe to call once.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop refuses new jobs, waits for the workers and then drains the buffer inline,
// bounded by the drain timeout.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	drained := q.drain()
	q.logger.Info("queue stopped",
		zap.Int("drained", drained),
		zap.Int64("processed", q.processed.Load()),
		zap.Int64("abandoned", q.abandoned.Load()))
}

// Enqueue pushes a job onto the queue. It never blocks: a full buffer is reported as an error.
func (q *Queue[T]) Enqueue(job Job[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue %s full", q.name)
	}
}

// Stats returns the current counters.
func (q *Queue[T]) Stats() QueueStats {
	return QueueStats{
		Processed: q.processed.Load(),
		Retried:   q.retried.Load(),
		Abandoned: q.abandoned.Load(),
		Buffered:  len(q.jobs),
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			// Stop cancels q.ctx before draining; a job already picked up still finishes.
			q.run(context.WithoutCancel(q.ctx), job)
		}
	}
}

func (q *Queue[T]) run(ctx context.Context, job Job[T]) {
	if err := q.handler(ctx, job); err != nil {
		q.handleFailure(job, err)
		return
	}
	q.processed.Add(1)
}

func (q *Queue[T]) drain() int {
	ctx, cancel := context.WithTimeout(context.Background(), q.drainTimeout)
	defer cancel()
	drained := 0
	for {
		select {
		case job := <-q.jobs:
			if ctx.Err() != nil {
				q.abandon(job, ctx.Err())
				continue
			}
			if err := q.handler(ctx, job); err != nil {
				q.abandon(job, err)
				continue
			}
			q.processed.Add(1)
			drained++
		default:
			return drained
		}
	}
}

func (q *Queue[T]) handleFailure(job Job[T], err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.abandon(job, err)
		return
	}
	q.retried.Add(1)
	delay := backoff(q.retryDelay, job.Attempt)
	q.logger.Warn("job failed, retrying",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	q.wg.Add(1)
	go func(j Job[T]) {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.requeue(j)
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.abandon(j, err)
			}
		}
	}(job)
}

// requeue hands a job waiting for its retry back to the buffer so drain picks it up.
func (q *Queue[T]) requeue(job Job[T]) {
	select {
	case q.jobs <- job:
	default:
		q.abandon(job, fmt.Errorf("queue %s full while stopping", q.name))
	}
}

func (q *Queue[T]) abandon(job Job[T], err error) {
	q.abandoned.Add(1)
	q.logger.Error("job abandoned",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(err))
	if q.giveUp != nil {
		q.giveUp(job, err)
	}
}

func backoff(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt && delay < maxBackoff; i++ {
		delay *= 2
	}
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
