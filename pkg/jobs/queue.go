package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Remover deletes a stored artifact by its reference.
type Remover interface {
	Delete(ref string) error
}

// Job is one pending artifact removal.
type Job struct {
	Ref      string
	Attempt  int
	Enqueued time.Time
}

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// CleanupQueue removes orphaned signature artifacts in the background,
// retrying failed deletions.
type CleanupQueue struct {
	remover Remover

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewCleanupQueue builds a queue that deletes through remover.
func NewCleanupQueue(remover Remover, cfg QueueConfig) *CleanupQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &CleanupQueue{
		remover:    remover,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *CleanupQueue) Start(ctx context.Context) {
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
	q.logger.Sugar().Infow("artifact cleanup started", "workers", q.workers)
}

// Stop cancels workers, waits for them to exit and makes one final attempt
// at every job still buffered.
func (q *CleanupQueue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()

	for {
		select {
		case job := <-q.jobs:
			if err := q.remover.Delete(job.Ref); err != nil {
				q.logger.Sugar().Errorw("artifact left behind", "file_ref", job.Ref, "error", err)
			}
		default:
			q.logger.Sugar().Infow("artifact cleanup stopped")
			return
		}
	}
}

// Enqueue schedules refs for removal. Empty refs are ignored.
func (q *CleanupQueue) Enqueue(refs ...string) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("artifact cleanup not started")
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := q.push(ctx, Job{Ref: ref, Enqueued: time.Now().UTC()}); err != nil {
			return err
		}
	}
	return nil
}

func (q *CleanupQueue) push(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return fmt.Errorf("artifact cleanup stopped: %w", ctx.Err())
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("artifact cleanup stopped: %w", ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *CleanupQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.remover.Delete(job.Ref); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *CleanupQueue) handleFailure(job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("artifact removal exceeded retries", "file_ref", job.Ref, "error", err)
		return
	}
	q.logger.Sugar().Warnw("artifact removal failed, retrying", "file_ref", job.Ref, "attempt", job.Attempt, "error", err)

	go func(j Job) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.push(q.ctx, j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue artifact removal", "file_ref", j.Ref, "error", err)
			}
		}
	}(job)
}
