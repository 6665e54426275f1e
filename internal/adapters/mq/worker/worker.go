// Package worker runs queued sync jobs on a fixed pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/vitalsync/internal/adapters/mq/queue"
	"github.com/okian/vitalsync/pkg/logger"
	"github.com/okian/vitalsync/pkg/metrics"
)

// Default worker configuration constants.
const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Processor runs one sync job end to end.
type Processor interface {
	ProcessSync(ctx context.Context, job Job) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs using the provided processor.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string

	// busy is shared with the pool for the active/idle gauges
	busy *atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		busy:      new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		// Shutdown wins over a job that is already waiting.
		select {
		case <-w.shutdown:
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "sync job failed",
					logger.String("job_id", job.ID),
					logger.String("user_id", job.UserID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	w.busy.Add(1)
	start := time.Now()
	defer func() {
		w.busy.Add(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()
	if !job.EnqueuedAt.IsZero() {
		metrics.RecordQueueProcessingLatency(float64(start.Sub(job.EnqueuedAt).Milliseconds()))
	}

	if err := w.processor.ProcessSync(ctx, job); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "sync_error")
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	busy    atomic.Int64

	shutdown chan struct{}
	stopped  atomic.Bool

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker per CPU.
func NewPool(workerCount int, q Queue, p Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(q, p, WithName("worker-"+strconv.Itoa(i)))
		w.busy = &pool.busy
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns how many workers are running a job.
func (p *Pool) Active() int { return int(p.busy.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	active := p.Active()
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Shutdown closes the queue and waits for workers to finish their current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)
	for _, w := range p.workers {
		w.stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
