// Package worker drains the sync queue and hands results to a sink.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/kata/internal/adapters/mq/queue"
	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/pkg/logger"
	"github.com/okian/kata/pkg/metrics"
)

const (
	defaultJobTimeout   = 2 * time.Minute
	poolShutdownTimeout = 30 * time.Second
)

// Syncer performs one comprehensive sync.
type Syncer interface {
	GetComprehensiveUserData(ctx context.Context, username string) (model.SyncResult, error)
}

// Sink receives the outcome of every job.
type Sink interface {
	Succeeded(ctx context.Context, job queue.Job, res model.SyncResult)
	Failed(ctx context.Context, job queue.Job, err error)
}

// Releaser forgets an in-flight username.
type Releaser interface {
	Unrecord(ctx context.Context, key string)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs from a queue.
type Worker struct {
	queue  Queue
	syncer Syncer
	sink   Sink
	cfg    config

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// New creates a worker.
func New(q Queue, syncer Syncer, sink Sink, opts ...Option) *Worker {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.log = cfg.log.Named(cfg.name)
	return &Worker{
		queue:    q,
		syncer:   syncer,
		sink:     sink,
		cfg:      cfg,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run processes jobs until ctx is done, Shutdown is called or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := w.queue.Dequeue(runCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.cfg.log.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	metrics.AddWorkerBusy(1)
	defer metrics.AddWorkerBusy(-1)
	if w.cfg.releaser != nil {
		defer w.cfg.releaser.Unrecord(ctx, job.Username)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.jobTimeout)
	defer cancel()

	res, err := w.syncer.GetComprehensiveUserData(jobCtx, job.Username)
	if err != nil {
		w.cfg.log.Warn(ctx, "background sync failed",
			logger.String("job_id", job.ID.String()),
			logger.String("username", job.Username),
			logger.Error(err))
		w.sink.Failed(ctx, job, err)
		return
	}
	w.cfg.log.Debug(ctx, "background sync finished",
		logger.String("job_id", job.ID.String()),
		logger.String("username", job.Username),
		logger.Duration("queued_for", time.Since(job.EnqueuedAt)))
	w.sink.Succeeded(ctx, job, res)
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*Worker
	queue   Queue
	log     logger.Logger
}

// NewPool creates a pool. A non-positive count uses runtime.NumCPU.
func NewPool(count int, q Queue, syncer Syncer, sink Sink, opts ...Option) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool{
		workers: make([]*Worker, count),
		queue:   q,
		log:     cfg.log.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = New(q, syncer, sink, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.log.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.log.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
			}
		}
	}
	return firstErr
}
