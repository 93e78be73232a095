// Package jobs runs snapshot exports off the request path. A single worker
// drains the queue so dumps land on disk in request order and never render
// concurrently against a mutating snapshot.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one requested snapshot dump.
type Job struct {
	Format    string
	Requested time.Time
	attempt   int
}

// Handler renders and persists one dump.
type Handler func(context.Context, Job) error

// Options tune retry behaviour; zero values get sensible defaults.
type Options struct {
	Buffer     int
	Retries    int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Dispatcher owns the export worker.
type Dispatcher struct {
	handler    Handler
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewDispatcher builds a dispatcher around the given handler.
func NewDispatcher(handler Handler, opts Options) *Dispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = 8
	}
	if opts.Retries <= 0 {
		opts.Retries = 2
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dispatcher{
		handler:    handler,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		jobs:       make(chan Job, opts.Buffer),
	}
}

// Start launches the worker. Safe to call once; Stop ends it.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.started = true
	d.wg.Add(1)
	go d.run()
	d.logger.Info("export dispatcher started")
}

// Stop cancels the worker and waits for it to finish the job in flight.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Info("export dispatcher stopped")
}

// Enqueue schedules a dump. Fails when the dispatcher is stopped or the
// backlog is full; callers surface that rather than block a request.
func (d *Dispatcher) Enqueue(job Job) error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return fmt.Errorf("export dispatcher not running")
	}

	if job.Requested.IsZero() {
		job.Requested = time.Now().UTC()
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return fmt.Errorf("export backlog full")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			d.process(job)
		}
	}
}

func (d *Dispatcher) process(job Job) {
	err := d.handler(d.ctx, job)
	if err == nil {
		d.logger.Info("export written",
			zap.String("format", job.Format),
			zap.Duration("waited", time.Since(job.Requested)))
		return
	}

	job.attempt++
	if job.attempt > d.retries {
		d.logger.Error("export abandoned",
			zap.String("format", job.Format),
			zap.Int("attempts", job.attempt),
			zap.Error(err))
		return
	}

	d.logger.Warn("export failed, retrying",
		zap.String("format", job.Format),
		zap.Int("attempt", job.attempt),
		zap.Error(err))

	timer := time.NewTimer(d.retryDelay)
	defer timer.Stop()
	select {
	case <-d.ctx.Done():
	case <-timer.C:
		d.process(job)
	}
}
