// Package worker implements the Worker Pool: a fixed set of goroutines
// draining the bounded event queue, resolving each event's handler,
// running it through the Executor, and writing the terminal job row.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shevd/shevd/internal/executor"
	"github.com/shevd/shevd/internal/log"
	"github.com/shevd/shevd/internal/model"
)

// Store is the narrow Store slice the Worker Pool needs.
type Store interface {
	CreateJob(ctx context.Context, j *model.Job) error
	TransitionRunning(ctx context.Context, id string, startedAt time.Time) error
	CompleteJob(ctx context.Context, id string, status model.JobStatus, output, errMsg *string, finishedAt time.Time) error
}

// HandlerLookup resolves a handler by event type against the live,
// reload-swapped snapshot (internal/reload.Table).
type HandlerLookup interface {
	Lookup(eventType string) (*model.Handler, bool)
}

// Registry is the narrow Job Registry slice the Worker Pool needs.
type Registry interface {
	Register(jobID string) *executor.Cancel
	Unregister(jobID string)
	WasCancelled(jobID string) bool
}

// Notifier receives structural lifecycle notifications; nil is a valid
// no-op Notifier.
type Notifier interface {
	Publish(eventType string, data map[string]any)
}

// Pool is the fixed worker_count set of execution goroutines.
type Pool struct {
	store    Store
	handlers HandlerLookup
	registry Registry
	queue    *Queue
	notifier Notifier
	logger   *slog.Logger
	count    int

	wg sync.WaitGroup
}

// New builds a Pool of count workers over queue. handlers is consulted on
// every event instead of the Store directly, so a reload's atomic swap is
// visible to in-flight workers without a database round trip.
func New(store Store, handlers HandlerLookup, registry Registry, queue *Queue, notifier Notifier, logger *slog.Logger, count int) *Pool {
	if count <= 0 {
		count = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{store: store, handlers: handlers, registry: registry, queue: queue, notifier: notifier, logger: logger, count: count}
}

// Start launches count worker goroutines that run until ctx is cancelled
// or the queue is closed. It returns immediately.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-p.queue.Events():
			if !ok {
				return
			}
			p.handle(ctx, e)
		}
	}
}

func (p *Pool) handle(ctx context.Context, e model.Event) {
	logger := log.WithHandler(p.logger, e.EventType).With("event_id", e.ID)

	handler, ok := p.handlers.Lookup(e.EventType)
	if !ok {
		logger.Info("no handler for event, dropping")
		return
	}

	job := &model.Job{Event: e, HandlerID: handler.ID}
	if err := p.store.CreateJob(ctx, job); err != nil {
		logger.Error("failed to create job row", "error", err)
		return
	}
	logger = log.WithJob(logger, job.ID)

	cancel := p.registry.Register(job.ID)
	defer p.registry.Unregister(job.ID)

	p.notify("job.pending", map[string]any{"job_id": job.ID, "event_type": e.EventType})

	// A cancellation request for a job still in the queue races with
	// pickup: if the cancel sentinel already fired before we got here,
	// transition straight to Cancelled without spawning.
	if p.registry.WasCancelled(job.ID) {
		p.finish(job.ID, model.JobCancelled, nil, strPtr("cancelled by user"), time.Now().UTC())
		return
	}

	startedAt := time.Now().UTC()
	if err := p.store.TransitionRunning(ctx, job.ID, startedAt); err != nil {
		logger.Error("failed to transition job to running", "error", err)
		return
	}
	p.notify("job.started", map[string]any{"job_id": job.ID, "event_type": e.EventType})

	res := executor.Execute(ctx, handler, e.Context, cancel, logger)

	var output, errMsg *string
	if res.Output != "" {
		output = &res.Output
	}
	if res.Error != "" {
		errMsg = &res.Error
	}
	p.finish(job.ID, res.Status, output, errMsg, time.Now().UTC())
}

// finish persists the terminal state. A job force-cancelled by shutdown
// carries an already-Done ctx, but the terminal row still has to land, so
// persistence always runs on a fresh context rather than the job's own.
func (p *Pool) finish(jobID string, status model.JobStatus, output, errMsg *string, finishedAt time.Time) {
	persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := p.store.CompleteJob(persistCtx, jobID, status, output, errMsg, finishedAt); err != nil {
		p.logger.Error("failed to write terminal job state", "job_id", jobID, "error", err)
	}
	p.notify("job."+string(status), map[string]any{"job_id": jobID})
}

const persistTimeout = 5 * time.Second

func (p *Pool) notify(eventType string, data map[string]any) {
	if p.notifier == nil {
		return
	}
	p.notifier.Publish(eventType, data)
}

func strPtr(s string) *string { return &s }
