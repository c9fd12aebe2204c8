// Package schedloop implements the Schedule Loop: a single wait over a
// min-heap of schedules ordered by scheduled_time, firing the earliest
// due instant and re-arming or deleting it afterwards.
package schedloop

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shevd/shevd/internal/model"
)

// Dispatcher is the narrow Dispatcher slice the Schedule Loop needs.
type Dispatcher interface {
	Enqueue(ctx context.Context, eventType, eventContext string) (string, error)
}

// Store is the narrow Store slice the Schedule Loop needs to re-arm or
// remove a schedule after it fires.
type Store interface {
	AdvanceSchedule(ctx context.Context, id string, next time.Time) error
	DeleteScheduleByID(ctx context.Context, id string) error
}

// Loop owns the live schedule set. Restarted wholesale by the Reload
// Coordinator.
type Loop struct {
	dispatcher Dispatcher
	store      Store
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an unstarted Loop.
func New(dispatcher Dispatcher, store Store, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{dispatcher: dispatcher, store: store, logger: logger}
}

// Start launches the single scheduling goroutine over schedules. Returns
// immediately; call Stop to tear down.
func (l *Loop) Start(ctx context.Context, schedules []*model.Schedule) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	h := newHeap(schedules)
	l.wg.Add(1)
	go l.run(loopCtx, h)
}

// Stop cancels the scheduling goroutine and waits for it to exit. Safe to
// call on a Loop that was never started.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()
}

func (l *Loop) run(ctx context.Context, h *scheduleHeap) {
	defer l.wg.Done()

	for {
		if h.Len() == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Hour):
				// Nothing scheduled; re-check periodically in case this
				// Loop instance is kept alive across an empty window
				// (normally the Reload Coordinator restarts it instead).
				continue
			}
		}

		next := (*h)[0]
		wait := time.Until(next.ScheduledTime)
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			heap.Pop(h)
			l.fire(ctx, next, h)
		}
	}
}

func (l *Loop) fire(ctx context.Context, sc *model.Schedule, h *scheduleHeap) {
	logger := l.logger.With("event_type", sc.EventType, "schedule_id", sc.ID)

	if _, err := l.dispatcher.Enqueue(ctx, sc.EventType, sc.Context); err != nil {
		logger.Warn("schedule fire dropped", "error", err)
	}

	if !sc.Periodic {
		if err := l.store.DeleteScheduleByID(ctx, sc.ID); err != nil {
			logger.Error("failed to delete fired one-shot schedule", "error", err)
		}
		return
	}

	next := sc.ScheduledTime.Add(24 * time.Hour)
	now := time.Now()
	for !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	if err := l.store.AdvanceSchedule(ctx, sc.ID, next); err != nil {
		logger.Error("failed to advance periodic schedule", "error", err)
		return
	}
	sc.ScheduledTime = next
	heap.Push(h, sc)
}

// scheduleHeap orders by ScheduledTime ascending, then ID ascending for
// schedules sharing the same instant.
type scheduleHeap []*model.Schedule

func newHeap(schedules []*model.Schedule) *scheduleHeap {
	h := make(scheduleHeap, len(schedules))
	copy(h, schedules)
	heap.Init(&h)
	return &h
}

func (h scheduleHeap) Len() int { return len(h) }

func (h scheduleHeap) Less(i, j int) bool {
	if h[i].ScheduledTime.Equal(h[j].ScheduledTime) {
		return h[i].ID < h[j].ID
	}
	return h[i].ScheduledTime.Before(h[j].ScheduledTime)
}

func (h scheduleHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scheduleHeap) Push(x any) {
	*h = append(*h, x.(*model.Schedule))
}

func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
