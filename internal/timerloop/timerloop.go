// Package timerloop implements the Timer Loop: one logical clock per
// timer, emitting events at each timer's configured interval.
package timerloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shevd/shevd/internal/model"
)

// Dispatcher is the narrow Dispatcher slice the Timer Loop needs.
type Dispatcher interface {
	Enqueue(ctx context.Context, eventType, eventContext string) (string, error)
}

// Loop owns every live Timer's ticker goroutine. It is restarted wholesale
// by the Reload Coordinator.
type Loop struct {
	dispatcher Dispatcher
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an unstarted Loop.
func New(dispatcher Dispatcher, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{dispatcher: dispatcher, logger: logger}
}

// Start launches one goroutine per timer, each ticking at its own
// interval. Returns immediately; call Stop to tear down.
func (l *Loop) Start(ctx context.Context, timers []*model.Timer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	for _, t := range timers {
		l.wg.Add(1)
		go l.run(loopCtx, t)
	}
}

// Stop cancels every timer goroutine and waits for them to exit. Safe to
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

func (l *Loop) run(ctx context.Context, t *model.Timer) {
	defer l.wg.Done()

	interval := time.Duration(t.IntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := l.logger.With("event_type", t.EventType, "interval_secs", t.IntervalSecs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// QueueFull is observed, not fought: the tick is dropped and
			// the timer continues on schedule.
			if _, err := l.dispatcher.Enqueue(ctx, t.EventType, t.Context); err != nil {
				logger.Warn("timer tick dropped", "error", err)
			}
		}
	}
}
