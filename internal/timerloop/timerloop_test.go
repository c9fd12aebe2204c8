package timerloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shevd/shevd/internal/model"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeDispatcher) Enqueue(_ context.Context, eventType, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", model.NewError(model.KindQueueFull, "queue is full")
	}
	f.calls = append(f.calls, eventType)
	return "ev", nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Universal property 2: over a window of k intervals with queue not
// full, approximately k events are produced per timer.
func TestTimerLoopFiresAtInterval(t *testing.T) {
	disp := &fakeDispatcher{}
	loop := New(disp, nil)

	timer := &model.Timer{ID: "t1", EventType: "tick", IntervalSecs: 1}
	loop.Start(context.Background(), []*model.Timer{timer})
	defer loop.Stop()

	time.Sleep(3500 * time.Millisecond)

	n := disp.count()
	if n < 2 || n > 4 {
		t.Fatalf("expected ~3 ticks in 3.5s, got %d", n)
	}
}

func TestTimerLoopStopsCleanly(t *testing.T) {
	disp := &fakeDispatcher{}
	loop := New(disp, nil)
	loop.Start(context.Background(), []*model.Timer{{ID: "t1", EventType: "tick", IntervalSecs: 1}})
	loop.Stop()
	// Stop must not hang and must be idempotent.
	loop.Stop()
}

func TestTimerLoopContinuesOnQueueFull(t *testing.T) {
	disp := &fakeDispatcher{fail: true}
	loop := New(disp, nil)
	loop.Start(context.Background(), []*model.Timer{{ID: "t1", EventType: "tick", IntervalSecs: 1}})
	defer loop.Stop()

	time.Sleep(1500 * time.Millisecond)
	if disp.count() != 0 {
		t.Fatalf("expected no successful enqueues while queue is full, got %d", disp.count())
	}
}
