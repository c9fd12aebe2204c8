package reload

import (
	"context"
	"sync"
	"testing"

	"github.com/shevd/shevd/internal/model"
)

type fakeStore struct {
	handlers  []*model.Handler
	timers    []*model.Timer
	schedules []*model.Schedule
}

func (f *fakeStore) ListHandlers(context.Context) ([]*model.Handler, error)   { return f.handlers, nil }
func (f *fakeStore) ListTimers(context.Context) ([]*model.Timer, error)       { return f.timers, nil }
func (f *fakeStore) ListSchedules(context.Context) ([]*model.Schedule, error) { return f.schedules, nil }

type fakeLoop struct {
	mu       sync.Mutex
	starts   int
	stops    int
	lastSize int
}

func (f *fakeLoop) Start(_ context.Context, items []*model.Timer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.lastSize = len(items)
}
func (f *fakeLoop) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

type fakeSchedLoop struct {
	mu       sync.Mutex
	starts   int
	stops    int
	lastSize int
}

func (f *fakeSchedLoop) Start(_ context.Context, items []*model.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.lastSize = len(items)
}
func (f *fakeSchedLoop) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

// Universal property 8: reload swaps the handler table, timers and
// schedules atomically from the caller's perspective, and reports counts.
func TestReloadSwapsTableAndRestartsLoops(t *testing.T) {
	st := &fakeStore{
		handlers:  []*model.Handler{{ID: "h1", EventType: "greet"}},
		timers:    []*model.Timer{{ID: "t1", EventType: "tick", IntervalSecs: 5}},
		schedules: []*model.Schedule{{ID: "s1", EventType: "daily"}},
	}
	table := NewTable(nil)
	timer := &fakeLoop{}
	sched := &fakeSchedLoop{}

	c := New(st, table, timer, sched, context.Background(), nil)
	res, err := c.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if res.HandlersLoaded != 1 || res.TimersLoaded != 1 || res.SchedulesLoaded != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, ok := table.Lookup("greet"); !ok {
		t.Fatal("expected table to contain the reloaded handler")
	}
	if timer.starts != 1 || timer.stops != 1 || timer.lastSize != 1 {
		t.Fatalf("timer loop not restarted as expected: %+v", timer)
	}
	if sched.starts != 1 || sched.stops != 1 || sched.lastSize != 1 {
		t.Fatalf("schedule loop not restarted as expected: %+v", sched)
	}
}

// A reload with an empty Store clears the table rather than leaving stale
// handlers reachable.
func TestReloadWithEmptyStoreClearsTable(t *testing.T) {
	table := NewTable([]*model.Handler{{ID: "h1", EventType: "stale"}})
	st := &fakeStore{}
	c := New(st, table, &fakeLoop{}, &fakeSchedLoop{}, context.Background(), nil)

	if _, err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, ok := table.Lookup("stale"); ok {
		t.Fatal("expected stale handler to be gone after reload")
	}
}
