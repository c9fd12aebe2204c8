package schedloop

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
}

func (f *fakeDispatcher) Enqueue(_ context.Context, eventType, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventType)
	return "ev", nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	mu       sync.Mutex
	deleted  []string
	advanced map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{advanced: map[string]time.Time{}}
}

func (f *fakeStore) AdvanceSchedule(_ context.Context, id string, next time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanced[id] = next
	return nil
}

func (f *fakeStore) DeleteScheduleByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

// S4: a one-shot schedule in the past fires exactly once and is deleted.
func TestScheduleLoopFireOnceThenDelete(t *testing.T) {
	disp := &fakeDispatcher{}
	st := newFakeStore()
	loop := New(disp, st, nil)

	sc := &model.Schedule{ID: "s1", EventType: "once", ScheduledTime: time.Now().Add(-10 * time.Second), Periodic: false}
	loop.Start(context.Background(), []*model.Schedule{sc})
	defer loop.Stop()

	time.Sleep(300 * time.Millisecond)

	if disp.count() != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", disp.count())
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.deleted) != 1 || st.deleted[0] != "s1" {
		t.Fatalf("expected schedule s1 deleted, got %v", st.deleted)
	}
}

// S5 / property 4: a periodic schedule advances scheduled_time by 24h
// after firing.
func TestScheduleLoopPeriodicAdvances24h(t *testing.T) {
	disp := &fakeDispatcher{}
	st := newFakeStore()
	loop := New(disp, st, nil)

	fireAt := time.Now().Add(200 * time.Millisecond)
	sc := &model.Schedule{ID: "s2", EventType: "daily", ScheduledTime: fireAt, Periodic: true}
	loop.Start(context.Background(), []*model.Schedule{sc})
	defer loop.Stop()

	time.Sleep(1 * time.Second)

	if disp.count() != 1 {
		t.Fatalf("expected exactly 1 fire within the window, got %d", disp.count())
	}
	st.mu.Lock()
	next, ok := st.advanced["s2"]
	st.mu.Unlock()
	if !ok {
		t.Fatal("expected scheduled_time to be advanced")
	}
	want := fireAt.Add(24 * time.Hour)
	if diff := next.Sub(want); diff < -time.Second || diff > time.Second {
		t.Fatalf("advanced time = %v, want ~%v", next, want)
	}
}

// Far-past periodic schedule: advances repeatedly to the first future
// 24h-multiple, firing only once rather than replaying every missed tick.
func TestScheduleLoopFarPastPeriodicCatchesUpOnce(t *testing.T) {
	disp := &fakeDispatcher{}
	st := newFakeStore()
	loop := New(disp, st, nil)

	longAgo := time.Now().Add(-365 * 24 * time.Hour)
	sc := &model.Schedule{ID: "s3", EventType: "ancient", ScheduledTime: longAgo, Periodic: true}
	loop.Start(context.Background(), []*model.Schedule{sc})
	defer loop.Stop()

	time.Sleep(300 * time.Millisecond)

	if disp.count() != 1 {
		t.Fatalf("expected exactly 1 fire for a far-past periodic schedule, got %d", disp.count())
	}
	st.mu.Lock()
	next := st.advanced["s3"]
	st.mu.Unlock()
	if !next.After(time.Now().Add(-time.Minute)) {
		t.Fatalf("advanced time %v should be in the future", next)
	}
}

// Multiple schedules sharing the same instant fire in ascending id order.
func TestScheduleLoopTiesOrderedByID(t *testing.T) {
	disp := &fakeDispatcher{}
	st := newFakeStore()
	loop := New(disp, st, nil)

	same := time.Now().Add(-time.Second)
	scB := &model.Schedule{ID: "b", EventType: "second", ScheduledTime: same, Periodic: false}
	scA := &model.Schedule{ID: "a", EventType: "first", ScheduledTime: same, Periodic: false}
	loop.Start(context.Background(), []*model.Schedule{scB, scA})
	defer loop.Stop()

	time.Sleep(300 * time.Millisecond)

	disp.mu.Lock()
	defer disp.mu.Unlock()
	if len(disp.calls) != 2 || disp.calls[0] != "first" || disp.calls[1] != "second" {
		t.Fatalf("expected ascending-id fire order [first second], got %v", disp.calls)
	}
}
