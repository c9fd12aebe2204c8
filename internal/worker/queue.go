package worker

import "github.com/shevd/shevd/internal/model"

// Queue is the bounded channel-backed event queue: multiple producers
// (HTTP, Timer Loop, Schedule Loop) publish non-blockingly, worker_count
// consumers drain it FIFO.
type Queue struct {
	ch chan model.Event
}

// NewQueue allocates a queue of the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan model.Event, capacity)}
}

// TryPublish attempts a non-blocking send. Returns false if the queue is
// at capacity; callers never wait for room.
func (q *Queue) TryPublish(e model.Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		return false
	}
}

// Events exposes the receive side for workers to range over.
func (q *Queue) Events() <-chan model.Event {
	return q.ch
}

// Close stops accepting further sends; safe to call once during shutdown.
func (q *Queue) Close() {
	close(q.ch)
}
