// Package dispatcher implements the single enqueue path taken by every
// trigger: HTTP, Timer Loop, and Schedule Loop all call Dispatcher.Enqueue.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shevd/shevd/internal/model"
	"github.com/zeebo/blake3"
)

// EventStore is the narrow Store slice the Dispatcher needs.
type EventStore interface {
	InsertEvent(ctx context.Context, e *model.Event) error
	DeleteEvent(ctx context.Context, id string) error
}

// Queue is the bounded, multi-producer multi-consumer event queue
// published to by Enqueue and drained by the Worker Pool. Full queue
// fails fast: there is no blocking on capacity.
type Queue interface {
	// TryPublish attempts a non-blocking send; ok is false if the queue
	// is at capacity.
	TryPublish(e model.Event) (ok bool)
}

// Dispatcher is the entry point enqueue(event_type, context).
type Dispatcher struct {
	store     EventStore
	queue     Queue
	logger    *slog.Logger
	dedupeTTL time.Duration

	mu     sync.Mutex
	recent map[string]dedupeEntry
}

type dedupeEntry struct {
	eventID string
	expiry  time.Time
}

// New builds a Dispatcher. dedupeTTL of zero disables the dedup guard.
func New(store EventStore, queue Queue, logger *slog.Logger, dedupeTTL time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:     store,
		queue:     queue,
		logger:    logger,
		dedupeTTL: dedupeTTL,
		recent:    make(map[string]dedupeEntry),
	}
}

// Enqueue constructs an Event, persists it, then publishes it to the
// bounded queue. On QueueFull the persisted Event row is deleted and the
// error is returned; the caller sees no event id. No handler lookup
// happens here.
func (d *Dispatcher) Enqueue(ctx context.Context, eventType, eventContext string) (string, error) {
	if eventType == "" {
		return "", model.NewError(model.KindValidation, "event_type is required")
	}

	if d.dedupeTTL > 0 {
		if id, hit := d.dedupeHit(eventType, eventContext); hit {
			return id, nil
		}
	}

	e := &model.Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		Context:   eventContext,
		Timestamp: time.Now().UTC(),
	}
	if err := d.store.InsertEvent(ctx, e); err != nil {
		return "", err
	}

	if !d.queue.TryPublish(*e) {
		if delErr := d.store.DeleteEvent(ctx, e.ID); delErr != nil {
			d.logger.Error("failed to delete event after QueueFull", "event_id", e.ID, "error", delErr)
		}
		return "", model.NewError(model.KindQueueFull, "queue is full")
	}

	if d.dedupeTTL > 0 {
		d.recordDedupe(eventType, eventContext, e.ID)
	}

	return e.ID, nil
}

func (d *Dispatcher) dedupeKey(eventType, eventContext string) string {
	sum := blake3.Sum256([]byte(eventType + "\x00" + eventContext))
	return string(sum[:])
}

func (d *Dispatcher) dedupeHit(eventType, eventContext string) (string, bool) {
	key := d.dedupeKey(eventType, eventContext)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.recent[key]
	if !ok || now.After(entry.expiry) {
		return "", false
	}
	return entry.eventID, true
}

func (d *Dispatcher) recordDedupe(eventType, eventContext, id string) {
	key := d.dedupeKey(eventType, eventContext)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.recent[key] = dedupeEntry{eventID: id, expiry: time.Now().Add(d.dedupeTTL)}
	now := time.Now()
	for k, e := range d.recent {
		if now.After(e.expiry) {
			delete(d.recent, k)
		}
	}
}
