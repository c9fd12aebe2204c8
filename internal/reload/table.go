// Package reload implements the handler lookup table singleton and the
// Reload Coordinator that swaps it (and the Timer/Schedule loops)
// wholesale from the Store.
package reload

import (
	"sync/atomic"

	"github.com/shevd/shevd/internal/model"
)

// Table is the process-wide handler lookup table: a read-mostly map with
// wholesale swap on reload. Readers always see either the old or the new
// map, never a torn state.
type Table struct {
	ptr atomic.Pointer[map[string]*model.Handler]
}

// NewTable builds a Table from an initial handler set.
func NewTable(handlers []*model.Handler) *Table {
	t := &Table{}
	t.Swap(handlers)
	return t
}

// Lookup resolves a handler by event type against the current snapshot.
func (t *Table) Lookup(eventType string) (*model.Handler, bool) {
	m := t.ptr.Load()
	if m == nil {
		return nil, false
	}
	h, ok := (*m)[eventType]
	return h, ok
}

// Swap atomically replaces the live snapshot.
func (t *Table) Swap(handlers []*model.Handler) {
	m := make(map[string]*model.Handler, len(handlers))
	for _, h := range handlers {
		m[h.EventType] = h
	}
	t.ptr.Store(&m)
}
