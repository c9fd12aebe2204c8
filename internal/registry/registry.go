// Package registry implements the Job Registry: a process-wide mapping
// from job id to cancellation handle, protected by a mutex. It is not
// persisted: on restart no job is "running", and startup recovery
// rewrites orphaned rows (see internal/store.RecoverOrphanedJobs).
package registry

import (
	"sync"

	"github.com/shevd/shevd/internal/executor"
)

// Registry tracks live (pending-or-running) jobs.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*executor.Cancel
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*executor.Cancel)}
}

// Register creates and stores a fresh cancellation handle for jobID.
func (r *Registry) Register(jobID string) *executor.Cancel {
	c := executor.NewCancel()
	r.mu.Lock()
	r.entries[jobID] = c
	r.mu.Unlock()
	return c
}

// Cancel looks up jobID and fires its handle. Returns whether a live job
// was found; idempotent for a job that has already terminated or was
// never registered.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	c, ok := r.entries[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	c.Fire()
	return true
}

// Unregister removes jobID's entry, normally called on terminal transition.
func (r *Registry) Unregister(jobID string) {
	r.mu.Lock()
	delete(r.entries, jobID)
	r.mu.Unlock()
}

// WasCancelled reports whether jobID has a registered handle that has
// already fired, without mutating the registry. Used by the Worker Pool
// to honour a cancellation that raced with pickup: a cancel for a job
// still Pending transitions it straight to Cancelled without spawning.
func (r *Registry) WasCancelled(jobID string) bool {
	r.mu.Lock()
	c, ok := r.entries[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return c.Fired()
}
