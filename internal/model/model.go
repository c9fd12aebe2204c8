// Package model defines the persistent and in-memory types shared across
// the shevd core: events, handlers, timers, schedules, jobs and config.
package model

import "time"

// Shell names the interpreter an Executor invokes a Handler's command with.
type Shell string

const (
	ShellBash Shell = "bash"
	ShellSh   Shell = "sh"
	ShellPwsh Shell = "pwsh"
)

// JobStatus is the lifecycle state of a Job. Pending -> Running -> one of
// the three terminal states; terminal states are final.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether s is one of the three final job states.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Event is a single stimulus: created by every trigger path (HTTP, timer,
// schedule), immutable once persisted.
type Event struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Context   string    `json:"context"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler is the executable recipe bound to an event type. Lookup key is
// EventType, which is unique. Deleting a Handler does not cascade to
// Timers or Schedules bound to the same event type.
type Handler struct {
	ID          string            `json:"id"`
	EventType   string            `json:"event_type"`
	Shell       Shell             `json:"shell"`
	Command     string            `json:"command"`
	TimeoutSecs *uint             `json:"timeout_secs,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// Timer is a periodic interval producer of events. EventType is unique.
type Timer struct {
	ID           string `json:"id"`
	EventType    string `json:"event_type"`
	Context      string `json:"context"`
	IntervalSecs uint   `json:"interval_secs"`
}

// Schedule is an absolute-time producer of events, one-shot or
// daily-periodic. EventType is unique.
type Schedule struct {
	ID            string    `json:"id"`
	EventType     string    `json:"event_type"`
	Context       string    `json:"context"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Periodic      bool      `json:"periodic"`
}

// Job is the record of one attempt to execute a Handler for an Event.
type Job struct {
	ID         string     `json:"id"`
	Event      Event      `json:"event"`
	HandlerID  string     `json:"handler_id"`
	Status     JobStatus  `json:"status"`
	Output     *string    `json:"output,omitempty"`
	Error      *string    `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Config is a recognised key in the Store-backed key-value config.
// Changes take effect only on restart.
const (
	ConfigPort        = "port"
	ConfigQueueSize   = "queue_size"
	ConfigWorkerCount = "worker_count"
	ConfigDedupeTTL   = "dedupe_ttl_secs"
)

// DefaultConfig returns the recognised keys with their default values.
func DefaultConfig() map[string]string {
	return map[string]string{
		ConfigPort:        "3000",
		ConfigQueueSize:   "100",
		ConfigWorkerCount: "4",
		ConfigDedupeTTL:   "0",
	}
}

// JobFilter narrows a job listing query.
type JobFilter struct {
	Status *JobStatus
	Limit  int
}
