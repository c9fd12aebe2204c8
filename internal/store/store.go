package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shevd/shevd/internal/model"
)

const timeLayout = time.RFC3339Nano

// Store is the durable CRUD surface over handlers, timers, schedules,
// events, jobs and config. A single *sql.DB (MaxOpenConns=1) serialises
// writers; SQLite's own locking handles the rest.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an already-open, already-bootstrapped database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// ---- Handlers ----

// CreateHandler inserts h, failing with KindConflict if event_type is
// already bound to another handler.
func (s *Store) CreateHandler(ctx context.Context, h *model.Handler) error {
	if h.EventType == "" {
		return model.NewError(model.KindValidation, "event_type is required")
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	switch h.Shell {
	case model.ShellBash, model.ShellSh, model.ShellPwsh:
	default:
		return model.NewError(model.KindValidation, "unsupported shell")
	}
	env, err := json.Marshal(h.Env)
	if err != nil {
		return model.Wrap(model.KindValidation, "encode env", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO handlers (id, event_type, shell, command, timeout_secs, env) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, h.EventType, string(h.Shell), h.Command, nullableUint(h.TimeoutSecs), string(env))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Wrap(model.KindConflict, fmt.Sprintf("handler for event_type %q already exists", h.EventType), err)
		}
		return model.Wrap(model.KindStore, "insert handler", err)
	}
	return nil
}

// GetHandler looks up a handler by event type.
func (s *Store) GetHandler(ctx context.Context, eventType string) (*model.Handler, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_type, shell, command, timeout_secs, env FROM handlers WHERE event_type = ?`, eventType)
	return scanHandler(row)
}

// ListHandlers returns all handlers.
func (s *Store) ListHandlers(ctx context.Context) ([]*model.Handler, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_type, shell, command, timeout_secs, env FROM handlers ORDER BY event_type`)
	if err != nil {
		return nil, model.Wrap(model.KindStore, "list handlers", err)
	}
	defer rows.Close()

	var out []*model.Handler
	for rows.Next() {
		h, err := scanHandler(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpdateHandler replaces the handler bound to eventType.
func (s *Store) UpdateHandler(ctx context.Context, eventType string, h *model.Handler) error {
	env, err := json.Marshal(h.Env)
	if err != nil {
		return model.Wrap(model.KindValidation, "encode env", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE handlers SET shell = ?, command = ?, timeout_secs = ?, env = ? WHERE event_type = ?`,
		string(h.Shell), h.Command, nullableUint(h.TimeoutSecs), string(env), eventType)
	if err != nil {
		return model.Wrap(model.KindStore, "update handler", err)
	}
	return requireAffected(res, "handler", eventType)
}

// DeleteHandler removes the handler bound to eventType. Orphaned timers
// and schedules are left in place; the worker logs "no handler" and
// drops the event when it next fires.
func (s *Store) DeleteHandler(ctx context.Context, eventType string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM handlers WHERE event_type = ?`, eventType)
	if err != nil {
		return model.Wrap(model.KindStore, "delete handler", err)
	}
	return requireAffected(res, "handler", eventType)
}

// ---- Timers ----

func (s *Store) CreateTimer(ctx context.Context, t *model.Timer) error {
	if t.EventType == "" {
		return model.NewError(model.KindValidation, "event_type is required")
	}
	if t.IntervalSecs == 0 {
		return model.NewError(model.KindValidation, "interval_secs must be > 0")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timers (id, event_type, context, interval_secs) VALUES (?, ?, ?, ?)`,
		t.ID, t.EventType, t.Context, t.IntervalSecs)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Wrap(model.KindConflict, fmt.Sprintf("timer for event_type %q already exists", t.EventType), err)
		}
		return model.Wrap(model.KindStore, "insert timer", err)
	}
	return nil
}

func (s *Store) ListTimers(ctx context.Context) ([]*model.Timer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, event_type, context, interval_secs FROM timers ORDER BY event_type`)
	if err != nil {
		return nil, model.Wrap(model.KindStore, "list timers", err)
	}
	defer rows.Close()

	var out []*model.Timer
	for rows.Next() {
		var t model.Timer
		if err := rows.Scan(&t.ID, &t.EventType, &t.Context, &t.IntervalSecs); err != nil {
			return nil, model.Wrap(model.KindStore, "scan timer", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTimer(ctx context.Context, eventType string, t *model.Timer) error {
	if t.IntervalSecs == 0 {
		return model.NewError(model.KindValidation, "interval_secs must be > 0")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE timers SET context = ?, interval_secs = ? WHERE event_type = ?`,
		t.Context, t.IntervalSecs, eventType)
	if err != nil {
		return model.Wrap(model.KindStore, "update timer", err)
	}
	return requireAffected(res, "timer", eventType)
}

func (s *Store) DeleteTimer(ctx context.Context, eventType string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timers WHERE event_type = ?`, eventType)
	if err != nil {
		return model.Wrap(model.KindStore, "delete timer", err)
	}
	return requireAffected(res, "timer", eventType)
}

// ---- Schedules ----

func (s *Store) CreateSchedule(ctx context.Context, sc *model.Schedule) error {
	if sc.EventType == "" {
		return model.NewError(model.KindValidation, "event_type is required")
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (id, event_type, context, scheduled_time, periodic) VALUES (?, ?, ?, ?, ?)`,
		sc.ID, sc.EventType, sc.Context, sc.ScheduledTime.UTC().Format(timeLayout), boolToInt(sc.Periodic))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Wrap(model.KindConflict, fmt.Sprintf("schedule for event_type %q already exists", sc.EventType), err)
		}
		return model.Wrap(model.KindStore, "insert schedule", err)
	}
	return nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]*model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_type, context, scheduled_time, periodic FROM schedules ORDER BY scheduled_time ASC, id ASC`)
	if err != nil {
		return nil, model.Wrap(model.KindStore, "list schedules", err)
	}
	defer rows.Close()

	var out []*model.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSchedule(ctx context.Context, eventType string, sc *model.Schedule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET context = ?, scheduled_time = ?, periodic = ? WHERE event_type = ?`,
		sc.Context, sc.ScheduledTime.UTC().Format(timeLayout), boolToInt(sc.Periodic), eventType)
	if err != nil {
		return model.Wrap(model.KindStore, "update schedule", err)
	}
	return requireAffected(res, "schedule", eventType)
}

// AdvanceSchedule persists a new scheduled_time for an existing periodic
// schedule, identified by id (used by the Schedule Loop after firing).
func (s *Store) AdvanceSchedule(ctx context.Context, id string, next time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE schedules SET scheduled_time = ? WHERE id = ?`, next.UTC().Format(timeLayout), id)
	if err != nil {
		return model.Wrap(model.KindStore, "advance schedule", err)
	}
	return requireAffected(res, "schedule", id)
}

func (s *Store) DeleteSchedule(ctx context.Context, eventType string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE event_type = ?`, eventType)
	if err != nil {
		return model.Wrap(model.KindStore, "delete schedule", err)
	}
	return requireAffected(res, "schedule", eventType)
}

// DeleteScheduleByID removes a fired non-periodic schedule (fire-once).
func (s *Store) DeleteScheduleByID(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return model.Wrap(model.KindStore, "delete schedule", err)
	}
	return nil
}

// ---- Events ----

// InsertEvent persists e. Called by the Dispatcher before publishing to
// the bounded queue.
func (s *Store) InsertEvent(ctx context.Context, e *model.Event) error {
	if e.EventType == "" {
		return model.NewError(model.KindValidation, "event_type is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, event_type, context, timestamp) VALUES (?, ?, ?, ?)`,
		e.ID, e.EventType, e.Context, e.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return model.Wrap(model.KindStore, "insert event", err)
	}
	return nil
}

// DeleteEvent removes a persisted event. Used by the Dispatcher on
// QueueFull: per the resolved open question, shevd deletes the
// just-persisted Event row rather than leaving an unconsumed record.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return model.Wrap(model.KindStore, "delete event", err)
	}
	return nil
}

// ---- Jobs ----

// CreateJob inserts a Pending job row embedding the triggering event's
// fields, in a single atomic statement.
func (s *Store) CreateJob(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Status = model.JobPending
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, event_id, event_type, event_context, event_timestamp, handler_id, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Event.ID, j.Event.EventType, j.Event.Context, j.Event.Timestamp.UTC().Format(timeLayout),
		j.HandlerID, string(model.JobPending))
	if err != nil {
		return model.Wrap(model.KindStore, "insert job", err)
	}
	return nil
}

// TransitionRunning marks job id as Running with the given start time.
func (s *Store) TransitionRunning(ctx context.Context, id string, startedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(model.JobRunning), startedAt.UTC().Format(timeLayout), id, string(model.JobPending))
	if err != nil {
		return model.Wrap(model.KindStore, "transition job running", err)
	}
	return requireAffected(res, "job", id)
}

// CompleteJob writes the terminal state for job id in one durable write.
func (s *Store) CompleteJob(ctx context.Context, id string, status model.JobStatus, output, errMsg *string, finishedAt time.Time) error {
	if !status.Terminal() {
		return model.NewError(model.KindValidation, "CompleteJob requires a terminal status")
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, output = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(status), output, errMsg, finishedAt.UTC().Format(timeLayout), id)
	if err != nil {
		return model.Wrap(model.KindStore, "complete job", err)
	}
	return nil
}

// GetJob fetches a single job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, event_id, event_type, event_context, event_timestamp, handler_id, status, output, error, started_at, finished_at
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	query := `SELECT id, event_id, event_type, event_context, event_timestamp, handler_id, status, output, error, started_at, finished_at
		FROM jobs`
	var args []any
	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY event_timestamp DESC, rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Wrap(model.KindStore, "list jobs", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// RecoverOrphanedJobs rewrites every Running or Pending job to Failed
// "interrupted by restart". Must run once, synchronously, before the
// Worker Pool or Timer/Schedule Loops start.
func (s *Store) RecoverOrphanedJobs(ctx context.Context) (int, error) {
	now := time.Now().UTC().Format(timeLayout)
	msg := "interrupted by restart"
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE status IN (?, ?)`,
		string(model.JobFailed), msg, now, string(model.JobRunning), string(model.JobPending))
	if err != nil {
		return 0, model.Wrap(model.KindStore, "recover orphaned jobs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, model.Wrap(model.KindStore, "recover orphaned jobs: rows affected", err)
	}
	return int(n), nil
}

// ---- Config ----

func (s *Store) GetAllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, model.Wrap(model.KindStore, "list config", err)
	}
	defer rows.Close()

	out := model.DefaultConfig()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, model.Wrap(model.KindStore, "scan config", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	if _, ok := model.DefaultConfig()[key]; !ok {
		return model.NewError(model.KindValidation, fmt.Sprintf("unrecognised config key %q", key))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return model.Wrap(model.KindStore, "set config", err)
	}
	return nil
}

// ---- scanning helpers ----

type scanner interface {
	Scan(dest ...any) error
}

func scanHandler(row scanner) (*model.Handler, error) {
	var h model.Handler
	var shell string
	var timeout sql.NullInt64
	var env string
	if err := row.Scan(&h.ID, &h.EventType, &shell, &h.Command, &timeout, &env); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewError(model.KindNotFound, "handler not found")
		}
		return nil, model.Wrap(model.KindStore, "scan handler", err)
	}
	h.Shell = model.Shell(shell)
	if timeout.Valid {
		u := uint(timeout.Int64)
		h.TimeoutSecs = &u
	}
	h.Env = map[string]string{}
	if env != "" {
		if err := json.Unmarshal([]byte(env), &h.Env); err != nil {
			return nil, model.Wrap(model.KindStore, "decode handler env", err)
		}
	}
	return &h, nil
}

func scanSchedule(row scanner) (*model.Schedule, error) {
	var sc model.Schedule
	var ts string
	var periodic int
	if err := row.Scan(&sc.ID, &sc.EventType, &sc.Context, &ts, &periodic); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewError(model.KindNotFound, "schedule not found")
		}
		return nil, model.Wrap(model.KindStore, "scan schedule", err)
	}
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return nil, model.Wrap(model.KindStore, "parse scheduled_time", err)
	}
	sc.ScheduledTime = t
	sc.Periodic = periodic != 0
	return &sc, nil
}

func scanJob(row scanner) (*model.Job, error) {
	var j model.Job
	var eventTS string
	var status string
	var output, errMsg, startedAt, finishedAt sql.NullString
	if err := row.Scan(&j.ID, &j.Event.ID, &j.Event.EventType, &j.Event.Context, &eventTS, &j.HandlerID,
		&status, &output, &errMsg, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewError(model.KindNotFound, "job not found")
		}
		return nil, model.Wrap(model.KindStore, "scan job", err)
	}
	t, err := time.Parse(timeLayout, eventTS)
	if err != nil {
		return nil, model.Wrap(model.KindStore, "parse event timestamp", err)
	}
	j.Event.Timestamp = t
	j.Status = model.JobStatus(status)
	if output.Valid {
		j.Output = &output.String
	}
	if errMsg.Valid {
		j.Error = &errMsg.String
	}
	if startedAt.Valid {
		st, err := time.Parse(timeLayout, startedAt.String)
		if err == nil {
			j.StartedAt = &st
		}
	}
	if finishedAt.Valid {
		ft, err := time.Parse(timeLayout, finishedAt.String)
		if err == nil {
			j.FinishedAt = &ft
		}
	}
	return &j, nil
}

func nullableUint(v *uint) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireAffected(res sql.Result, kind, ident string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return model.Wrap(model.KindStore, "rows affected", err)
	}
	if n == 0 {
		return model.NewError(model.KindNotFound, fmt.Sprintf("%s %q not found", kind, ident))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
