package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shevd/shevd/internal/events"
	"github.com/shevd/shevd/internal/model"
	"github.com/shevd/shevd/internal/reload"
)

type fakeStore struct {
	handlers  map[string]*model.Handler
	timers    map[string]*model.Timer
	schedules map[string]*model.Schedule
	jobs      map[string]*model.Job
	config    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		handlers:  map[string]*model.Handler{},
		timers:    map[string]*model.Timer{},
		schedules: map[string]*model.Schedule{},
		jobs:      map[string]*model.Job{},
		config:    map[string]string{"queue_size": "100"},
	}
}

func (f *fakeStore) ListHandlers(context.Context) ([]*model.Handler, error) {
	out := make([]*model.Handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		out = append(out, h)
	}
	return out, nil
}
func (f *fakeStore) ListTimers(context.Context) ([]*model.Timer, error) {
	out := make([]*model.Timer, 0, len(f.timers))
	for _, t := range f.timers {
		out = append(out, t)
	}
	return out, nil
}
func (f *fakeStore) ListSchedules(context.Context) ([]*model.Schedule, error) {
	out := make([]*model.Schedule, 0, len(f.schedules))
	for _, sc := range f.schedules {
		out = append(out, sc)
	}
	return out, nil
}
func (f *fakeStore) GetHandler(_ context.Context, eventType string) (*model.Handler, error) {
	h, ok := f.handlers[eventType]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "no such handler")
	}
	return h, nil
}
func (f *fakeStore) CreateHandler(_ context.Context, h *model.Handler) error {
	if _, exists := f.handlers[h.EventType]; exists {
		return model.NewError(model.KindConflict, "handler exists")
	}
	f.handlers[h.EventType] = h
	return nil
}
func (f *fakeStore) UpdateHandler(_ context.Context, eventType string, h *model.Handler) error {
	if _, ok := f.handlers[eventType]; !ok {
		return model.NewError(model.KindNotFound, "no such handler")
	}
	f.handlers[eventType] = h
	return nil
}
func (f *fakeStore) DeleteHandler(_ context.Context, eventType string) error {
	if _, ok := f.handlers[eventType]; !ok {
		return model.NewError(model.KindNotFound, "no such handler")
	}
	delete(f.handlers, eventType)
	return nil
}
func (f *fakeStore) CreateTimer(_ context.Context, t *model.Timer) error {
	f.timers[t.EventType] = t
	return nil
}
func (f *fakeStore) UpdateTimer(_ context.Context, eventType string, t *model.Timer) error {
	f.timers[eventType] = t
	return nil
}
func (f *fakeStore) DeleteTimer(_ context.Context, eventType string) error {
	delete(f.timers, eventType)
	return nil
}
func (f *fakeStore) CreateSchedule(_ context.Context, sc *model.Schedule) error {
	f.schedules[sc.EventType] = sc
	return nil
}
func (f *fakeStore) UpdateSchedule(_ context.Context, eventType string, sc *model.Schedule) error {
	f.schedules[eventType] = sc
	return nil
}
func (f *fakeStore) DeleteSchedule(_ context.Context, eventType string) error {
	delete(f.schedules, eventType)
	return nil
}
func (f *fakeStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "no such job")
	}
	return j, nil
}
func (f *fakeStore) ListJobs(context.Context, model.JobFilter) ([]*model.Job, error) {
	out := make([]*model.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}
func (f *fakeStore) GetAllConfig(context.Context) (map[string]string, error) { return f.config, nil }
func (f *fakeStore) SetConfig(_ context.Context, key, value string) error {
	f.config[key] = value
	return nil
}

type fakeDispatcher struct{ nextID string }

func (f *fakeDispatcher) Enqueue(context.Context, string, string) (string, error) {
	return f.nextID, nil
}

type fakeRegistry struct{ cancelled []string }

func (f *fakeRegistry) Cancel(jobID string) bool {
	f.cancelled = append(f.cancelled, jobID)
	return true
}

type fakeReloader struct{ result reload.Result }

func (f *fakeReloader) Reload(context.Context) (reload.Result, error) { return f.result, nil }

func newTestServer(t *testing.T, store *fakeStore) (*Server, *fakeDispatcher, *fakeRegistry) {
	t.Helper()
	disp := &fakeDispatcher{nextID: "ev-1"}
	reg := &fakeRegistry{}
	rl := &fakeReloader{result: reload.Result{HandlersLoaded: 1, TimersLoaded: 2, SchedulesLoaded: 3}}
	hub := events.NewHub(16)

	s, err := New(Config{Listen: "127.0.0.1:0"}, store, disp, reg, rl, hub, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, disp, reg
}

func doRequest(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateEvent(t *testing.T) {
	s, _, _ := newTestServer(t, newFakeStore())
	rec := doRequest(s, http.MethodPost, "/events", createEventRequest{EventType: "greet", Context: "ctx"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp createEventResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "ev-1" {
		t.Errorf("id = %q, want ev-1", resp.ID)
	}
}

func TestHandleHandlerCRUD(t *testing.T) {
	store := newFakeStore()
	s, _, _ := newTestServer(t, store)

	rec := doRequest(s, http.MethodPost, "/handlers", model.Handler{EventType: "greet", Shell: model.ShellBash, Command: "echo hi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, http.MethodGet, "/handlers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []model.Handler
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].EventType != "greet" {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = doRequest(s, http.MethodDelete, "/handlers/greet", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(s, http.MethodDelete, "/handlers/greet", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestHandleCancelJobUnknownReturns404(t *testing.T) {
	s, _, _ := newTestServer(t, newFakeStore())
	rec := doRequest(s, http.MethodPost, "/jobs/missing/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleReload(t *testing.T) {
	s, _, _ := newTestServer(t, newFakeStore())
	rec := doRequest(s, http.MethodPost, "/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["handlers_loaded"].(float64) != 1 {
		t.Errorf("handlers_loaded = %v", body["handlers_loaded"])
	}
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	s, _, _ := newTestServer(t, newFakeStore())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.9:1234" // unlisted remote IP
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200 even for unlisted remotes", rec.Code)
	}
}

func TestUnlistedRemoteForbiddenOnProtectedRoute(t *testing.T) {
	s, _, _ := newTestServer(t, newFakeStore())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAllowedReadOnlyCannotWrite(t *testing.T) {
	disp := &fakeDispatcher{nextID: "ev-2"}
	reg := &fakeRegistry{}
	rl := &fakeReloader{}
	hub := events.NewHub(4)
	s, err := New(Config{Listen: "127.0.0.1:0", Allow: []string{"203.0.113.0/24"}}, newFakeStore(), disp, reg, rl, hub, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/handlers", bytes.NewReader([]byte(`{}`)))
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for read-only remote attempting a write", rec.Code)
	}
}
