package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shevd/shevd/internal/model"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type statusResponse struct {
	TotalJobs     int `json:"total_jobs"`
	PendingJobs   int `json:"pending_jobs"`
	RunningJobs   int `json:"running_jobs"`
	CompletedJobs int `json:"completed_jobs"`
	FailedJobs    int `json:"failed_jobs"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), model.JobFilter{})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := statusResponse{TotalJobs: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case model.JobPending:
			resp.PendingJobs++
		case model.JobRunning:
			resp.RunningJobs++
		case model.JobCompleted:
			resp.CompletedJobs++
		case model.JobFailed:
			resp.FailedJobs++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type createEventRequest struct {
	EventType string `json:"event_type"`
	Context   string `json:"context"`
}

type createEventResponse struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Context   string    `json:"context"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := s.dispatch.Enqueue(r.Context(), req.EventType, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, createEventResponse{
		ID:        id,
		EventType: req.EventType,
		Context:   req.Context,
		Timestamp: time.Now().UTC(),
		Message:   "event enqueued",
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filter := model.JobFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.JobStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, model.NewError(model.KindValidation, "limit must be an integer"))
			return
		}
		filter.Limit = n
	}
	jobs, err := s.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.registry.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "cancellation requested"})
}

func (s *Server) handleListHandlers(w http.ResponseWriter, r *http.Request) {
	hs, err := s.store.ListHandlers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) handleCreateHandler(w http.ResponseWriter, r *http.Request) {
	var h model.Handler
	if err := decodeJSON(r, &h); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.CreateHandler(r.Context(), &h); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleUpdateHandler(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")
	var h model.Handler
	if err := decodeJSON(r, &h); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.UpdateHandler(r.Context(), eventType, &h); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHandler(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")
	if err := s.store.DeleteHandler(r.Context(), eventType); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTimers(w http.ResponseWriter, r *http.Request) {
	ts, err := s.store.ListTimers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleCreateTimer(w http.ResponseWriter, r *http.Request) {
	var t model.Timer
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.CreateTimer(r.Context(), &t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTimer(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")
	var t model.Timer
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.UpdateTimer(r.Context(), eventType, &t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTimer(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")
	if err := s.store.DeleteTimer(r.Context(), eventType); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	scs, err := s.store.ListSchedules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scs)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var sc model.Schedule
	if err := decodeJSON(r, &sc); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.CreateSchedule(r.Context(), &sc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")
	var sc model.Schedule
	if err := decodeJSON(r, &sc); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.UpdateSchedule(r.Context(), eventType, &sc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")
	if err := s.store.DeleteSchedule(r.Context(), eventType); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := s.reloader.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"handlers_loaded":  res.HandlersLoaded,
		"timers_loaded":    res.TimersLoaded,
		"schedules_loaded": res.SchedulesLoaded,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetAllConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type setConfigRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req setConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.SetConfig(r.Context(), key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
