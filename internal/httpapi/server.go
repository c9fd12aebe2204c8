// Package httpapi implements the HTTP surface: status, event ingestion,
// job inspection/cancellation, handler/timer/schedule CRUD, reload,
// config, and the additive lifecycle event stream and liveness probe.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/shevd/shevd/internal/events"
	"github.com/shevd/shevd/internal/model"
	"github.com/shevd/shevd/internal/reload"
)

// Dispatcher is the enqueue path the Store-level entry point delegates to.
type Dispatcher interface {
	Enqueue(ctx context.Context, eventType, eventContext string) (string, error)
}

// Store is the full CRUD surface the API exposes.
type Store interface {
	reload.Store

	CreateHandler(ctx context.Context, h *model.Handler) error
	UpdateHandler(ctx context.Context, eventType string, h *model.Handler) error
	DeleteHandler(ctx context.Context, eventType string) error

	CreateTimer(ctx context.Context, t *model.Timer) error
	UpdateTimer(ctx context.Context, eventType string, t *model.Timer) error
	DeleteTimer(ctx context.Context, eventType string) error

	CreateSchedule(ctx context.Context, sc *model.Schedule) error
	UpdateSchedule(ctx context.Context, eventType string, sc *model.Schedule) error
	DeleteSchedule(ctx context.Context, eventType string) error

	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.Job, error)

	GetAllConfig(ctx context.Context) (map[string]string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// Registry is the cancellation half of the Job Registry the API needs.
type Registry interface {
	Cancel(jobID string) bool
}

// Reloader runs the Reload Coordinator.
type Reloader interface {
	Reload(ctx context.Context) (reload.Result, error)
}

// Config holds the access-control and listen settings for the server.
type Config struct {
	Listen     string
	Allow      []string
	AllowWrite []string
}

// Server is the HTTP API.
type Server struct {
	cfg      Config
	store    Store
	dispatch Dispatcher
	registry Registry
	reloader Reloader
	hub      *events.Hub
	logger   *slog.Logger
	access   *accessList

	startedAt time.Time
	httpSrv   *http.Server
}

// New builds a Server. Returns an error if an allow/allow-write entry is
// not a valid IP or CIDR.
func New(cfg Config, store Store, dispatch Dispatcher, registry Registry, reloader Reloader, hub *events.Hub, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	access, err := newAccessList(cfg.Allow, cfg.AllowWrite)
	if err != nil {
		return nil, fmt.Errorf("parse access lists: %w", err)
	}
	return &Server{
		cfg:       cfg,
		store:     store,
		dispatch:  dispatch,
		registry:  registry,
		reloader:  reloader,
		hub:       hub,
		logger:    logger,
		access:    access,
		startedAt: time.Now(),
	}, nil
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully with a 5s drain window.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // long enough for slow handler subprocesses' callers to poll
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("http api starting", "listen", s.cfg.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http api shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http api shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("http api: %w", err)
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.accessMiddleware)

		r.Get("/status", s.handleStatus)
		r.Post("/events", s.handleCreateEvent)
		r.Get("/events/stream", s.handleEventStream)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/cancel", s.handleCancelJob)

		r.Get("/handlers", s.handleListHandlers)
		r.Post("/handlers", s.handleCreateHandler)
		r.Put("/handlers/{event_type}", s.handleUpdateHandler)
		r.Delete("/handlers/{event_type}", s.handleDeleteHandler)

		r.Get("/timers", s.handleListTimers)
		r.Post("/timers", s.handleCreateTimer)
		r.Put("/timers/{event_type}", s.handleUpdateTimer)
		r.Delete("/timers/{event_type}", s.handleDeleteTimer)

		r.Get("/schedules", s.handleListSchedules)
		r.Post("/schedules", s.handleCreateSchedule)
		r.Put("/schedules/{event_type}", s.handleUpdateSchedule)
		r.Delete("/schedules/{event_type}", s.handleDeleteSchedule)

		r.Post("/reload", s.handleReload)

		r.Get("/config", s.handleGetConfig)
		r.Put("/config/{key}", s.handleSetConfig)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
