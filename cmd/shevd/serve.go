package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/shevd/shevd/internal/bootstrap"
	"github.com/shevd/shevd/internal/dispatcher"
	"github.com/shevd/shevd/internal/events"
	"github.com/shevd/shevd/internal/httpapi"
	"github.com/shevd/shevd/internal/lock"
	"github.com/shevd/shevd/internal/log"
	"github.com/shevd/shevd/internal/model"
	"github.com/shevd/shevd/internal/registry"
	"github.com/shevd/shevd/internal/reload"
	"github.com/shevd/shevd/internal/schedloop"
	"github.com/shevd/shevd/internal/store"
	"github.com/shevd/shevd/internal/timerloop"
	"github.com/shevd/shevd/internal/worker"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "shevd.yaml", "path to the bootstrap config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("shevd starting", "version", version, "config", *configPath)

	dbPath := cfg.DBPath
	if v := os.Getenv("SHEV_DB"); v != "" {
		dbPath = v
	}

	lockPath := os.Getenv("SHEV_LOCK")
	if lockPath == "" {
		lockPath = pidLockPath(dbPath)
	}
	pidLock, err := lock.AcquirePIDLock(lockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", lockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", lockPath)

	shutdownGrace := defaultShutdownGrace
	if v := os.Getenv("SHEV_SHUTDOWN_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid SHEV_SHUTDOWN_GRACE, using default", "value", v, "default", defaultShutdownGrace)
		} else {
			shutdownGrace = d
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// httpCtx governs the HTTP listener and is cancelled the instant a
	// shutdown signal arrives, so no new enqueue is ever accepted during
	// the grace window. workCtx governs the worker pool and time-driven
	// producers; it stays live until the grace window elapses or every
	// worker finishes naturally, whichever comes first.
	httpCtx, httpCancel := context.WithCancel(ctx)
	defer httpCancel()
	workCtx, workCancel := context.WithCancel(ctx)
	defer workCancel()

	db, err := store.Open(ctx, dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", dbPath)

	st := store.New(db, log.WithComponent("store"))

	recovered, err := st.RecoverOrphanedJobs(ctx)
	if err != nil {
		logger.Error("startup job recovery failed", "error", err)
		return 1
	}
	if recovered > 0 {
		logger.Info("recovered orphaned jobs from prior run", "count", recovered)
	}

	dbConfig, err := st.GetAllConfig(ctx)
	if err != nil {
		logger.Error("failed to read config", "error", err)
		return 1
	}
	mergedConfig := model.DefaultConfig()
	for k, v := range dbConfig {
		mergedConfig[k] = v
	}
	dedupeSecs, _ := strconv.Atoi(mergedConfig[model.ConfigDedupeTTL])
	queueSize, err := strconv.Atoi(mergedConfig[model.ConfigQueueSize])
	if err != nil || queueSize <= 0 {
		logger.Error("invalid queue_size in config, falling back to default", "value", mergedConfig[model.ConfigQueueSize])
		queueSize, _ = strconv.Atoi(model.DefaultConfig()[model.ConfigQueueSize])
	}
	workerCount, err := strconv.Atoi(mergedConfig[model.ConfigWorkerCount])
	if err != nil || workerCount <= 0 {
		logger.Error("invalid worker_count in config, falling back to default", "value", mergedConfig[model.ConfigWorkerCount])
		workerCount, _ = strconv.Atoi(model.DefaultConfig()[model.ConfigWorkerCount])
	}

	listenAddr, err := applyConfiguredPort(cfg.Listen, mergedConfig[model.ConfigPort])
	if err != nil {
		logger.Error("invalid listen/port configuration", "error", err)
		return 1
	}

	hub := events.NewHub(256)

	q := worker.NewQueue(queueSize)
	disp := dispatcher.New(st, q, log.WithComponent("dispatcher"), time.Duration(dedupeSecs)*time.Second)

	jobRegistry := registry.New()

	handlers, err := st.ListHandlers(ctx)
	if err != nil {
		logger.Error("failed to read handlers", "error", err)
		return 1
	}
	table := reload.NewTable(handlers)

	pool := worker.New(st, table, jobRegistry, q, hub, log.WithComponent("worker"), workerCount)
	pool.Start(workCtx)

	timers, err := st.ListTimers(ctx)
	if err != nil {
		logger.Error("failed to read timers", "error", err)
		return 1
	}
	timerLoop := timerloop.New(disp, log.WithComponent("timerloop"))
	timerLoop.Start(workCtx, timers)

	schedules, err := st.ListSchedules(ctx)
	if err != nil {
		logger.Error("failed to read schedules", "error", err)
		return 1
	}
	schedLoop := schedloop.New(disp, st, log.WithComponent("schedloop"))
	schedLoop.Start(workCtx, schedules)

	coordinator := reload.New(st, table, timerLoop, schedLoop, ctx, log.WithComponent("reload"))

	apiCfg := httpapi.Config{Listen: listenAddr, Allow: cfg.Allow, AllowWrite: cfg.AllowWrite}
	apiServer, err := httpapi.New(apiCfg, st, disp, jobRegistry, coordinator, hub, log.WithComponent("httpapi"))
	if err != nil {
		logger.Error("failed to build http api", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(httpCtx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("http api: %w", err)
		}
	}()

	logger.Info("shevd running", "listen", listenAddr, "db", dbPath, "shutdown_grace", shutdownGrace)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		drainAndStop(logger, httpCancel, workCancel, timerLoop, schedLoop, pool, shutdownGrace)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		httpCancel()
		timerLoop.Stop()
		schedLoop.Stop()
		workCancel()
		pool.Wait()
		return 1
	}

	cancel()
	logger.Info("shevd stopped")
	return 0
}

// drainAndStop implements the graceful-shutdown contract: stop accepting
// new enqueues and stop the time-driven producers immediately, then give
// in-flight Running jobs up to grace to finish on their own before
// force-cancelling them. A job force-cancelled this way still gets a
// Cancelled terminal state written (internal/worker.Pool persists it on a
// context independent of workCtx), so no job is left without a final state.
func drainAndStop(logger *slog.Logger, httpCancel, workCancel context.CancelFunc, timerLoop stoppable, schedLoop stoppable, pool waiter, grace time.Duration) {
	httpCancel()
	timerLoop.Stop()
	schedLoop.Stop()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all workers finished before shutdown grace elapsed")
	case <-time.After(grace):
		logger.Warn("shutdown grace elapsed, cancelling in-flight jobs", "grace", grace)
		workCancel()
		<-done
	}
}

type stoppable interface {
	Stop()
}

type waiter interface {
	Wait()
}

const defaultShutdownGrace = 10 * time.Second

func pidLockPath(dbPath string) string {
	dir := filepath.Dir(dbPath)
	base := filepath.Base(dbPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	return filepath.Join(dir, name+".pid")
}

// applyConfiguredPort rebinds listen's port to the Store-backed Config
// entity's port key, keeping listen's host, and returns listen unchanged
// when configuredPort is empty. serve always passes a port (unset keys are
// filled from model.DefaultConfig, port 3000), so the bootstrap YAML
// supplies only the host and its own port is not used; a port change
// takes effect on restart.
func applyConfiguredPort(listen, configuredPort string) (string, error) {
	host, _, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if configuredPort == "" {
		return listen, nil
	}
	return net.JoinHostPort(host, configuredPort), nil
}
