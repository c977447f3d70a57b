// Package app wires the config, store, scrubber, broadcaster, runtime,
// ingest supervisor, retention loop, and API server together, following
// the teacher's App struct + Run(ctx) shape.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mareekkk/logstream/internal/api"
	"github.com/mareekkk/logstream/internal/broadcast"
	"github.com/mareekkk/logstream/internal/config"
	"github.com/mareekkk/logstream/internal/ingest"
	"github.com/mareekkk/logstream/internal/retention"
	"github.com/mareekkk/logstream/internal/runtime"
	"github.com/mareekkk/logstream/internal/scrub"
	"github.com/mareekkk/logstream/internal/store"
)

const shutdownGrace = 10 * time.Second

type App struct {
	cfg config.Config
	log *slog.Logger

	db *store.Store

	supervisor *ingest.Supervisor
	retention  *retention.Loop
	api        *api.Server

	httpSrv *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	sqldb, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(sqldb); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	st := store.New(sqldb, cfg.DBPath)

	rt, err := runtime.NewDocker()
	if err != nil {
		return nil, fmt.Errorf("connect container runtime: %w", err)
	}

	bc := broadcast.New()
	scrubber := scrub.New(cfg.ExtraScrubPatterns, logger.With("module", "scrub"))
	supervisor := ingest.NewSupervisor(rt, st, bc, scrubber, logger.With("module", "ingest"), cfg.CollectorRestartDelay)
	retentionLoop := retention.New(st, cfg.LogRetentionDays, cfg.MaxDBSizeMB, cfg.RetentionCheckInterval, logger.With("module", "retention"))
	apiServer := api.NewServer(st, bc, logger.With("module", "api"), cfg.AdminKey, cfg.MaxDBSizeMB, cfg.LogRetentionDays, cfg.SSEMaxLinesPerSecond)

	a := &App{
		cfg:        cfg,
		log:        logger,
		db:         st,
		supervisor: supervisor,
		retention:  retentionLoop,
		api:        apiServer,
	}
	a.httpSrv = &http.Server{Addr: cfg.Addr, Handler: apiServer.Routes()}
	return a, nil
}

// Run starts the HTTP server, the tailer supervisor, and the retention
// loop, and blocks until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("http server failed", "err", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); a.supervisor.Run(ctx) }()
	go func() { defer wg.Done(); a.retention.Run(ctx) }()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("http server shutdown error", "err", err)
	}
	wg.Wait()
	return a.db.Close()
}
