package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"alphabot/internal/usecase"
	"alphabot/pkg/cache"
	"alphabot/pkg/config"
	xhttp "alphabot/pkg/http"
	applogger "alphabot/pkg/logger"
)

// App encapsulates the application lifecycle: the prediction orchestrator,
// the HTTP surface and the shared infrastructure clients.
type App struct {
	cfg          *config.Config
	logger       *applogger.Logger
	orchestrator *usecase.Orchestrator
	handler      xhttp.Handler
	httpServer   *xhttp.Server
	cache        cache.Service
	pool         *pgxpool.Pool // nil when the database is disabled
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	orchestrator *usecase.Orchestrator,
	handler xhttp.Handler,
	cacheSvc cache.Service,
	pool *pgxpool.Pool,
) *App {
	return &App{
		cfg:          cfg,
		logger:       l,
		orchestrator: orchestrator,
		handler:      handler,
		cache:        cacheSvc,
		pool:         pool,
	}
}

// Run starts the orchestrator and the HTTP server, then blocks until the
// process receives an interrupt or termination signal.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.orchestrator.Start()

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("app started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("environment", a.cfg.Environment))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.orchestrator.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if c, ok := a.cache.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	a.logger.Info("app stopped")
	return nil
}
