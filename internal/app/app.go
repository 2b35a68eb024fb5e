// Package app wires configuration, providers and services into the
// payment-gated content agent.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/contentagent/internal/config"
	"github.com/yungbote/contentagent/internal/data/db"
	"github.com/yungbote/contentagent/internal/http"
	"github.com/yungbote/contentagent/internal/observability"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/shutdown"
)

const serviceName = "contentagent"

// Version is stamped at build time.
var Version = "dev"

type App struct {
	Log      *logger.Logger
	Cfg      *config.Config
	Clients  Clients
	Services Services
	Metrics  *observability.PrometheusRecorder

	server       *http.Server
	archiveDB    *db.Service
	otelShutdown func(context.Context) error
}

// New validates cfg and wires the HTTP service. The caller owns log.
func New(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	otelShutdown, err := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Env,
		Version:     Version,
		Tracing:     cfg.Tracing,
	})
	if err != nil {
		return nil, err
	}
	metrics := observability.NewPrometheusRecorder(nil)

	clients, err := wireClients(log, cfg, metrics)
	if err != nil {
		return nil, err
	}
	archiveDB, archive, err := wireArchive(log, cfg.Archive)
	if err != nil {
		closeBus(clients.EventBus)
		return nil, err
	}
	services, err := wireServices(log, cfg, clients, archive, metrics)
	if err != nil {
		closeBus(clients.EventBus)
		if archiveDB != nil {
			_ = archiveDB.Close()
		}
		return nil, err
	}

	handlers := wireHandlers(log, cfg, services)
	router := wireRouter(log, cfg, handlers, metrics)
	srv := http.NewServer(http.ServerConfig{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout.Duration,
	}, router)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Services:     services,
		Metrics:      metrics,
		server:       srv,
		archiveDB:    archiveDB,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP and runs the retention sweep until ctx is cancelled,
// then drains running jobs and releases every connection.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("content agent listening", "addr", a.Cfg.HTTP.Addr, "network", a.Cfg.Payment.Network, "events", a.Cfg.Events.Backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	if r := a.Services.Retention; r != nil {
		r.Start()
		g.Go(func() error {
			<-gctx.Done()
			return r.Stop()
		})
	}
	runErr := g.Wait()

	drainCtx, cancel := shutdown.DrainContext(a.Cfg.HTTP.ShutdownTimeout.Duration)
	defer cancel()
	if err := a.Services.Controller.Close(drainCtx); err != nil {
		a.Log.Warn("jobs still running at shutdown", "error", err)
	}
	a.close(drainCtx)
	return runErr
}

func (a *App) close(ctx context.Context) {
	closeBus(a.Clients.EventBus)
	if a.archiveDB != nil {
		if err := a.archiveDB.Close(); err != nil {
			a.Log.Warn("archive close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
}

func closeBus(bus EventBus) {
	if bus != nil {
		_ = bus.Close()
	}
}
