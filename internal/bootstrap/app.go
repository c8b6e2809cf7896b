package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	appgrpc "gitlab.com/timkado/api/account-cache-service/internal/adapters/grpc"
	apphttp "gitlab.com/timkado/api/account-cache-service/internal/adapters/http"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/middleware"
	appnats "gitlab.com/timkado/api/account-cache-service/internal/adapters/nats"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
	"gitlab.com/timkado/api/account-cache-service/pkg/safego"
)

// App holds the wired components of the service.
type App struct {
	configProvider   config.Provider
	logger           domain.Logger
	httpServeMux     *http.ServeMux
	httpServer       *http.Server
	grpcServer       *appgrpc.Server
	accountHandlers  *apphttp.AccountHandlers
	apiKeyMiddleware APIKeyMiddleware
	storeBackend     *StoreBackend
	refreshConsumer  *appnats.RefreshConsumer
}

// NewApp is the constructor for App, also for Wire.
func NewApp(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	mux *http.ServeMux,
	server *http.Server,
	grpcSrv *appgrpc.Server,
	accountHandlers *apphttp.AccountHandlers,
	apiKeyMiddleware APIKeyMiddleware,
	storeBackend *StoreBackend,
	refreshConsumer *appnats.RefreshConsumer,
) (*App, func(), error) {
	app := &App{
		configProvider:   cfgProvider,
		logger:           appLogger,
		httpServeMux:     mux,
		httpServer:       server,
		grpcServer:       grpcSrv,
		accountHandlers:  accountHandlers,
		apiKeyMiddleware: apiKeyMiddleware,
		storeBackend:     storeBackend,
		refreshConsumer:  refreshConsumer,
	}

	cleanup := func() {
		app.logger.Info(context.Background(), "Running app cleanup...")
		if app.grpcServer != nil {
			app.grpcServer.GracefulStop()
		}
	}
	return app, cleanup, nil
}

// registerRoutes mounts health, readiness, metrics and the account routes on the mux.
func (a *App) registerRoutes() {
	a.httpServeMux.Handle("GET /health", http.HandlerFunc(apphttp.HealthHandler))

	checks := []apphttp.ReadinessCheck{a.storeBackend.Readiness}
	if a.refreshConsumer != nil {
		checks = append(checks, apphttp.ReadinessCheck{Name: "nats", Check: a.refreshConsumer.Ping})
	}
	a.httpServeMux.Handle("GET /ready", middleware.RequestIDMiddleware(apphttp.ReadyHandler(checks, a.logger)))

	a.httpServeMux.Handle("GET /metrics", promhttp.Handler())

	a.accountHandlers.Register(a.httpServeMux, func(h http.Handler) http.Handler {
		return middleware.RequestIDMiddleware(a.apiKeyMiddleware(middleware.AccountScopeMiddleware(h)))
	})
}

// Run starts the servers and the refresh consumer and blocks until shutdown completes.
func (a *App) Run(ctx context.Context) error {
	appCfg := a.configProvider.Get()
	a.logger.Info(ctx, "Starting application",
		"service_name", appCfg.App.ServiceName,
		"version", appCfg.App.Version,
		"store_backend", appCfg.Store.Backend,
	)

	a.registerRoutes()

	if err := a.grpcServer.Start(); err != nil {
		return fmt.Errorf("failed to start gRPC server: %w", err)
	}

	if err := a.refreshConsumer.Start(); err != nil {
		// The cache still serves reads without refresh events.
		a.logger.Error(ctx, "Failed to start refresh consumer", "error", err.Error())
	}

	safego.Execute(ctx, a.logger, "SignalListenerAndGracefulShutdown", func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			a.logger.Info(context.Background(), "Shutdown signal received, initiating graceful shutdown...", "signal", sig.String())
		case <-ctx.Done():
			a.logger.Info(context.Background(), "Application context cancelled, initiating graceful shutdown...")
		}

		shutdownTimeout := 30 * time.Second
		if s := a.configProvider.Get().App.ShutdownTimeoutSeconds; s > 0 {
			shutdownTimeout = time.Duration(s) * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop taking refresh events before the servers so in-flight refreshes can still persist.
		a.refreshConsumer.Close()
		a.grpcServer.GracefulStop()

		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(context.Background(), "HTTP server graceful shutdown failed", "error", err.Error())
		}
		a.logger.Info(context.Background(), "HTTP server shut down.")
	})

	a.logger.Info(ctx, fmt.Sprintf("HTTP server listening on port %d", appCfg.Server.HTTPPort))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error(ctx, "HTTP server ListenAndServe error", "error", err.Error())
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.logger.Info(ctx, "Application shut down gracefully or server closed.")
	return nil
}
