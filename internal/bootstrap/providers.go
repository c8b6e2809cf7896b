package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	appgrpc "gitlab.com/timkado/api/account-cache-service/internal/adapters/grpc"
	apphttp "gitlab.com/timkado/api/account-cache-service/internal/adapters/http"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/logger"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/middleware"
	appnats "gitlab.com/timkado/api/account-cache-service/internal/adapters/nats"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/postgres"
	appredis "gitlab.com/timkado/api/account-cache-service/internal/adapters/redis"
	"gitlab.com/timkado/api/account-cache-service/internal/adapters/upstream"
	"gitlab.com/timkado/api/account-cache-service/internal/application"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// APIKeyMiddleware guards the account routes.
type APIKeyMiddleware func(http.Handler) http.Handler

// StoreBackend is the configured durable cache store with its readiness check.
type StoreBackend struct {
	Stores    application.CacheStores
	Readiness apphttp.ReadinessCheck
}

// InitialZapLoggerProvider provides a basic *zap.Logger instance, primarily for config initialization.
// It returns the logger, a cleanup function (for syncing), and an error if creation fails.
func InitialZapLoggerProvider() (*zap.Logger, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		logger, err = zap.NewDevelopment()
		if err != nil {
			logger = zap.NewExample()
			fmt.Fprintf(os.Stderr, "Failed to create initial zap logger (production and development failed, falling back to example): %v\n", err)
		}
	}

	cleanup := func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync initial zap logger: %v\n", syncErr)
		}
	}
	return logger, cleanup, nil
}

// ConfigProvider provides the application configuration. appCtx bounds the reload goroutines.
func ConfigProvider(appCtx context.Context, logger *zap.Logger) (config.Provider, error) {
	return config.NewViperProvider(appCtx, logger)
}

// LoggerProvider provides the application logger.
func LoggerProvider(cfgProvider config.Provider) (domain.Logger, error) {
	return logger.NewZapAdapter(cfgProvider, cfgProvider.Get().App.ServiceName)
}

// HTTPServeMuxProvider provides the main HTTP multiplexer.
func HTTPServeMuxProvider() *http.ServeMux {
	return http.NewServeMux()
}

// HTTPGracefulServerProvider provides a new HTTP server configured for graceful shutdown.
func HTTPGracefulServerProvider(cfgProvider config.Provider, mux *http.ServeMux) *http.Server {
	appCfg := cfgProvider.Get()

	readTimeout := 10 * time.Second
	writeTimeout := 15 * time.Second
	idleTimeout := 60 * time.Second
	if appCfg.App.ReadTimeoutSeconds > 0 {
		readTimeout = time.Duration(appCfg.App.ReadTimeoutSeconds) * time.Second
	}
	if appCfg.App.WriteTimeoutSeconds > 0 {
		writeTimeout = time.Duration(appCfg.App.WriteTimeoutSeconds) * time.Second
	}
	if appCfg.App.IdleTimeoutSeconds > 0 {
		idleTimeout = time.Duration(appCfg.App.IdleTimeoutSeconds) * time.Second
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", appCfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// APIKeyMiddlewareProvider provides the API key middleware for the account routes.
func APIKeyMiddlewareProvider(cfgProvider config.Provider, logger domain.Logger) APIKeyMiddleware {
	return middleware.APIKeyAuthMiddleware(cfgProvider, logger)
}

// RedisClientProvider provides a Redis client and a cleanup function.
func RedisClientProvider(cfgProvider config.Provider, appLogger domain.Logger) (*redis.Client, func(), error) {
	appCfg := cfgProvider.Get()
	client := redis.NewClient(&redis.Options{
		Addr:     appCfg.Redis.Address,
		Password: appCfg.Redis.Password,
		DB:       appCfg.Redis.DB,
	})
	if err := appredis.Ping(context.Background(), client); err != nil {
		appLogger.Error(context.Background(), "Failed to connect to Redis", "error", err.Error(), "address", appCfg.Redis.Address)
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", appCfg.Redis.Address, err)
	}
	cleanup := func() {
		client.Close()
		appLogger.Info(context.Background(), "Redis connection closed")
	}
	appLogger.Info(context.Background(), "Successfully connected to Redis", "address", appCfg.Redis.Address)
	return client, cleanup, nil
}

// StoreBackendProvider connects the backend selected by store.backend and builds one record store per
// cache domain on it.
func StoreBackendProvider(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*StoreBackend, func(), error) {
	appCfg := cfgProvider.Get()
	switch appCfg.Store.Backend {
	case config.StoreBackendPostgres:
		pool, err := postgres.NewPool(ctx, appCfg.Postgres.DSN, appCfg.Postgres.MigrateOnStart, appLogger)
		if err != nil {
			appLogger.Error(ctx, "Failed to connect to Postgres", "error", err.Error())
			return nil, nil, err
		}
		cleanup := func() {
			pool.Close()
			appLogger.Info(context.Background(), "Postgres pool closed")
		}
		return &StoreBackend{
			Stores: application.CacheStores{
				Profiles:      postgres.NewCacheRecordStore[domain.Profile](pool, domain.DomainProfile, appLogger),
				Subscriptions: postgres.NewCacheRecordStore[domain.Subscription](pool, domain.DomainBillingSubscription, appLogger),
				Invoices:      postgres.NewCacheRecordStore[[]domain.Invoice](pool, domain.DomainBillingInvoices, appLogger),
			},
			Readiness: apphttp.ReadinessCheck{Name: "postgres", Check: pool.Ping},
		}, cleanup, nil
	default:
		client, cleanup, err := RedisClientProvider(cfgProvider, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return &StoreBackend{
			Stores: application.CacheStores{
				Profiles:      appredis.NewCacheRecordStore[domain.Profile](client, domain.DomainProfile, appLogger),
				Subscriptions: appredis.NewCacheRecordStore[domain.Subscription](client, domain.DomainBillingSubscription, appLogger),
				Invoices:      appredis.NewCacheRecordStore[[]domain.Invoice](client, domain.DomainBillingInvoices, appLogger),
			},
			Readiness: apphttp.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
				return appredis.Ping(ctx, client)
			}},
		}, cleanup, nil
	}
}

// CacheStoresProvider exposes the record stores of the configured backend.
func CacheStoresProvider(backend *StoreBackend) application.CacheStores {
	return backend.Stores
}

// CoordinatorProvider provides the process-wide single-flight coordinator.
func CoordinatorProvider(logger domain.Logger) *application.Coordinator {
	return application.NewCoordinator(logger)
}

// CRMClientProvider provides the CRM upstream client.
func CRMClientProvider(cfgProvider config.Provider, logger domain.Logger) *upstream.CRMClient {
	return upstream.NewCRMClient(cfgProvider, logger)
}

// PaymentsClientProvider provides the payments upstream client.
func PaymentsClientProvider(cfgProvider config.Provider, logger domain.Logger) *upstream.PaymentsClient {
	return upstream.NewPaymentsClient(cfgProvider, logger)
}

// AccountCacheServiceProvider provides the account cache service.
func AccountCacheServiceProvider(
	logger domain.Logger,
	cfgProvider config.Provider,
	coordinator *application.Coordinator,
	stores application.CacheStores,
	crm domain.ProfileFetcher,
	payments application.PaymentsFetcher,
) *application.AccountCacheService {
	return application.NewAccountCacheService(logger, cfgProvider, coordinator, stores, crm, payments)
}

// AccountHandlersProvider provides the HTTP account handlers.
func AccountHandlersProvider(accounts apphttp.AccountReader, logger domain.Logger) *apphttp.AccountHandlers {
	return apphttp.NewAccountHandlers(accounts, logger)
}

// GRPCHandlerProvider provides the gRPC account cache handler.
func GRPCHandlerProvider(accounts appgrpc.AccountReader, logger domain.Logger) *appgrpc.AccountCacheHandler {
	return appgrpc.NewAccountCacheHandler(accounts, logger)
}

// GRPCServerProvider provides the gRPC server.
func GRPCServerProvider(appCtx context.Context, logger domain.Logger, cfgProvider config.Provider, handler *appgrpc.AccountCacheHandler) *appgrpc.Server {
	return appgrpc.NewServer(appCtx, logger, cfgProvider, handler)
}

// RefreshConsumerProvider provides the NATS refresh consumer; it is nil when NATS is not configured.
func RefreshConsumerProvider(appCtx context.Context, cfgProvider config.Provider, logger domain.Logger, refresher appnats.Refresher) (*appnats.RefreshConsumer, func(), error) {
	return appnats.NewRefreshConsumer(appCtx, cfgProvider, logger, refresher)
}

// ProviderSet is the Wire provider set for the entire application.
var ProviderSet = wire.NewSet(
	InitialZapLoggerProvider,
	ConfigProvider,
	LoggerProvider,
	HTTPServeMuxProvider,
	HTTPGracefulServerProvider,
	APIKeyMiddlewareProvider,

	// Storage
	StoreBackendProvider,
	CacheStoresProvider,

	// Upstream services
	CRMClientProvider,
	PaymentsClientProvider,
	wire.Bind(new(domain.ProfileFetcher), new(*upstream.CRMClient)),
	wire.Bind(new(application.PaymentsFetcher), new(*upstream.PaymentsClient)),

	// Application services
	CoordinatorProvider,
	AccountCacheServiceProvider,
	wire.Bind(new(apphttp.AccountReader), new(*application.AccountCacheService)),
	wire.Bind(new(appgrpc.AccountReader), new(*application.AccountCacheService)),
	wire.Bind(new(appnats.Refresher), new(*application.AccountCacheService)),

	// Surfaces
	AccountHandlersProvider,
	GRPCHandlerProvider,
	GRPCServerProvider,
	RefreshConsumerProvider,

	NewApp,
)
