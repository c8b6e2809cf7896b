package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/timkado/api/account-cache-service/benchmarks/mocks"
	appgrpc "gitlab.com/timkado/api/account-cache-service/internal/adapters/grpc"
	apphttp "gitlab.com/timkado/api/account-cache-service/internal/adapters/http"
	"gitlab.com/timkado/api/account-cache-service/internal/application"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

func newTestApp(t *testing.T) (*App, *mocks.MockCRM) {
	t.Helper()
	logger := mocks.NewMockLogger()
	cfgProvider := mocks.NewMockConfigProvider()
	crm := &mocks.MockCRM{}
	backend := &StoreBackend{
		Stores: application.CacheStores{
			Profiles:      mocks.NewMockCacheRecordStore[domain.Profile](),
			Subscriptions: mocks.NewMockCacheRecordStore[domain.Subscription](),
			Invoices:      mocks.NewMockCacheRecordStore[[]domain.Invoice](),
		},
		Readiness: apphttp.ReadinessCheck{Name: "memory", Check: func(context.Context) error { return nil }},
	}
	svc := AccountCacheServiceProvider(logger, cfgProvider, CoordinatorProvider(logger), CacheStoresProvider(backend), crm, &mocks.MockPayments{})
	mux := HTTPServeMuxProvider()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	app, _, err := NewApp(cfgProvider, logger, mux, HTTPGracefulServerProvider(cfgProvider, mux),
		appgrpc.NewServer(ctx, logger, cfgProvider, GRPCHandlerProvider(svc, logger)),
		AccountHandlersProvider(svc, logger), APIKeyMiddlewareProvider(cfgProvider, logger), backend, nil)
	if err != nil {
		t.Fatal(err)
	}
	app.registerRoutes()
	return app, crm
}

func TestRegisteredRoutes(t *testing.T) {
	app, crm := newTestApp(t)
	crm.SetResult(&domain.Profile{UserID: "u1"}, nil)

	tests := []struct {
		name   string
		target string
		apiKey string
		want   int
	}{
		{"health", "/health", "", http.StatusOK},
		{"ready", "/ready", "", http.StatusOK},
		{"metrics", "/metrics", "", http.StatusOK},
		{"profile without key", "/v1/tenants/t1/users/u1/profile", "", http.StatusUnauthorized},
		{"profile with key", "/v1/tenants/t1/users/u1/profile", "test-api-key", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			rec := httptest.NewRecorder()
			app.httpServeMux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
