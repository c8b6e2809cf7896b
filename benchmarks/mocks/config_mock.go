package mocks

import (
	"sync"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
)

// MockConfigProvider implements config.Provider for tests and benchmarks
type MockConfigProvider struct {
	mu     sync.RWMutex
	config *config.Config
}

// NewMockConfigProvider creates a new mock config provider with test settings
func NewMockConfigProvider() *MockConfigProvider {
	upstream := config.UpstreamServiceConfig{
		TimeoutMs:               2000,
		AttemptTimeoutMs:        500,
		RetryMax:                2,
		RetryWaitMinMs:          1,
		RetryWaitMaxMs:          5,
		BreakerFailureThreshold: 5,
		BreakerOpenSeconds:      30,
	}
	crm := upstream
	crm.BaseURL = "http://crm.mock"
	payments := upstream
	payments.BaseURL = "http://payments.mock"

	return &MockConfigProvider{
		config: &config.Config{
			Server: config.ServerConfig{
				HTTPPort: 0, // Random port
				GRPCPort: 0,
				PodID:    "test-pod",
			},
			Redis: config.RedisConfig{
				Address: "mock-redis:6379",
			},
			Store: config.StoreConfig{
				Backend: config.StoreBackendRedis,
			},
			NATS: config.NATSConfig{
				SubjectPrefix: "account.cache.refresh",
				QueueGroup:    "account_cache_refreshers",
			},
			Log: config.LogConfig{
				Level: "error", // Minimize I/O overhead during benchmarks
			},
			Auth: config.AuthConfig{
				APIKey: "test-api-key",
			},
			Cache: config.CacheConfig{
				ProfileTTLSeconds:  300,
				BillingTTLSeconds:  60,
				DegradedTTLSeconds: 15,
			},
			Upstream: config.UpstreamConfig{
				CRM:      crm,
				Payments: payments,
			},
			App: config.AppConfig{
				ServiceName:            "account-cache-service-test",
				Version:                "test",
				ShutdownTimeoutSeconds: 1,
			},
		},
	}
}

// Get implements config.Provider
func (m *MockConfigProvider) Get() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// UpdateConfig allows updating config during tests
func (m *MockConfigProvider) UpdateConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
}
