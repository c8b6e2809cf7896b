package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
store:
  backend: redis
redis:
  address: redis:6379
upstream:
  crm:
    base_url: http://crm.internal
  payments:
    base_url: http://payments.internal
    retry_max: 5
cache:
  billing_ttl_seconds: 120
`

func loadYAML(t *testing.T, doc string) (*Config, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return Load(v)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := loadYAML(t, sampleYAML)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Cache.ProfileTTL())
	assert.Equal(t, 2*time.Minute, cfg.Cache.BillingTTL())
	assert.Equal(t, 15*time.Second, cfg.Cache.DegradedTTL())
	assert.Equal(t, 3, cfg.Upstream.CRM.RetryMax)
	assert.Equal(t, 5, cfg.Upstream.Payments.RetryMax)
	assert.Equal(t, 10000, cfg.Upstream.Payments.TimeoutMs)
	assert.Equal(t, "account.cache.refresh", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "account-cache-service", cfg.App.ServiceName)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	_, err := loadYAML(t, strings.Replace(sampleYAML, "backend: redis", "backend: dynamo", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store.backend")
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	_, err := loadYAML(t, strings.Replace(sampleYAML, "backend: redis", "backend: postgres", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.dsn")
}

func TestValidateRequiresUpstreamURLs(t *testing.T) {
	_, err := loadYAML(t, strings.Replace(sampleYAML, "base_url: http://crm.internal", "base_url: \"\"", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream.crm.base_url")
}

func TestStaticProvider(t *testing.T) {
	cfg := &Config{App: AppConfig{ServiceName: "svc"}}
	var p Provider = StaticProvider{Config: cfg}
	assert.Same(t, cfg, p.Get())
}
