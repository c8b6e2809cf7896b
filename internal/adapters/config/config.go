package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "ACCOUNT_CACHE"

// Store backends understood by StoreConfig.Backend.
const (
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

// ServerConfig holds server-related configurations.
// Note: Fields should be exported (start with uppercase) to be unmarshalled by Viper.
type ServerConfig struct {
	HTTPPort int    `mapstructure:"http_port"`
	GRPCPort int    `mapstructure:"grpc_port"` // 0 disables the gRPC listener
	PodID    string `mapstructure:"pod_id"`
}

// RedisConfig holds Redis-related configurations.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"` // Optional
	DB       int    `mapstructure:"db"`       // Optional
}

// PostgresConfig holds the connection settings for the Postgres-backed cache store.
type PostgresConfig struct {
	DSN            string `mapstructure:"dsn"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// StoreConfig selects the durable cache store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "redis" or "postgres"
}

// NATSConfig holds the refresh-event consumer settings. An empty URL disables the consumer.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	QueueGroup    string `mapstructure:"queue_group"`
}

// LogConfig holds logging-related configurations.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AuthConfig holds authentication-related configurations.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"` // Should primarily come from ENV
}

// CacheConfig holds per-domain freshness windows.
type CacheConfig struct {
	ProfileTTLSeconds  int `mapstructure:"profile_ttl_seconds"`
	BillingTTLSeconds  int `mapstructure:"billing_ttl_seconds"`
	DegradedTTLSeconds int `mapstructure:"degraded_ttl_seconds"` // TTL for records holding no payload; 0 disables
}

// UpstreamServiceConfig holds the client settings for a single upstream service.
type UpstreamServiceConfig struct {
	BaseURL                 string `mapstructure:"base_url"`
	APIKey                  string `mapstructure:"api_key"`
	TimeoutMs               int    `mapstructure:"timeout_ms"`         // Overall deadline, retries included
	AttemptTimeoutMs        int    `mapstructure:"attempt_timeout_ms"` // Per HTTP attempt
	RetryMax                int    `mapstructure:"retry_max"`
	RetryWaitMinMs          int    `mapstructure:"retry_wait_min_ms"`
	RetryWaitMaxMs          int    `mapstructure:"retry_wait_max_ms"`
	BreakerFailureThreshold int    `mapstructure:"breaker_failure_threshold"` // Consecutive failures before opening
	BreakerOpenSeconds      int    `mapstructure:"breaker_open_seconds"`
}

// UpstreamConfig groups the upstream services the cache shields.
type UpstreamConfig struct {
	CRM      UpstreamServiceConfig `mapstructure:"crm"`
	Payments UpstreamServiceConfig `mapstructure:"payments"`
}

// AppConfig holds application-specific configurations.
type AppConfig struct {
	ServiceName            string `mapstructure:"service_name"`
	Version                string `mapstructure:"version"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
	ReadTimeoutSeconds     int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds     int    `mapstructure:"idle_timeout_seconds"`
}

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Store    StoreConfig    `mapstructure:"store"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	App      AppConfig      `mapstructure:"app"`
}

// ProfileTTL returns the freshness window for cached CRM profiles.
func (c CacheConfig) ProfileTTL() time.Duration {
	return time.Duration(c.ProfileTTLSeconds) * time.Second
}

// BillingTTL returns the freshness window for cached subscriptions and invoices.
func (c CacheConfig) BillingTTL() time.Duration {
	return time.Duration(c.BillingTTLSeconds) * time.Second
}

// DegradedTTL returns the freshness window for records that hold no payload.
func (c CacheConfig) DegradedTTL() time.Duration {
	return time.Duration(c.DegradedTTLSeconds) * time.Second
}

// Provider defines an interface for accessing application configuration.
// This allows for easy mocking in tests and decouples the app from Viper.
type Provider interface {
	Get() *Config
}

// StaticProvider serves a fixed configuration. Used by tests and tools that do not need reloads.
type StaticProvider struct {
	Config *Config
}

// Get returns the wrapped configuration.
func (s StaticProvider) Get() *Config {
	return s.Config
}

// viperProvider implements the Provider interface using Viper.
type viperProvider struct {
	config atomic.Pointer[Config]
	logger *zap.Logger // Using zap.Logger directly for config internal logging, not domain.Logger to avoid circular deps
}

// SetDefaults registers default values for every setting that has a sensible one.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("store.backend", StoreBackendRedis)
	v.SetDefault("postgres.migrate_on_start", true)
	v.SetDefault("nats.subject_prefix", "account.cache.refresh")
	v.SetDefault("nats.queue_group", "account_cache_refreshers")
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.profile_ttl_seconds", 300)
	v.SetDefault("cache.billing_ttl_seconds", 60)
	v.SetDefault("cache.degraded_ttl_seconds", 15)
	for _, svc := range []string{"crm", "payments"} {
		prefix := "upstream." + svc + "."
		v.SetDefault(prefix+"timeout_ms", 10000)
		v.SetDefault(prefix+"attempt_timeout_ms", 3000)
		v.SetDefault(prefix+"retry_max", 3)
		v.SetDefault(prefix+"retry_wait_min_ms", 200)
		v.SetDefault(prefix+"retry_wait_max_ms", 2000)
		v.SetDefault(prefix+"breaker_failure_threshold", 5)
		v.SetDefault(prefix+"breaker_open_seconds", 30)
	}
	v.SetDefault("app.service_name", "account-cache-service")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.shutdown_timeout_seconds", 30)
	v.SetDefault("app.read_timeout_seconds", 10)
	v.SetDefault("app.write_timeout_seconds", 30)
	v.SetDefault("app.idle_timeout_seconds", 60)
}

// Load reads configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("invalid config: redis.address is required for the redis store backend")
		}
	case StoreBackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("invalid config: postgres.dsn is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("invalid config: unknown store.backend %q", c.Store.Backend)
	}
	if c.Upstream.CRM.BaseURL == "" {
		return fmt.Errorf("invalid config: upstream.crm.base_url is required")
	}
	if c.Upstream.Payments.BaseURL == "" {
		return fmt.Errorf("invalid config: upstream.payments.base_url is required")
	}
	if c.Cache.ProfileTTLSeconds <= 0 || c.Cache.BillingTTLSeconds <= 0 {
		return fmt.Errorf("invalid config: cache TTLs must be positive")
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	// Configure Viper to read from YAML file
	v.SetConfigName(getEnv("VIPER_CONFIG_NAME", "config"))
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnv("VIPER_CONFIG_PATH", "/app/config"))
	v.AddConfigPath(".")

	// Environment variables win over the file, e.g. ACCOUNT_CACHE_UPSTREAM_CRM_BASE_URL
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	return v
}

// NewViperProvider creates and initializes a new configuration provider using Viper.
// It loads configuration from file and environment variables, and sets up hot-reloading.
// appCtx is the application lifecycle context used for graceful shutdown of background tasks.
func NewViperProvider(appCtx context.Context, logger *zap.Logger) (Provider, error) {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Warn("Config file not found; relying on defaults and environment variables", zap.Error(err))
		} else {
			logger.Error("Failed to read config file", zap.Error(err))
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := Load(v)
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err))
		return nil, err
	}

	p := &viperProvider{logger: logger}
	p.config.Store(cfg)

	// Set up SIGHUP for hot-reloading configuration
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Panic recovered in SIGHUP handler goroutine",
					zap.String("goroutine_name", "SIGHUPConfigReloader"),
					zap.Any("panic_info", r),
					zap.String("stacktrace", string(debug.Stack())),
				)
			}
		}()
		defer signal.Stop(sigChan)
		for {
			select {
			case sig := <-sigChan:
				p.logger.Info("SIGHUP received, attempting to reload configuration...", zap.String("signal", sig.String()))
				if err := v.ReadInConfig(); err != nil {
					p.logger.Error("Failed to re-read config file on SIGHUP", zap.Error(err))
					continue
				}
				p.reload(v, "sighup")
			case <-appCtx.Done():
				p.logger.Info("SIGHUPConfigReloader goroutine shutting down due to context cancellation.")
				return
			}
		}
	}()

	if v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Panic recovered in OnConfigChange callback",
						zap.String("event_name", e.Name),
						zap.String("event_op", e.Op.String()),
						zap.Any("panic_info", r),
						zap.String("stacktrace", string(debug.Stack())),
					)
				}
			}()
			p.logger.Info("Config file changed", zap.String("name", e.Name), zap.String("op", e.Op.String()))
			p.reload(v, "file_change")
		})
		v.WatchConfig()
	}

	p.logger.Info("Configuration loaded successfully", zap.String("config_file_used", v.ConfigFileUsed()))
	return p, nil
}

// reload swaps in a freshly unmarshalled config. Invalid configs are rejected and the old one is kept.
func (p *viperProvider) reload(v *viper.Viper, trigger string) {
	newCfg, err := Load(v)
	if err != nil {
		p.logger.Error("Rejected reloaded configuration", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	p.config.Store(newCfg)
	p.logger.Info("Configuration reloaded successfully", zap.String("trigger", trigger))
}

// Get returns the current configuration.
func (p *viperProvider) Get() *Config {
	return p.config.Load()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
