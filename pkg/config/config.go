// Package config loads the proxy configuration from an optional YAML file
// and MARKET_-prefixed environment variables (e.g. MARKET_SERVER_PORT,
// MARKET_REDIS_ADDRESS) using viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/client"
	"github.com/Sternrassler/crypto-market-client/pkg/logging"
	"github.com/Sternrassler/crypto-market-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "MARKET"

// Config holds all configuration for the market proxy
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Warmup    WarmupConfig    `mapstructure:"warmup"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`

	// Per-client token bucket for the API; <= 0 disables it
	ClientRPS   float64 `mapstructure:"client_rps"`
	ClientBurst int     `mapstructure:"client_burst"`
}

// UpstreamConfig holds the market data API settings
type UpstreamConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Jitter         float64       `mapstructure:"jitter"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// RedisConfig holds Redis connection configuration.
// An empty address runs the proxy memory-only.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	Short          time.Duration `mapstructure:"short"`
	Medium         time.Duration `mapstructure:"medium"`
	Long           time.Duration `mapstructure:"long"`
	MemorySize     int           `mapstructure:"memory_size"`
	StaleRetention time.Duration `mapstructure:"stale_retention"`
}

// RateLimitConfig holds upstream pacing configuration
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// WarmupConfig holds startup cache warming settings
type WarmupConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Parallel bool          `mapstructure:"parallel"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables.
// An empty configPath looks for market.yaml in ./config and the working
// directory; a missing file is not an error in that case.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("market")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.client_rps", 10)
	v.SetDefault("server.client_burst", 20)

	// Upstream defaults
	v.SetDefault("upstream.base_url", client.DefaultBaseURL)
	v.SetDefault("upstream.user_agent", "CryptoMarket/1.0")
	v.SetDefault("upstream.attempt_timeout", "15s")
	v.SetDefault("upstream.max_retries", 3)
	v.SetDefault("upstream.initial_backoff", "2s")
	v.SetDefault("upstream.max_backoff", "8s")
	v.SetDefault("upstream.jitter", 0.0)
	v.SetDefault("upstream.max_concurrency", 5)

	// Redis defaults
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.short", "5m")
	v.SetDefault("cache.medium", "30m")
	v.SetDefault("cache.long", "6h")
	v.SetDefault("cache.memory_size", 1000)
	v.SetDefault("cache.stale_retention", "24h")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests_per_second", 0.5)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.cooldown", "60s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)

	// Warmup defaults
	v.SetDefault("warmup.enabled", true)
	v.SetDefault("warmup.parallel", true)
	v.SetDefault("warmup.timeout", "30s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535 (got %d)", c.Server.Port)
	}

	// Upstream validation
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upstream base_url must be an absolute http(s) url (got %q)", c.Upstream.BaseURL)
	}

	if c.Upstream.UserAgent == "" {
		return fmt.Errorf("upstream user_agent is required")
	}

	if c.Upstream.AttemptTimeout <= 0 {
		return fmt.Errorf("upstream attempt_timeout must be > 0")
	}

	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("upstream max_retries must be >= 0")
	}

	if c.Upstream.MaxConcurrency <= 0 {
		return fmt.Errorf("upstream max_concurrency must be > 0")
	}

	if c.Upstream.Jitter < 0 || c.Upstream.Jitter >= 1 {
		return fmt.Errorf("upstream jitter must be in [0, 1)")
	}

	// Cache validation
	if c.Cache.Short <= 0 || c.Cache.Medium <= 0 || c.Cache.Long <= 0 {
		return fmt.Errorf("cache durations must be > 0")
	}

	if c.Cache.MemorySize <= 0 {
		return fmt.Errorf("cache memory_size must be > 0")
	}

	if c.Cache.StaleRetention < 0 {
		return fmt.Errorf("cache stale_retention must be >= 0")
	}

	// Logging validation
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}

// RedisOptions returns connection options, or nil when Redis is disabled.
func (c *Config) RedisOptions() *redis.Options {
	if !c.RedisEnabled() {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Address,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

// ClientConfig converts the configuration for client.New.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(redisClient, c.Upstream.UserAgent)
	cfg.BaseURL = c.Upstream.BaseURL
	cfg.AttemptTimeout = c.Upstream.AttemptTimeout
	cfg.Retry.MaxRetries = c.Upstream.MaxRetries
	if c.Upstream.InitialBackoff > 0 {
		cfg.Retry.InitialBackoff = c.Upstream.InitialBackoff
	}
	if c.Upstream.MaxBackoff > 0 {
		cfg.Retry.MaxBackoff = c.Upstream.MaxBackoff
	}
	cfg.Retry.Jitter = c.Upstream.Jitter
	cfg.MaxConcurrency = c.Upstream.MaxConcurrency
	cfg.Durations = client.Durations{
		Short:  c.Cache.Short,
		Medium: c.Cache.Medium,
		Long:   c.Cache.Long,
	}
	cfg.MemoryCacheSize = c.Cache.MemorySize
	cfg.StaleRetention = c.Cache.StaleRetention
	cfg.RateLimit = c.Pacing()
	return cfg
}

// Pacing converts the upstream pacing settings.
func (c *Config) Pacing() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
		Cooldown:          c.RateLimit.Cooldown,
	}
}

// LogConfig converts the logging settings. Output defaults to stderr.
func (c *Config) LogConfig(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Logging.Pretty
	cfg.Service = service
	return cfg
}
