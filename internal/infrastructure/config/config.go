package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Vendor         VendorConfig
	Webhook        WebhookConfig
	Reconciliation ReconciliationConfig
	Operator       OperatorConfig
	Sentry         SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MinConnections int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	HealthCheck    time.Duration
}

// RedisConfig holds Redis configuration (asynq broker + rate limiting)
type RedisConfig struct {
	URL      string
	Password string
	PoolSize int
}

// VendorConfig holds IA Café API client configuration. ProxyURL is decided
// here, once; the client never falls back to a different transport at
// request time.
type VendorConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	ProxyURL string
}

// WebhookConfig holds inbound webhook verification configuration
type WebhookConfig struct {
	Secret string
}

// ReconciliationConfig holds stuck-transaction handling configuration
type ReconciliationConfig struct {
	StuckTimeout  time.Duration
	SweepInterval time.Duration
	SweepLimit    int
}

// OperatorConfig holds operator endpoint auth configuration
type OperatorConfig struct {
	JWTSecret string
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// .env file is optional for production (env vars are used)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", 10*time.Second)
	viper.SetDefault("server_write_timeout", 10*time.Second)
	viper.SetDefault("server_shutdown_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database_max_connections", 25)
	viper.SetDefault("database_min_connections", 2)
	viper.SetDefault("database_max_lifetime", time.Hour)
	viper.SetDefault("database_max_idle_time", 30*time.Minute)
	viper.SetDefault("database_health_check", time.Minute)

	// Redis defaults
	viper.SetDefault("redis_pool_size", 10)

	// Vendor defaults
	viper.SetDefault("vendor_base_url", "https://iacafe.com.ng/devapi/v1")
	viper.SetDefault("vendor_timeout", 30*time.Second)

	// Reconciliation defaults
	viper.SetDefault("reconciliation_stuck_timeout", 10*time.Minute)
	viper.SetDefault("reconciliation_sweep_interval", 5*time.Minute)
	viper.SetDefault("reconciliation_sweep_limit", 100)
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Vendor.APIKey == "" {
		return fmt.Errorf("VENDOR_API_KEY is required")
	}
	if cfg.Operator.JWTSecret == "" {
		return fmt.Errorf("OPERATOR_JWT_SECRET is required")
	}
	if len(cfg.Operator.JWTSecret) < 32 {
		return fmt.Errorf("OPERATOR_JWT_SECRET must be at least 32 characters")
	}
	// A missing webhook secret is a trust degradation, not a startup
	// failure; ingestion flags unverified deliveries instead.
	return nil
}
