// Package config loads and validates gateway configuration from the
// environment and the rule-set file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App     AppConfig
	Server  ServerConfig
	Redis   RedisConfig
	Log     LogConfig
	Gateway GatewayConfig
	Admin   AdminConfig
	Threat  ThreatConfig
	Sweep   SweepConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	TLSEnabled    bool
	TLSSkipVerify bool
	MaxRetries    int
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level              string
	Format             string
	SkipHealthLogs     bool
	SlowRequestSeconds int
}

// FailurePolicy decides the verdict when the counter store is unreachable.
type FailurePolicy string

const (
	// FailOpen allows requests during a store outage. Availability of the
	// product outweighs rate-limit strictness for a short outage.
	FailOpen FailurePolicy = "open"

	// FailClosed denies requests during a store outage.
	FailClosed FailurePolicy = "closed"
)

// IsValid checks if the failure policy is valid.
func (p FailurePolicy) IsValid() bool {
	return p == FailOpen || p == FailClosed
}

// GatewayConfig holds the decision engine configuration.
type GatewayConfig struct {
	// RulesFile is the YAML rule-set file path. Empty uses built-in
	// defaults.
	RulesFile string

	// FailurePolicy is applied when the counter store is unreachable.
	FailurePolicy FailurePolicy

	// StoreTimeout bounds each counter store call on the hot path.
	StoreTimeout time.Duration

	// FallbackRatePerSec and FallbackBurst shape the per-identity token
	// bucket that bounds traffic while the store is down under the
	// fail-open policy.
	FallbackRatePerSec float64
	FallbackBurst      int
}

// AdminConfig holds admin API authentication configuration.
type AdminConfig struct {
	// APIKeys are the accepted admin keys. Empty disables all mutating
	// admin endpoints.
	APIKeys []string
}

// ThreatConfig holds threat analysis configuration.
type ThreatConfig struct {
	// Retention bounds how long events are kept.
	Retention time.Duration

	// MaxEvents caps the event log size regardless of age.
	MaxEvents int64

	// LevelLow, LevelMedium, LevelHigh are the monotonic level cutoffs.
	LevelLow    int
	LevelMedium int
	LevelHigh   int
}

// SweepConfig holds the periodic maintenance schedule.
type SweepConfig struct {
	// Interval between sweeps of expired list entries and old events.
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "guardgate"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodySize:     getEnvInt64("SERVER_MAX_BODY_SIZE", 1<<20), // 1MB default
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			TLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
			TLSSkipVerify: getEnvBool("REDIS_TLS_SKIP_VERIFY", false),
			MaxRetries:    getEnvInt("REDIS_MAX_RETRIES", 3),
			MinRetryDelay: getEnvDuration("REDIS_MIN_RETRY_DELAY", 100*time.Millisecond),
			MaxRetryDelay: getEnvDuration("REDIS_MAX_RETRY_DELAY", 3*time.Second),
		},
		Log: LogConfig{
			Level:              getEnv("LOG_LEVEL", "info"),
			Format:             getEnv("LOG_FORMAT", "json"),
			SkipHealthLogs:     getEnvBool("LOG_SKIP_HEALTH", true),
			SlowRequestSeconds: getEnvInt("LOG_SLOW_REQUEST_SECONDS", 5),
		},
		Gateway: GatewayConfig{
			RulesFile:          getEnv("RULES_FILE", ""),
			FailurePolicy:      FailurePolicy(getEnv("GATEWAY_FAILURE_POLICY", "open")),
			StoreTimeout:       getEnvDuration("GATEWAY_STORE_TIMEOUT", 150*time.Millisecond),
			FallbackRatePerSec: getEnvFloat("GATEWAY_FALLBACK_RATE", 10),
			FallbackBurst:      getEnvInt("GATEWAY_FALLBACK_BURST", 20),
		},
		Admin: AdminConfig{
			APIKeys: getEnvSlice("ADMIN_API_KEYS", nil),
		},
		Threat: ThreatConfig{
			Retention:   getEnvDuration("THREAT_RETENTION", 24*time.Hour),
			MaxEvents:   getEnvInt64("THREAT_MAX_EVENTS", 100_000),
			LevelLow:    getEnvInt("THREAT_LEVEL_LOW", 10),
			LevelMedium: getEnvInt("THREAT_LEVEL_MEDIUM", 50),
			LevelHigh:   getEnvInt("THREAT_LEVEL_HIGH", 200),
		},
		Sweep: SweepConfig{
			Interval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if !c.Gateway.FailurePolicy.IsValid() {
		return fmt.Errorf("invalid gateway failure policy: %q (must be open or closed)", c.Gateway.FailurePolicy)
	}
	if c.Gateway.StoreTimeout <= 0 {
		return fmt.Errorf("gateway store timeout must be positive")
	}
	if c.Threat.Retention <= 0 {
		return fmt.Errorf("threat retention must be positive")
	}
	if c.Threat.MaxEvents <= 0 {
		return fmt.Errorf("threat max events must be positive")
	}
	if !(c.Threat.LevelLow < c.Threat.LevelMedium && c.Threat.LevelMedium < c.Threat.LevelHigh) {
		return fmt.Errorf("threat level thresholds must be strictly increasing: %d, %d, %d",
			c.Threat.LevelLow, c.Threat.LevelMedium, c.Threat.LevelHigh)
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.IsProduction() && len(c.Admin.APIKeys) == 0 {
		return fmt.Errorf("ADMIN_API_KEYS is required in production")
	}
	return nil
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the server address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment checks if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Environment variable helpers

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, p := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
