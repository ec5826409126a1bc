// Package config loads the gateway configuration from an optional YAML
// file with environment-variable overrides (prefix GATEWAY_).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quantarc/ordergate/internal/risk"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Risk      risk.Limits     `mapstructure:"risk"`
	Execution ExecutionConfig `mapstructure:"execution"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	Version        string   `mapstructure:"version"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SeedUser is a demo account created at startup.
type SeedUser struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Role     string `mapstructure:"role"`
}

// AuthConfig holds token and user-registry settings.
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	Users       []SeedUser    `mapstructure:"users"`
}

// ExecutionConfig holds the execution engine tunables.
type ExecutionConfig struct {
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	VenueLatency     time.Duration `mapstructure:"venue_latency"`
	VenueSuccessRate float64       `mapstructure:"venue_success_rate"`
}

// RateLimitConfig holds the global token-bucket settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.version", "1.0.0")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("auth.jwt_secret", "dev-secret-change-in-production")
	v.SetDefault("auth.token_expiry", 30*time.Minute)
	v.SetDefault("auth.users", []map[string]interface{}{
		{"username": "trader1", "password": "trader123", "role": "TRADER"},
		{"username": "risk1", "password": "risk123", "role": "RISK_MANAGER"},
		{"username": "compliance1", "password": "compliance123", "role": "COMPLIANCE"},
		{"username": "admin", "password": "admin123", "role": "ADMIN"},
	})

	defaults := risk.DefaultLimits()
	v.SetDefault("risk.max_position_size", defaults.MaxPositionSize)
	v.SetDefault("risk.max_daily_volume", defaults.MaxDailyVolume)
	v.SetDefault("risk.max_net_exposure", defaults.MaxNetExposure)
	v.SetDefault("risk.max_gross_exposure", defaults.MaxGrossExposure)
	v.SetDefault("risk.kill_switch_enabled", false)

	v.SetDefault("execution.max_retry_attempts", 3)
	v.SetDefault("execution.backoff_base", time.Second)
	v.SetDefault("execution.breaker_threshold", 5)
	v.SetDefault("execution.breaker_cooldown", 60*time.Second)
	v.SetDefault("execution.venue_latency", 100*time.Millisecond)
	v.SetDefault("execution.venue_success_rate", 0.9)

	v.SetDefault("rate_limit.requests_per_second", 100.0)
	v.SetDefault("rate_limit.burst", 200)

	v.SetDefault("logging.level", "info")
}
