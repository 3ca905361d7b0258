package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the OmokPang server
type Config struct {
	// Server configuration
	HTTPPort int    `env:"OMOK_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"OMOK_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Game rules and timers
	Game GameConfig

	// Auth endpoint rate limiting
	Auth AuthConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// DatabaseConfig holds PostgreSQL connection and pool configuration
type DatabaseConfig struct {
	URL      string `env:"OMOK_DB_URL"`
	User     string `env:"OMOK_DB_USER"`
	Password string `env:"OMOK_DB_PASSWORD"`

	// Connection pool settings
	MaxOpenConns    int           `env:"OMOK_DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"OMOK_DB_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"OMOK_DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	Migrate bool `env:"OMOK_DB_MIGRATE" envDefault:"true"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Disabled bool   `env:"OMOK_REDIS_DISABLED" envDefault:"false"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	RoomTTL time.Duration `env:"OMOK_ROOM_TTL" envDefault:"2h"`
}

// GameConfig holds gameplay timers and point rules
type GameConfig struct {
	TurnTimeout       time.Duration `env:"OMOK_TURN_TIMEOUT" envDefault:"30s"`
	TimeLockTimeout   time.Duration `env:"OMOK_TIME_LOCK_TIMEOUT" envDefault:"3s"`
	CardSelectTimeout time.Duration `env:"OMOK_CARD_SELECT_TIMEOUT" envDefault:"20s"`
	ShieldWindow      time.Duration `env:"OMOK_SHIELD_WINDOW" envDefault:"5s"`

	RerollCost int `env:"OMOK_REROLL_COST" envDefault:"40"`
	WinPoints  int `env:"OMOK_WIN_POINTS" envDefault:"80"`
	LosePoints int `env:"OMOK_LOSE_POINTS" envDefault:"40"`
}

// AuthConfig holds per-IP rate limits for signup and login
type AuthConfig struct {
	Rate  float64 `env:"OMOK_AUTH_RATE" envDefault:"1"`
	Burst int     `env:"OMOK_AUTH_BURST" envDefault:"5"`
}

// WorkerConfig holds settlement worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"2"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required (OMOK_DB_URL)")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database pool size must be at least 1")
	}

	// Validate Redis config
	if !c.Redis.Disabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate game timers
	timers := map[string]time.Duration{
		"turn timeout":        c.Game.TurnTimeout,
		"time lock timeout":   c.Game.TimeLockTimeout,
		"card select timeout": c.Game.CardSelectTimeout,
		"shield window":       c.Game.ShieldWindow,
	}
	for name, d := range timers {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Game.RerollCost < 0 || c.Game.WinPoints < 0 || c.Game.LosePoints < 0 {
		return fmt.Errorf("point rules must not be negative")
	}

	if c.Auth.Rate <= 0 || c.Auth.Burst < 1 {
		return fmt.Errorf("auth rate limit must be positive")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// DatabaseDSN returns a postgres connection string built from OMOK_DB_URL.
// JDBC style URLs are accepted; OMOK_DB_USER and OMOK_DB_PASSWORD override
// credentials embedded in the URL.
func (c *Config) DatabaseDSN() (string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(c.Database.URL), "jdbc:")

	// libpq key=value form
	if !strings.Contains(raw, "://") {
		dsn := raw
		if c.Database.User != "" {
			dsn += " user=" + quoteDSNValue(c.Database.User)
		}
		if c.Database.Password != "" {
			dsn += " password=" + quoteDSNValue(c.Database.Password)
		}
		return strings.TrimSpace(dsn), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported database scheme: %s", u.Scheme)
	}

	user := u.User.Username()
	password, _ := u.User.Password()
	if c.Database.User != "" {
		user = c.Database.User
	}
	if c.Database.Password != "" {
		password = c.Database.Password
	}
	switch {
	case user != "" && password != "":
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}

	return u.String(), nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// quoteDSNValue quotes a libpq keyword value when it holds whitespace, a
// quote or a backslash.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r'\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
