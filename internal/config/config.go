package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the gateway's full runtime configuration, read from the
// environment. Most sections read variables under a shared prefix.
type Config struct {
	App        AppConfig `envPrefix:"APP_"`
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig        `envPrefix:"JWT_"`
	RateLimit  RateLimitConfig  `envPrefix:"RATE_LIMIT_"`
	WebSocket  WebSocketConfig  `envPrefix:"WS_"`
	Assignment AssignmentConfig `envPrefix:"ADMIN_"`
	Fanout     FanoutConfig     `envPrefix:"FANOUT_"`
	Registry   RegistryConfig   `envPrefix:"REGISTRY_"`
	Logging    LoggingConfig    `envPrefix:"LOG_"`
}

type AppConfig struct {
	Name        string `env:"NAME" envDefault:"support-chat-gateway"`
	Version     string `env:"VERSION" envDefault:"dev"`
	Environment string `env:"ENV" envDefault:"development"`
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	MigrationsPath  string        `env:"DB_MIGRATIONS_PATH" envDefault:"file://migrations"`
}

type JWTConfig struct {
	Secret         string        `env:"SECRET"`
	Issuer         string        `env:"ISSUER"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
}

// RateLimitConfig covers both the HTTP limiter and the per-connection limit
// on inbound WebSocket events.
type RateLimitConfig struct {
	Enabled           bool    `env:"ENABLED" envDefault:"true"`
	RequestsPerSecond float64 `env:"RPS" envDefault:"10"`
	BurstSize         int     `env:"BURST" envDefault:"20"`
	InboundRPS        float64 `env:"WS_RPS" envDefault:"5"`
	InboundBurst      int     `env:"WS_BURST" envDefault:"10"`
}

type WebSocketConfig struct {
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	ReadBufferSize  int           `env:"READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBufferSize int           `env:"WRITE_BUFFER_SIZE" envDefault:"1024"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE" envDefault:"256"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" envDefault:"8192"`
	PingInterval    time.Duration `env:"PING_INTERVAL" envDefault:"54s"`
	PongWait        time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	WriteWait       time.Duration `env:"WRITE_WAIT" envDefault:"10s"`
}

// AssignmentConfig points at the admin service that owns ticket assignment.
type AssignmentConfig struct {
	BaseURL    string        `env:"URL"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"5s"`
	RetryCount int           `env:"RETRY_COUNT" envDefault:"2"`
	APIKey     string        `env:"API_KEY"`
}

type FanoutConfig struct {
	Concurrency int           `env:"CONCURRENCY" envDefault:"16"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type RegistryConfig struct {
	ShardCount int `env:"SHARDS" envDefault:"32"`
}

type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment into a Config without validating it.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	check(c.Database.URL != "", "DATABASE_URL is required")
	check(c.JWT.Secret != "", "JWT_SECRET is required")
	check(c.Assignment.BaseURL != "", "ADMIN_URL is required")
	if c.Assignment.BaseURL != "" {
		u, err := url.Parse(c.Assignment.BaseURL)
		check(err == nil && u.Scheme != "" && u.Host != "", "ADMIN_URL must be an absolute URL")
	}

	if c.IsProduction() {
		check(len(c.JWT.Secret) >= 32, "JWT_SECRET must be at least 32 characters in production")
		check(len(c.WebSocket.AllowedOrigins) > 0, "WS_ALLOWED_ORIGINS must be set in production")
	}

	check(c.Database.MaxIdleConns <= c.Database.MaxOpenConns, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	check(c.WebSocket.PingInterval < c.WebSocket.PongWait, "WS_PING_INTERVAL must be shorter than WS_PONG_WAIT")
	check(c.WebSocket.SendBufferSize > 0, "WS_SEND_BUFFER_SIZE must be > 0")
	check(c.Fanout.Concurrency > 0, "FANOUT_CONCURRENCY must be > 0")
	check(c.Registry.ShardCount > 0, "REGISTRY_SHARDS must be > 0")
	check(slices.Contains(logLevels, c.Logging.Level), "LOG_LEVEL must be one of %v (got %q)", logLevels, c.Logging.Level)

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
}

func (c *Config) IsDevelopment() bool { return c.App.Environment == "development" }

func (c *Config) IsProduction() bool { return c.App.Environment == "production" }

// String is safe to log: credentials are redacted.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, DB: %s, JWT: [REDACTED], Assignment: %s, RateLimit: %v, Shards: %d, Environment: %s}",
		c.Server.Port,
		redactURL(c.Database.URL),
		c.Assignment.BaseURL,
		c.RateLimit.Enabled,
		c.Registry.ShardCount,
		c.App.Environment,
	)
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[REDACTED]"
	}
	u.User = nil
	return "[REDACTED]@" + u.Host + u.EscapedPath()
}
