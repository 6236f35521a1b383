package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/stylinx/pkg/config"
	"github.com/utafrali/stylinx/pkg/database"
)

// Order submitter kinds accepted in ORDER_SUBMITTER.
const (
	SubmitterSimulated = "simulated"
	SubmitterHTTP      = "http"
	SubmitterPostgres  = "postgres"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Redis session store
	RedisHost         string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort         int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass         string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB           int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	OrderHistoryLimit int           `env:"ORDER_HISTORY_LIMIT" envDefault:"20"`

	// In-memory engines untouched for this long are evicted; the snapshot
	// stays in Redis.
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Order submission
	OrderSubmitter   string        `env:"ORDER_SUBMITTER" envDefault:"simulated"`
	SubmitTimeout    time.Duration `env:"ORDER_SUBMIT_TIMEOUT" envDefault:"10s"`
	SimulatedDelay   time.Duration `env:"ORDER_SIMULATED_DELAY" envDefault:"2s"`
	OrderSubmitURL   string        `env:"ORDER_SUBMIT_URL" envDefault:""`
	OrderHTTPRetries int           `env:"ORDER_HTTP_MAX_RETRIES" envDefault:"2"`

	// Circuit breaker around the HTTP order endpoint
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// PostgreSQL order archive, used when ORDER_SUBMITTER=postgres
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"stylinx"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"stylinx_secret"`
	PostgresDB   string `env:"CHECKOUT_DB_NAME" envDefault:"checkout_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns         int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime  time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime  time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryThreshold time.Duration `env:"LOG_SLOW_QUERY" envDefault:"500ms"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation); empty disables them.
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		return fmt.Errorf("invalid Redis port: %d", c.RedisPort)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.OrderHistoryLimit < 1 {
		return fmt.Errorf("ORDER_HISTORY_LIMIT must be at least 1, got %d", c.OrderHistoryLimit)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("ORDER_SUBMIT_TIMEOUT must be positive, got %s", c.SubmitTimeout)
	}
	// The request deadline must outlive the submission it waits on.
	if c.RequestTimeout > 0 && c.RequestTimeout <= c.SubmitTimeout {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT (%s) must exceed ORDER_SUBMIT_TIMEOUT (%s)", c.RequestTimeout, c.SubmitTimeout)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %f", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is on, got %d", c.RateLimitBurst)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}

	switch c.OrderSubmitter {
	case SubmitterSimulated:
		if c.SimulatedDelay < 0 {
			return fmt.Errorf("ORDER_SIMULATED_DELAY must not be negative, got %s", c.SimulatedDelay)
		}
	case SubmitterHTTP:
		if c.OrderSubmitURL == "" {
			return fmt.Errorf("ORDER_SUBMIT_URL is required when ORDER_SUBMITTER=http")
		}
		if _, err := url.ParseRequestURI(c.OrderSubmitURL); err != nil {
			return fmt.Errorf("invalid ORDER_SUBMIT_URL %q: %w", c.OrderSubmitURL, err)
		}
		if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
			return fmt.Errorf("CB_FAILURE_RATIO must be in (0.0, 1.0], got %f", c.CBFailureRatio)
		}
	case SubmitterPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when ORDER_SUBMITTER=postgres")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when ORDER_SUBMITTER=postgres")
		}
	default:
		return fmt.Errorf("ORDER_SUBMITTER must be one of %s, %s, %s; got %q",
			SubmitterSimulated, SubmitterHTTP, SubmitterPostgres, c.OrderSubmitter)
	}
	return nil
}

// RedisConfig returns the session store connection settings.
func (c *Config) RedisConfig() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPass
	cfg.DB = c.RedisDB
	cfg.PoolSize = c.RedisPoolSize
	return cfg
}

// PostgresConfig returns the order archive connection settings.
func (c *Config) PostgresConfig() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}
