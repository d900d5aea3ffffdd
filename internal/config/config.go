package config

import (
	"fmt"
	"time"

	"github.com/tieenbuii/WEB-API/internal/resource"
	pkgconfig "github.com/tieenbuii/WEB-API/pkg/config"
	"github.com/tieenbuii/WEB-API/pkg/database"
	"github.com/tieenbuii/WEB-API/pkg/middleware"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Ratings recomputation modes.
const (
	RatingsSync  = "sync"
	RatingsKafka = "kafka"
)

// Config holds all configuration for the API server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// HTTP server
	HTTPPort            int `env:"HTTP_PORT" envDefault:"8000"`
	ShutdownTimeoutSecs int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`

	// Document store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`

	// PostgreSQL
	PostgresURL  string `env:"DATABASE_URL"`
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"webapi"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"webapi_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"webapi"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// MongoDB
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"webapi"`

	// Redis backs consumer idempotency; empty disables it.
	RedisURL string `env:"REDIS_URL"`

	// Kafka; no brokers means entity events are dropped.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"web-api-ratings"`

	// Domain behaviour
	StockPolicy      string   `env:"STOCK_POLICY" envDefault:"atomic"`
	RatingsMode      string   `env:"RATINGS_MODE" envDefault:"sync"`
	DefaultPageLimit int      `env:"DEFAULT_PAGE_LIMIT" envDefault:"100"`
	RangeFields      []string `env:"RANGE_FIELDS" envDefault:"price,promotion" envSeparator:","`
	BcryptCost       int      `env:"BCRYPT_COST" envDefault:"10"`

	// JWT
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTIssuer string `env:"JWT_ISSUER"`
	JWTExpiry string `env:"JWT_EXPIRY" envDefault:"24h"`

	// Rate limiting; zero RPS disables it.
	RateLimitRPS        float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst      int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
	RateLimitTrustProxy bool    `env:"RATE_LIMIT_TRUST_PROXY" envDefault:"false"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from a local .env file, if any, and the
// environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithDotenv(cfg, ".env"); err != nil {
		return nil, fmt.Errorf("load web-api config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreDriver {
	case DriverMemory, DriverMongo:
	case DriverPostgres:
		if c.PostgresURL == "" && c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST or DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be memory, postgres or mongo, got %q", c.StoreDriver)
	}
	if c.StoreDriver == DriverMongo && c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required for the mongo driver")
	}
	if _, err := resource.ParseStockPolicy(c.StockPolicy); err != nil {
		return fmt.Errorf("STOCK_POLICY: %w", err)
	}
	switch c.RatingsMode {
	case RatingsSync:
	case RatingsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when RATINGS_MODE is kafka")
		}
	default:
		return fmt.Errorf("RATINGS_MODE must be sync or kafka, got %q", c.RatingsMode)
	}
	if c.DefaultPageLimit < 1 {
		return fmt.Errorf("DEFAULT_PAGE_LIMIT must be positive, got %d", c.DefaultPageLimit)
	}
	if _, err := time.ParseDuration(c.JWTExpiry); err != nil {
		return fmt.Errorf("invalid JWT_EXPIRY %q: %w", c.JWTExpiry, err)
	}
	// In non-development environments, require an explicitly set, strong JWT secret.
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment)
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(c.JWTSecret))
		}
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// JWTExpiryDuration returns the parsed token lifetime.
func (c *Config) JWTExpiryDuration() time.Duration {
	d, _ := time.ParseDuration(c.JWTExpiry)
	return d
}

// Postgres returns the pool settings for the postgres driver.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		URL:             c.PostgresURL,
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// RateLimit returns the per-client limiter settings.
func (c *Config) RateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RPS:        c.RateLimitRPS,
		Burst:      c.RateLimitBurst,
		TTL:        10 * time.Minute,
		TrustProxy: c.RateLimitTrustProxy,
	}
}

// CORS returns the cross-origin settings.
func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSAllowedOrigins
	return cors
}
