package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Storage      StorageConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Ledger       LedgerConfig
	Logger       LoggerConfig
	Metrics      MetricsConfig
	Auth         AuthConfig
	Notification NotificationConfig
}

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Ledger lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// StorageConfig selects the repository implementation.
type StorageConfig struct {
	Driver string
}

// LedgerConfig tunes per-organization balance locking.
type LedgerConfig struct {
	LockBackend   string
	LockTimeoutMS int
	LockTTLMS     int
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	LockTimeoutMS  int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	EventsStream string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig controls where domain events are forwarded.
type NotificationConfig struct {
	EmailFrom     string
	PublishEvents bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	dsn := os.Getenv("POSTGRES_DSN")
	driver := StorageMemory
	if dsn != "" {
		driver = StoragePostgres
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "carbon-ledger"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", driver)),
		},
		Postgres: PostgresConfig{
			DSN:            dsn,
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
			LockTimeoutMS:  getEnvAsInt("POSTGRES_LOCK_TIMEOUT_MS", 2000),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           redisDB,
			EventsStream: getEnv("REDIS_EVENTS_STREAM", "carbon-ledger:events"),
		},
		Ledger: LedgerConfig{
			LockBackend:   strings.ToLower(getEnv("LEDGER_LOCK_BACKEND", LockLocal)),
			LockTimeoutMS: getEnvAsInt("LEDGER_LOCK_TIMEOUT_MS", 2000),
			LockTTLMS:     getEnvAsInt("LEDGER_LOCK_TTL_MS", 10000),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			PublishEvents: getEnvAsBool("NOTIFY_PUBLISH_EVENTS", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("STORAGE_DRIVER=postgres requires POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}
	switch c.Ledger.LockBackend {
	case LockLocal, LockRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_LOCK_BACKEND %q", c.Ledger.LockBackend))
	}
	if c.Ledger.LockTimeoutMS <= 0 {
		errs = append(errs, errors.New("LEDGER_LOCK_TIMEOUT_MS must be positive"))
	}
	if c.Ledger.LockBackend == LockRedis && c.Ledger.LockTTLMS <= c.Ledger.LockTimeoutMS {
		errs = append(errs, errors.New("LEDGER_LOCK_TTL_MS must exceed LEDGER_LOCK_TIMEOUT_MS"))
	}
	if c.Postgres.LockTimeoutMS < 0 {
		errs = append(errs, errors.New("POSTGRES_LOCK_TIMEOUT_MS must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// LockTimeout returns the bounded wait for ledger locks.
func (l LedgerConfig) LockTimeout() time.Duration {
	return time.Duration(l.LockTimeoutMS) * time.Millisecond
}

// LockTTL returns the redis lease length.
func (l LedgerConfig) LockTTL() time.Duration {
	return time.Duration(l.LockTTLMS) * time.Millisecond
}

// MigrationURL returns the DSN in the form golang-migrate expects.
func (p PostgresConfig) MigrationURL() string {
	url := p.DSN
	if !strings.Contains(url, "sslmode=") {
		if strings.Contains(url, "?") {
			url += "&sslmode=disable"
		} else {
			url += "?sslmode=disable"
		}
	}
	return url
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
