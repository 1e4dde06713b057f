package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Session   SessionConfig
	Cache     CacheConfig
	Optimizer OptimizerConfig
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
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines identity-provider parameters.
type AuthConfig struct {
	JWTSecret         string
	IDTokenTTLMinutes int
	BcryptCost        int
}

// SessionConfig defines the admin session cookie.
type SessionConfig struct {
	CookieName string
	TTLDays    int
}

// CacheConfig controls the public tracking read cache.
type CacheConfig struct {
	TrackTTLSeconds int
}

// OptimizerConfig points at the text-completion API used for route optimization.
type OptimizerConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
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

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "parcel-tracker"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("AUTH_JWT_SECRET", "dev-secret"),
			IDTokenTTLMinutes: getEnvAsInt("AUTH_ID_TOKEN_TTL_MINUTES", 60),
			BcryptCost:        getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Session: SessionConfig{
			CookieName: getEnv("SESSION_COOKIE_NAME", "session"),
			TTLDays:    getEnvAsInt("SESSION_TTL_DAYS", 5),
		},
		Cache: CacheConfig{
			TrackTTLSeconds: getEnvAsInt("TRACK_CACHE_TTL_SECONDS", 60),
		},
		Optimizer: OptimizerConfig{
			BaseURL:        getEnv("OPTIMIZER_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         os.Getenv("OPTIMIZER_API_KEY"),
			Model:          getEnv("OPTIMIZER_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("OPTIMIZER_TIMEOUT_SECONDS", 30),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsProduction reports whether the service runs with production hardening.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// TTL returns the session cookie lifetime.
func (s SessionConfig) TTL() time.Duration {
	days := s.TTLDays
	if days <= 0 {
		days = 5
	}
	return time.Duration(days) * 24 * time.Hour
}

// TrackTTL returns the tracking cache entry lifetime.
func (c CacheConfig) TrackTTL() time.Duration {
	if c.TrackTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.TrackTTLSeconds) * time.Second
}

// Timeout returns the outbound request timeout for the optimizer client.
func (o OptimizerConfig) Timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
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
