package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AttemptStoreMemory = "memory"
	AttemptStoreRedis  = "redis"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    string

	// Database
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	MigrateOnStart    bool

	// Sessions
	SessionHashKey      string
	SessionBlockKey     string
	SessionSecureCookie bool
	CSRFKey             string

	// Login attempt counters
	AttemptStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BcryptCost int
	TrustProxy bool
}

// Load reads configuration from the environment. A .env file is optional.
func Load() (*Config, error) {
	godotenv.Load()

	dbPort, err := getEnvAsInt("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	bcryptCost, err := getEnvAsInt("BCRYPT_COST", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	maxOpen, err := getEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getEnvAsInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	lifetime, err := getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	cfg := &Config{
		Environment:         getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DBHost:              getEnv("DB_HOST", "localhost"),
		DBPort:              dbPort,
		DBUser:              getEnv("DB_USER", "postgres"),
		DBPassword:          getEnv("DB_PASSWORD", "postgres"),
		DBName:              getEnv("DB_NAME", "universidad"),
		DBSSLMode:           getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns:      maxOpen,
		DBMaxIdleConns:      maxIdle,
		DBConnMaxLifetime:   lifetime,
		MigrateOnStart:      getEnvAsBool("MIGRATE_ON_START", true),
		SessionHashKey:      getEnv("SESSION_HASH_KEY", ""),
		SessionBlockKey:     getEnv("SESSION_BLOCK_KEY", ""),
		SessionSecureCookie: getEnvAsBool("SESSION_SECURE_COOKIE", false),
		CSRFKey:             getEnv("CSRF_KEY", ""),
		AttemptStore:        strings.ToLower(getEnv("ATTEMPT_STORE", AttemptStoreMemory)),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             redisDB,
		BcryptCost:          bcryptCost,
		TrustProxy:          getEnvAsBool("TRUST_PROXY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted safely.
func (c *Config) Validate() error {
	switch c.AttemptStore {
	case AttemptStoreMemory, AttemptStoreRedis:
	default:
		return fmt.Errorf("ATTEMPT_STORE must be %q or %q, got %q", AttemptStoreMemory, AttemptStoreRedis, c.AttemptStore)
	}

	if c.SessionBlockKey != "" {
		switch len(c.SessionBlockKey) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("SESSION_BLOCK_KEY must be 16, 24 or 32 bytes")
		}
	}

	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return fmt.Errorf("CSRF_KEY must be 32 bytes")
	}

	if c.IsProduction() {
		if len(c.SessionHashKey) < 32 {
			return fmt.Errorf("SESSION_HASH_KEY of at least 32 bytes is required in production")
		}
		if c.SessionBlockKey == "" {
			return fmt.Errorf("SESSION_BLOCK_KEY is required in production")
		}
		if c.CSRFKey == "" {
			return fmt.Errorf("CSRF_KEY is required in production")
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(value)
}
