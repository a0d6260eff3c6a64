package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the dashboard backend
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Document store
	Store StoreConfig

	// Redis
	Redis RedisConfig

	// Database
	Database DatabaseConfig

	// View configuration (YAML, optional)
	ViewConfigPath string

	// News collector
	News NewsConfig

	// Finance collector
	Finance FinanceConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// StoreConfig selects the remote document store backend
type StoreConfig struct {
	Backend string // redis, postgres, memory
	Prefix  string // key / channel namespace
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewsConfig holds news collector configuration
type NewsConfig struct {
	BaseURL           string // Google News RSS search endpoint
	Schedule          string // cron expression (seconds field included)
	MaxArticles       int
	RequestsPerSecond float64
	CacheTTL          time.Duration
	Timeout           time.Duration
}

// FinanceConfig holds finance collector configuration
type FinanceConfig struct {
	BaseURL           string // Yahoo Finance chart endpoint
	Schedule          string // cron expression (seconds field included)
	Range             string // chart range, e.g. "10d"
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreRedis)),
			Prefix:  getEnv("STORE_PREFIX", "rsboard"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		ViewConfigPath: getEnv("VIEW_CONFIG", ""),

		News: NewsConfig{
			BaseURL:           getEnv("NEWS_BASE_URL", "https://news.google.com/rss/search"),
			Schedule:          getEnv("NEWS_SCHEDULE", "0 */10 * * * *"), // 10분 주기
			MaxArticles:       getEnvAsInt("NEWS_MAX_ARTICLES", 20),
			RequestsPerSecond: getEnvAsFloat("NEWS_RPS", 2),
			CacheTTL:          getEnvAsDuration("NEWS_CACHE_TTL", "5m"),
			Timeout:           getEnvAsDuration("NEWS_TIMEOUT", "10s"),
		},

		Finance: FinanceConfig{
			BaseURL:           getEnv("FINANCE_BASE_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			Schedule:          getEnv("FINANCE_SCHEDULE", "0 */10 * * * *"), // 10분 주기
			Range:             getEnv("FINANCE_RANGE", "10d"),
			RequestsPerSecond: getEnvAsFloat("FINANCE_RPS", 2),
			Timeout:           getEnvAsDuration("FINANCE_TIMEOUT", "10s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Store.Backend {
	case StoreRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("STORE_BACKEND=redis requires REDIS_ENABLED=true")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: redis, postgres, memory")
	}

	if c.Store.Prefix == "" {
		return fmt.Errorf("STORE_PREFIX must not be empty")
	}

	if c.News.MaxArticles <= 0 {
		return fmt.Errorf("NEWS_MAX_ARTICLES must be > 0")
	}
	if c.News.RequestsPerSecond <= 0 {
		return fmt.Errorf("NEWS_RPS must be > 0")
	}
	if c.Finance.RequestsPerSecond <= 0 {
		return fmt.Errorf("FINANCE_RPS must be > 0")
	}
	if c.Finance.Range == "" {
		return fmt.Errorf("FINANCE_RANGE must not be empty")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
