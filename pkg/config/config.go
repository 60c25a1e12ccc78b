package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process configuration for the scoring service
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
// 스코어링 파라미터(가중치/밴드 등)는 internal/scoringconfig YAML 담당
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Scoring cycle
	Scoring ScoringConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring (textfile only, no listener)
	MetricsEnabled  bool
	MetricsTextfile string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
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

// ScoringConfig holds batch cycle settings
type ScoringConfig struct {
	ConfigPath   string        // YAML 경로
	Schedule     string        // cron (초 포함)
	CycleTimeout time.Duration // 사이클 데드라인, 초과 시 결과 폐기
	LockTTL      time.Duration // 분산 락 TTL

	RetentionSchedule string        // 보관 정리 cron
	Retention         time.Duration // 사이클 보관 기간
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Scoring
		Scoring: ScoringConfig{
			ConfigPath:   getEnv("SCORING_CONFIG", "config/scoring.yaml"),
			Schedule:     getEnv("SCORING_SCHEDULE", "0 30 18 * * 1-5"),
			CycleTimeout: getEnvAsDuration("CYCLE_TIMEOUT", "5m"),
			LockTTL:      getEnvAsDuration("CYCLE_LOCK_TTL", "10m"),

			RetentionSchedule: getEnv("RETENTION_SCHEDULE", "0 0 3 * * 0"),
			Retention:         getEnvAsDuration("SCORING_RETENTION", "8760h"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled:  getEnvAsBool("METRICS_ENABLED", false),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", "metrics/tscore.prom"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent.
// DATABASE_URL is optional: file-based runs do not need Postgres.
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scoring.CycleTimeout <= 0 {
		return fmt.Errorf("CYCLE_TIMEOUT must be > 0")
	}

	if c.Scoring.LockTTL < c.Scoring.CycleTimeout {
		return fmt.Errorf("CYCLE_LOCK_TTL must be >= CYCLE_TIMEOUT")
	}

	if c.Scoring.Retention < 24*time.Hour {
		return fmt.Errorf("SCORING_RETENTION must be >= 24h")
	}

	if c.MetricsEnabled && c.MetricsTextfile == "" {
		return fmt.Errorf("METRICS_TEXTFILE is required when METRICS_ENABLED=true")
	}

	return nil
}

// HasDatabase reports whether a Postgres DSN is configured
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
