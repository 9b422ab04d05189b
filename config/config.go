package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Reports  ReportsConfig
	Worker   WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// UpstreamConfig points at the store API the admin panel manages.
type UpstreamConfig struct {
	BaseURL    string // e.g. https://domstore.azurewebsites.net/api/v1
	TimeoutSec int
}

// Timeout returns the per-request upstream timeout.
func (c UpstreamConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings for the audit log.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds AWS credentials and the bucket for report snapshots.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ReportsBucket        string
	PresignExpireMinutes int
}

// ReportsConfig controls caching of reporting aggregates.
type ReportsConfig struct {
	CacheTTLSec int
}

// CacheTTL returns the report cache TTL; zero disables caching.
func (c ReportsConfig) CacheTTL() time.Duration {
	if c.CacheTTLSec <= 0 {
		return 0
	}
	return time.Duration(c.CacheTTLSec) * time.Second
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	ServiceToken                 string // bearer credential the worker uses upstream
	DeactivateExpiredIntervalMin int   // 0 disables the periodic tick
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Upstream: UpstreamConfig{
			BaseURL:    strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "https://domstore.azurewebsites.net/api/v1"), "/"),
			TimeoutSec: getEnvInt("UPSTREAM_TIMEOUT_SEC", 15),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "domstore_admin"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ReportsBucket:        getEnv("AWS_S3_REPORTS_BUCKET", "domstore-admin-reports"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60),
		},
		Reports: ReportsConfig{
			CacheTTLSec: getEnvInt("REPORT_CACHE_TTL_SEC", 300),
		},
		Worker: WorkerConfig{
			ServiceToken:                 getEnv("SERVICE_TOKEN", ""),
			DeactivateExpiredIntervalMin: getEnvInt("DEACTIVATE_EXPIRED_INTERVAL_MIN", 0),
		},
	}
	if cfg.Upstream.BaseURL == "" {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL is empty")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
