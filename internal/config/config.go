package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	OCR      OCRConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type StorageConfig struct {
	LocalDir       string
	MaxUploadBytes int64
	RemoteBaseURL  string // empty disables remote mirroring
	RemoteAPIKey   string
}

type OCRConfig struct {
	WorkerConcurrency int
	MaxRetries        int
	MinConfidence     float64
	AttemptTimeout    time.Duration
	BackoffUnit       time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxUploadMB, err := getEnvInt("STORAGE_MAX_UPLOAD_MB", 32)
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_MAX_UPLOAD_MB: %w", err)
	}

	workers, err := getEnvInt("OCR_WORKER_CONCURRENCY", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_WORKER_CONCURRENCY: %w", err)
	}

	maxRetries, err := getEnvInt("OCR_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_MAX_RETRIES: %w", err)
	}

	minConfidence, err := getEnvInt("OCR_MIN_CONFIDENCE", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_MIN_CONFIDENCE: %w", err)
	}

	attemptTimeout, err := getEnvInt("OCR_ATTEMPT_TIMEOUT_SEC", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_ATTEMPT_TIMEOUT_SEC: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			LocalDir:       getEnv("STORAGE_LOCAL_DIR", "uploads"),
			MaxUploadBytes: int64(maxUploadMB) << 20,
			RemoteBaseURL:  getEnv("STORAGE_REMOTE_URL", ""),
			RemoteAPIKey:   getEnv("STORAGE_REMOTE_API_KEY", ""),
		},
		OCR: OCRConfig{
			WorkerConcurrency: workers,
			MaxRetries:        maxRetries,
			MinConfidence:     float64(minConfidence),
			AttemptTimeout:    time.Duration(attemptTimeout) * time.Second,
			BackoffUnit:       time.Second,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
