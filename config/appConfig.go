package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

// AppConfig is built once at startup and handed to every constructor that needs it.
type AppConfig struct {
	Port         string
	BaseURL      string
	AllowOrigins string
	BodyLimitMB  int
	Database     DatabaseConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Gemini       GeminiConfig
	Sweep        SweepConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	TimeZone string
}

// RedisConfig is optional. An empty Addr disables the list cache and the task queue.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	ListCacheTTL time.Duration
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type StorageConfig struct {
	Driver          string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicBaseURL   string
	LocalPath       string
	Timeout         time.Duration
}

type GeminiConfig struct {
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// SweepConfig drives the scheduled orphan image sweep run by the worker.
// Schedule is a cron expression; "off" disables the sweep.
type SweepConfig struct {
	Schedule string
	Grace    time.Duration
}

func (s SweepConfig) Enabled() bool {
	return s.Schedule != "" && !strings.EqualFold(s.Schedule, "off")
}

// Load reads the application configuration from the environment.
func Load() (*AppConfig, error) {
	port := getEnvDefault("PORT", "3000")

	cfg := &AppConfig{
		Port:         port,
		BaseURL:      strings.TrimRight(getEnvDefault("BASE_URL", "http://localhost:"+port), "/"),
		AllowOrigins: getEnvDefault("CORS_ALLOW_ORIGINS", "*"),
		BodyLimitMB:  getEnvAsInt("BODY_LIMIT_MB", 50),
		Database: DatabaseConfig{
			Host:     getEnvDefault("DB_HOST", "localhost"),
			Port:     getEnvDefault("DB_PORT", "5432"),
			User:     GetEnv("POSTGRES_USER"),
			Password: GetEnv("POSTGRES_PASSWORD"),
			Name:     GetEnv("POSTGRES_DB"),
			TimeZone: getEnvDefault("DB_TIMEZONE", "UTC"),
		},
		Redis: RedisConfig{
			Addr:         GetEnv("REDIS_ADDRESS"),
			Password:     GetEnv("REDIS_PASSWORD"),
			DB:           getEnvAsInt("REDIS_DB", 0),
			ListCacheTTL: getEnvAsDuration("LIST_CACHE_TTL", 5*time.Minute),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(getEnvDefault("STORAGE_DRIVER", StorageDriverS3)),
			Bucket:          getEnvDefault("BUCKET_NAME", "account-imgs"),
			Region:          GetEnv("AWS_REGION"),
			AccessKeyID:     GetEnv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: GetEnv("AWS_SECRET_ACCESS_KEY"),
			Endpoint:        GetEnv("S3_ENDPOINT"),
			PublicBaseURL:   GetEnv("S3_PUBLIC_BASE_URL"),
			LocalPath:       getEnvDefault("LOCAL_UPLOAD_PATH", "./uploads"),
			Timeout:         getEnvAsDuration("STORAGE_TIMEOUT", 15*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:            GetEnv("GEMINI_API_KEY"),
			Model:             getEnvDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout:           getEnvAsDuration("GEMINI_TIMEOUT", 30*time.Second),
			RequestsPerMinute: getEnvAsInt("GEMINI_REQUESTS_PER_MINUTE", 15),
		},
		Sweep: SweepConfig{
			Schedule: getEnvDefault("ORPHAN_SWEEP_SCHEDULE", "0 1 * * *"),
			Grace:    getEnvAsDuration("ORPHAN_SWEEP_GRACE", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required but not set in environment variables")
	}
	if c.Gemini.RequestsPerMinute <= 0 {
		return fmt.Errorf("GEMINI_REQUESTS_PER_MINUTE must be positive, got %d", c.Gemini.RequestsPerMinute)
	}

	switch c.Storage.Driver {
	case StorageDriverS3:
		if c.Storage.Region == "" {
			return fmt.Errorf("AWS_REGION is required when STORAGE_DRIVER=s3")
		}
	case StorageDriverLocal:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (expected %q or %q)", c.Storage.Driver, StorageDriverS3, StorageDriverLocal)
	}
	return nil
}
