// Package config loads the server configuration from the environment,
// with a .env file picked up in development.
package config

import (
	"fmt"
	"os"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

// Storage backends for uploaded files and backup archives.
const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

// Config is the full server configuration.
type Config struct {
	Port         int
	DatabasePath string
	JWTSecret    string
	LogLevel     string

	// GitHub OAuth app credentials. Empty disables the GitHub login
	// routes.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	Storage  string
	FilesDir string

	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string

	// RateLimit is requests per second per client; RateBurst is the
	// burst allowance.
	RateLimit float64
	RateBurst int
}

// Load reads the configuration. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         envInt("PORT", 8080),
		DatabasePath: envStr("DATABASE_PATH", "./devstash.db"),
		JWTSecret:    envStr("JWT_SECRET", ""),
		LogLevel:     envStr("LOG_LEVEL", "info"),

		GitHubClientID:     envStr("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: envStr("GITHUB_CLIENT_SECRET", ""),
		GitHubCallbackURL:  envStr("GITHUB_CALLBACK_URL", ""),

		Storage:  envStr("STORAGE", StorageFS),
		FilesDir: envStr("FILES_DIR", "./data/files"),

		S3Region:       envStr("S3_REGION", ""),
		S3Bucket:       envStr("S3_BUCKET", ""),
		S3AccessKey:    envStr("S3_ACCESS_KEY", ""),
		S3SecretKey:    envStr("S3_SECRET_KEY", ""),
		S3BaseEndpoint: envStr("S3_BASE_ENDPOINT", ""),

		RateLimit: envFloat("RATE_LIMIT", 20),
		RateBurst: envInt("RATE_BURST", 40),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration before the server starts.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.Storage, validation.Required, validation.In(StorageFS, StorageS3)),
		validation.Field(&c.RateLimit, validation.Min(0.1)),
		validation.Field(&c.RateBurst, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Storage == StorageS3 {
		if err := validation.ValidateStruct(c,
			validation.Field(&c.S3Region, validation.Required),
			validation.Field(&c.S3Bucket, validation.Required),
			validation.Field(&c.S3AccessKey, validation.Required),
			validation.Field(&c.S3SecretKey, validation.Required),
		); err != nil {
			return fmt.Errorf("config: s3 storage selected: %w", err)
		}
	}

	return nil
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// GitHubEnabled reports whether the OAuth routes should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
