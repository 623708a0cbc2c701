package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:         8080,
		DatabasePath: "./test.db",
		JWTSecret:    "a-secret-that-is-long-enough",
		Storage:      StorageFS,
		FilesDir:     "./files",
		RateLimit:    20,
		RateBurst:    40,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-secret-that-is-long-enough")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, StorageFS, cfg.Storage)
	assert.False(t, cfg.GitHubEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-secret-that-is-long-enough")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.GitHubEnabled())
}

func TestValidate_RequiresJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "too-short"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidate_UnknownStorage(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestValidate_S3RequiresCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.Storage = StorageS3
	assert.Error(t, cfg.Validate())

	cfg.S3Region = "us-east-1"
	cfg.S3Bucket = "devstash"
	cfg.S3AccessKey = "key"
	cfg.S3SecretKey = "secret"
	assert.NoError(t, cfg.Validate())
}
