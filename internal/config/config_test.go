package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		SecretKey:            "secure-secret-at-least-32-chars-long",
		DBPassword:           "secure-password",
		Port:                 "8000",
		PageSize:             10,
		ImageMaxUploadSizeMB: 10,
		SessionTTLHours:      24,
		DBSchemaMode:         "hybrid",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"missing port", func(c *Config) { c.Port = "" }, "PORT is required"},
		{"missing secret", func(c *Config) { c.SecretKey = "" }, "SECRET_KEY is required"},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, "PAGE_SIZE"},
		{"bad schema mode", func(c *Config) { c.DBSchemaMode = "magic" }, "DB_SCHEMA_MODE"},
		{"zero session ttl", func(c *Config) { c.SessionTTLHours = 0 }, "SESSION_TTL_HOURS"},
		{"default secret in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.SecretKey = defaultSecretKey
		}, "must be changed"},
		{"short secret in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.SecretKey = "short"
		}, "at least 32"},
		{"weak db password in production", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
			c.DBPassword = "password"
		}, "DB_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_DefaultsAndNormalization(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("MEDIA_URL", "/uploads")

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 10, c.PageSize)
	assert.Equal(t, "/uploads/", c.MediaURL)
	assert.Equal(t, "sessionid", c.SessionCookieName)
	assert.Equal(t, 14*24*time.Hour, c.SessionTTL())
	assert.False(t, c.IsProduction())
}

func TestLoadConfig_MissingProfileFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "staging")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.staging.yml")
}
