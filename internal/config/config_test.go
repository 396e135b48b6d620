package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"JWT_SECRET": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.Hour, cfg.SetupTokenTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.AllowAnyStatusTransition)
	assert.False(t, cfg.UniqueEmailAcrossRoles)
	assert.False(t, cfg.IsProduction())
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":                  "s3cret",
		"APP_ENV":                     "production",
		"STORE_DRIVER":                "SQLite",
		"DATABASE_URL":                "file::memory:",
		"SESSION_TTL":                 "30m",
		"CORS_ORIGINS":                "https://a.example, https://b.example",
		"ALLOW_ANY_STATUS_TRANSITION": "true",
		"MAX_UPLOAD_FILES":            "2",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.AllowAnyStatusTransition)
	assert.Equal(t, 2, cfg.MaxUploadFiles)
}

func TestInvalid(t *testing.T) {
	_, err := FromEnv(env(map[string]string{}))
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = FromEnv(env(map[string]string{"JWT_SECRET": "x", "SESSION_TTL": "soon"}))
	assert.ErrorContains(t, err, "SESSION_TTL")

	_, err = FromEnv(env(map[string]string{"JWT_SECRET": "x", "STORE_DRIVER": "postgres"}))
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = FromEnv(env(map[string]string{"JWT_SECRET": "x", "STORE_DRIVER": "cassandra"}))
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")
}
