package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imclimate/acis/internal/config"
)

var configKeys = []string{
	"APP_PORT", "APP_ENV", "REQUIRE_TLS", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"ACIS_BASE_URL", "ACIS_TIMEOUT", "ACIS_MAX_RETRIES", "IRMA_BASE_URL", "ECOS_BASE_URL",
	"PUBSUB_PROJECT_ID", "PUBSUB_SUBSCRIPTION", "STORE_BACKEND",
}

// clearEnv empties every config variable for the test and restores it after.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFiles_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.OTelEnabled)
	assert.False(t, cfg.RequireTLS)
	assert.Equal(t, "https://data.rcc-acis.org", cfg.ACISBaseURL)
	assert.Equal(t, 30*time.Second, cfg.ACISTimeout)
	assert.Equal(t, uint64(2), cfg.ACISMaxRetries)
	assert.Equal(t, config.StoreMemory, cfg.StoreBackend)
	assert.Equal(t, "acis-station-sync", cfg.PubSubSubscription)
}

func TestLoadFiles_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("ACIS_TIMEOUT", "5s")
	t.Setenv("STORE_BACKEND", "Postgres")

	cfg, err := config.LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, 5*time.Second, cfg.ACISTimeout)
	assert.Equal(t, config.StorePostgres, cfg.StoreBackend)
}

func TestLoadFiles_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even empty
	// ones, so the keys under test are removed for the duration.
	for _, k := range []string{"APP_PORT", "ACIS_BASE_URL"} {
		require.NoError(t, os.Unsetenv(k))
	}
	t.Cleanup(func() {
		_ = os.Unsetenv("APP_PORT")
		_ = os.Unsetenv("ACIS_BASE_URL")
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("APP_PORT=7070\nACIS_BASE_URL=http://acis.local\n"), 0o600))

	cfg, err := config.LoadFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "http://acis.local", cfg.ACISBaseURL)
}

func TestLoadFiles_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"OTEL_ENABLED", "maybe"},
		{"REQUIRE_TLS", "yes please"},
		{"ACIS_TIMEOUT", "soon"},
		{"ACIS_MAX_RETRIES", "-1"},
		{"STORE_BACKEND", "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := config.LoadFiles(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
