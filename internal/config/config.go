// Package config loads process configuration from an optional .env file and
// the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted in STORE_BACKEND.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds settings shared by the API and the worker.
type Config struct {
	Port        string
	Environment string
	// RequireTLS rejects requests a proxy reports as plain HTTP.
	RequireTLS bool

	OTelEnabled  bool
	OTLPEndpoint string

	// ACISBaseURL is the ACIS web services root.
	ACISBaseURL string
	// ACISTimeout bounds each ACIS attempt.
	ACISTimeout time.Duration
	// ACISMaxRetries is the number of retries after a failed ACIS attempt.
	ACISMaxRetries uint64

	IRMABaseURL string
	ECOSBaseURL string

	PubSubProjectID    string
	PubSubSubscription string

	// StoreBackend selects the station archive: memory or postgres.
	StoreBackend string
}

// Load reads .env when present, then the environment. Unset variables fall
// back to defaults; malformed ones are an error.
func Load() (*Config, error) {
	return LoadFiles()
}

// LoadFiles is Load with explicit .env paths. Missing files are ignored and
// variables already in the environment win.
func LoadFiles(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Environment:        getEnvOrDefault("APP_ENV", "development"),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ACISBaseURL:        getEnvOrDefault("ACIS_BASE_URL", "https://data.rcc-acis.org"),
		IRMABaseURL:        getEnvOrDefault("IRMA_BASE_URL", "https://irmaservices.nps.gov/v2/rest/unit"),
		ECOSBaseURL:        getEnvOrDefault("ECOS_BASE_URL", "https://ecos.fws.gov/ServCatServices/v2/rest/unit"),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "acis-station-sync"),
		StoreBackend:       strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreMemory)),
	}

	var err error
	if cfg.OTelEnabled, err = strconv.ParseBool(getEnvOrDefault("OTEL_ENABLED", "false")); err != nil {
		return nil, fmt.Errorf("invalid OTEL_ENABLED: %w", err)
	}
	if cfg.RequireTLS, err = strconv.ParseBool(getEnvOrDefault("REQUIRE_TLS", "false")); err != nil {
		return nil, fmt.Errorf("invalid REQUIRE_TLS: %w", err)
	}
	if cfg.ACISTimeout, err = time.ParseDuration(getEnvOrDefault("ACIS_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid ACIS_TIMEOUT: %w", err)
	}
	if cfg.ACISMaxRetries, err = strconv.ParseUint(getEnvOrDefault("ACIS_MAX_RETRIES", "2"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid ACIS_MAX_RETRIES: %w", err)
	}

	switch cfg.StoreBackend {
	case StoreMemory, StorePostgres:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want %s or %s", cfg.StoreBackend, StoreMemory, StorePostgres)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
