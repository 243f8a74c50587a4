// Package bootstrap wires the upstream clients and the station archive shared
// by the API and the worker.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/acis/rcc"
	"github.com/imclimate/acis/internal/config"
	"github.com/imclimate/acis/internal/database"
	"github.com/imclimate/acis/internal/provider/resilience"
	"github.com/imclimate/acis/internal/stationstore"
	"github.com/imclimate/acis/internal/telemetry"
	"github.com/imclimate/acis/internal/unitbounds"
)

// Upstreams holds the remote service clients.
type Upstreams struct {
	ACIS     *rcc.Client
	Bounds   *unitbounds.Client
	Registry *resilience.Registry
}

// NewUpstreams builds the ACIS and unit geography clients. Every client is
// registered in a fresh registry for the ops status endpoint.
func NewUpstreams(cfg *config.Config, userAgent string, tp *telemetry.Provider, log zerolog.Logger) (*Upstreams, error) {
	registry := resilience.NewRegistry()

	var metrics *telemetry.UpstreamMetrics
	if tp != nil && tp.Meter != nil {
		m, err := telemetry.NewUpstreamMetrics(tp.Meter)
		if err != nil {
			return nil, fmt.Errorf("creating upstream metrics: %w", err)
		}
		metrics = m
	}

	acisHTTP := resilience.DefaultClientConfig(rcc.UpstreamName)
	acisHTTP.Timeout = cfg.ACISTimeout
	acisHTTP.MaxRetries = cfg.ACISMaxRetries
	acisHTTP.UserAgent = userAgent
	acisHTTP.Registry = registry

	rccCfg := rcc.ClientConfig{
		BaseURL:    cfg.ACISBaseURL,
		HTTPClient: resilience.NewClient(acisHTTP),
		Metrics:    metrics,
		Logger:     log.With().Str("upstream", rcc.UpstreamName).Logger(),
	}
	if tp != nil {
		rccCfg.Tracer = tp.Tracer
	}

	boundsClient := func(s unitbounds.Service) *resilience.Client {
		c := resilience.DefaultClientConfig(string(s))
		c.UserAgent = userAgent
		c.Registry = registry
		return resilience.NewClient(c)
	}

	return &Upstreams{
		ACIS: rcc.NewClient(rccCfg),
		Bounds: unitbounds.NewClient(unitbounds.ClientConfig{
			IRMABaseURL: cfg.IRMABaseURL,
			ECOSBaseURL: cfg.ECOSBaseURL,
			IRMAClient:  boundsClient(unitbounds.ServiceIRMA),
			ECOSClient:  boundsClient(unitbounds.ServiceECOS),
			Logger:      log.With().Str("upstream", "unitbounds").Logger(),
		}),
		Registry: registry,
	}, nil
}

// Store is an opened station archive.
type Store struct {
	Repository stationstore.Repository

	// Ping checks the backing database. Nil for the memory backend.
	Ping func(ctx context.Context) error

	pool *pgxpool.Pool
}

// Close releases the database pool, if any.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// OpenStore opens the archive selected by cfg.StoreBackend. The postgres
// backend connects with database.ConfigFromEnv and applies the schema.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory station archive - contents are lost on restart")
		return &Store{Repository: stationstore.NewInMemoryRepository()}, nil

	case config.StorePostgres:
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}

		repo := stationstore.NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrating station archive: %w", err)
		}

		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		return &Store{Repository: repo, Ping: pool.Ping, pool: pool}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
