// Package api provides the HTTP API of the climate station service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/api/handler"
	"github.com/imclimate/acis/internal/api/middleware"
	"github.com/imclimate/acis/internal/provider/resilience"
	"github.com/imclimate/acis/internal/stationstore"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// Gateway executes ACIS requests for the live station endpoints.
	Gateway acis.Gateway
	// Bounds resolves unit codes for /v1/stations?unit=. Optional.
	Bounds handler.UnitBounds
	// Store serves the archived unit stations. Optional.
	Store stationstore.Repository
	// Registry feeds /v1/ops/status. Optional.
	Registry *resilience.Registry
	// ReadinessChecks run on /v1/ops/ready and /v1/ops/status.
	ReadinessChecks map[string]handler.ReadinessCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "acis-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.ReadinessChecks,
	})
	parameterHandler := handler.NewParameterHandler()
	stationHandler := handler.NewStationHandler(handler.StationHandlerConfig{
		Gateway: cfg.Gateway,
		Bounds:  cfg.Bounds,
		Logger:  cfg.Logger,
	})
	unitHandler := handler.NewUnitHandler(cfg.Store, cfg.Logger)

	upstreamRateLimit := middleware.RateLimitByIP(middleware.UpstreamRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/parameters", parameterHandler.ListParameters)

		// Live lookups call ACIS on every request
		r.Route("/stations", func(r chi.Router) {
			r.Use(upstreamRateLimit)
			r.Get("/", stationHandler.ListStations)
			r.Get("/{sid}/observations", stationHandler.GetObservations)
		})

		r.Route("/units", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", unitHandler.ListUnits)
			r.Get("/{unitCode}/stations", unitHandler.ListUnitStations)
		})
	})

	return r
}
