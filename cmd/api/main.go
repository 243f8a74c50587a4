// Package main provides the entrypoint for the climate station API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/api"
	"github.com/imclimate/acis/internal/api/handler"
	"github.com/imclimate/acis/internal/api/middleware"
	"github.com/imclimate/acis/internal/bootstrap"
	"github.com/imclimate/acis/internal/config"
	"github.com/imclimate/acis/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "acis-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting climate station API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	upstreams, err := bootstrap.NewUpstreams(cfg, serviceName+"/"+Version, tp, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize upstream clients")
		os.Exit(1)
	}
	log.Info().
		Str("acis_base_url", cfg.ACISBaseURL).
		Dur("acis_timeout", cfg.ACISTimeout).
		Msg("upstream clients initialized")

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to open station archive")
		os.Exit(1)
	}
	defer store.Close()

	checks := map[string]handler.ReadinessCheck{}
	if store.Ping != nil {
		checks["postgres"] = store.Ping
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		RequireTLS:      cfg.RequireTLS,
		Gateway:         upstreams.ACIS,
		Bounds:          upstreams.Bounds,
		Store:           store.Repository,
		Registry:        upstreams.Registry,
		ReadinessChecks: checks,
	})

	// ACIS lookups can take most of the upstream timeout, so the write
	// deadline leaves room for retries.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ACISTimeout*time.Duration(cfg.ACISMaxRetries+1) + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
