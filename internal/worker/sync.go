package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/stationstore"
)

// ErrNoUnits is returned when a sync request names no unit.
var ErrNoUnits = errors.New("no unit codes given")

// BoundsResolver turns a unit code into a buffered bounding box.
type BoundsResolver interface {
	BoundingBox(ctx context.Context, unitCode string, bufferKM float64) (acis.BoundingBox, error)
}

// SyncRequest selects the units to sync and the elements to search for.
type SyncRequest struct {
	UnitCodes []string
	BufferKM  float64
	Elements  []string
}

// UnitResult is the outcome of one unit sync.
type UnitResult struct {
	UnitCode     string
	SyncID       string
	StationCount int
	Err          error
}

// SyncResult contains the result of a sync run.
type SyncResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Successful int
	Failed     int
	Units      []UnitResult
}

// SyncMetrics tracks sync job statistics.
type SyncMetrics struct {
	TotalRuns        int64
	UnitsSynced      int64
	UnitsFailed      int64
	StationsArchived int64
	LastRunAt        time.Time
	LastRunDuration  time.Duration
}

// SyncJobConfig holds configuration for creating a SyncJob.
type SyncJobConfig struct {
	Config  SyncConfig
	Bounds  BoundsResolver
	Gateway acis.Gateway
	Store   stationstore.Repository
	Logger  zerolog.Logger

	// Now overrides the clock (optional).
	Now func() time.Time
}

// SyncJob archives the stations inside park and refuge units.
type SyncJob struct {
	config  SyncConfig
	bounds  BoundsResolver
	gateway acis.Gateway
	store   stationstore.Repository
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	metrics SyncMetrics
}

// NewSyncJob creates a new sync job.
func NewSyncJob(cfg SyncJobConfig) *SyncJob {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SyncJob{
		config:  cfg.Config.withDefaults(),
		bounds:  cfg.Bounds,
		gateway: cfg.Gateway,
		store:   cfg.Store,
		logger:  cfg.Logger,
		now:     now,
	}
}

// Run syncs every unit in req using a bounded worker pool. A failing unit
// does not stop the others; results keep the request order.
func (j *SyncJob) Run(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	if len(req.UnitCodes) == 0 {
		return nil, ErrNoUnits
	}
	elements, err := acis.NormalizeElements(req.Elements)
	if err != nil {
		return nil, err
	}
	bufferKM := req.BufferKM
	if bufferKM == 0 {
		bufferKM = j.config.DefaultBufferKM
	}

	start := j.now()
	result := &SyncResult{
		StartTime: start,
		Units:     make([]UnitResult, len(req.UnitCodes)),
	}

	j.logger.Info().
		Strs("units", req.UnitCodes).
		Float64("buffer_km", bufferKM).
		Int("concurrency", j.config.Concurrency).
		Msg("starting station sync")

	indexes := make(chan int, len(req.UnitCodes))
	for i := range req.UnitCodes {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for w := 0; w < j.config.Concurrency && w < len(req.UnitCodes); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				result.Units[i] = j.syncUnit(ctx, req.UnitCodes[i], bufferKM, elements)
			}
		}()
	}
	wg.Wait()

	var archived int
	for _, u := range result.Units {
		if u.Err != nil {
			result.Failed++
			continue
		}
		result.Successful++
		archived += u.StationCount
	}

	result.EndTime = j.now()
	result.Duration = result.EndTime.Sub(start)
	j.updateMetrics(result, archived)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("stations", archived).
		Msg("station sync completed")

	return result, nil
}

func (j *SyncJob) syncUnit(ctx context.Context, unitCode string, bufferKM float64, elements []string) UnitResult {
	unit := stationstore.NormalizeUnitCode(unitCode)
	res := UnitResult{UnitCode: unit}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	unitCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	logger := j.logger.With().Str("unit_code", unit).Logger()

	bbox, err := j.bounds.BoundingBox(unitCtx, unit, bufferKM)
	if err != nil {
		res.Err = fmt.Errorf("resolve bounding box: %w", err)
		logger.Error().Err(res.Err).Msg("unit sync failed")
		return res
	}

	// Sessions are not safe for concurrent use, so each unit gets its own.
	session := acis.NewSession(acis.SessionConfig{Gateway: j.gateway, Logger: logger})
	collection, err := session.FindStations(unitCtx, acis.Criteria{
		Elements: elements,
		BBox:     bbox,
	})
	if err != nil {
		res.Err = fmt.Errorf("find stations: %w", err)
		logger.Error().Err(res.Err).Msg("unit sync failed")
		return res
	}

	res.SyncID = uuid.NewString()
	records := stationstore.RecordsFromCollection(unit, collection)
	err = j.store.SaveUnitStations(unitCtx, stationstore.UnitSync{
		SyncID:   res.SyncID,
		UnitCode: unit,
		BBox:     bbox,
		BufferKM: bufferKM,
		Elements: elements,
		SyncedAt: j.now().UTC(),
	}, records)
	if err != nil {
		res.Err = fmt.Errorf("save stations: %w", err)
		logger.Error().Err(res.Err).Msg("unit sync failed")
		return res
	}

	res.StationCount = len(records)
	logger.Info().
		Str("sync_id", res.SyncID).
		Str("bbox", bbox.String()).
		Int("stations", res.StationCount).
		Msg("unit synced")
	return res
}

func (j *SyncJob) updateMetrics(result *SyncResult, archived int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.UnitsSynced += int64(result.Successful)
	j.metrics.UnitsFailed += int64(result.Failed)
	j.metrics.StationsArchived += int64(archived)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
}

// Metrics returns a copy of the current metrics.
func (j *SyncJob) Metrics() SyncMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}

// HealthCheck lists the archive and runs a precipitation station lookup for
// state against the gateway.
func (j *SyncJob) HealthCheck(ctx context.Context, state string) error {
	if _, err := j.store.ListUnits(ctx); err != nil {
		return fmt.Errorf("station archive: %w", err)
	}

	session := acis.NewSession(acis.SessionConfig{Gateway: j.gateway, Logger: j.logger})
	if _, err := session.FindStations(ctx, acis.Criteria{
		State:    state,
		Elements: []string{"pcpn"},
	}); err != nil {
		return fmt.Errorf("acis: %w", err)
	}
	return nil
}
