package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/imclimate/acis/internal/api/models"
	"github.com/imclimate/acis/internal/api/response"
	"github.com/imclimate/acis/internal/provider/resilience"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// OpsHandlerConfig holds configuration for an OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	// Registry supplies upstream circuit state. Optional.
	Registry *resilience.Registry
	// Checks are run by the readiness and status endpoints, keyed by
	// subsystem name.
	Checks map[string]ReadinessCheck
	// CheckTimeout bounds each check. Defaults to 2s.
	CheckTimeout time.Duration
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version      string
	buildTime    string
	registry     *resilience.Registry
	checks       map[string]ReadinessCheck
	checkTimeout time.Duration
	now          func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	return &OpsHandler{
		version:      cfg.Version,
		buildTime:    cfg.BuildTime,
		registry:     cfg.Registry,
		checks:       cfg.Checks,
		checkTimeout: cfg.CheckTimeout,
		now:          time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready - 503 while any subsystem check
// fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
			if health.Details == nil {
				health.Details = map[string]any{}
			}
			health.Details[s.Name] = *s.Detail
		}
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem checks and upstream
// circuit state. A failed subsystem fails the service; an open or half-open
// circuit degrades it.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	out := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.runChecks(r.Context()),
		Upstreams:  []models.UpstreamStatus{},
	}

	for _, s := range out.Subsystems {
		if s.Status != models.HealthStatusOK {
			out.Status = models.HealthStatusFail
		}
	}

	if h.registry != nil {
		for _, u := range h.registry.AllHealth() {
			us := upstreamStatus(u)
			if us.Status != models.HealthStatusOK && out.Status == models.HealthStatusOK {
				out.Status = models.HealthStatusDegraded
			}
			out.Upstreams = append(out.Upstreams, us)
		}
	}

	response.JSON(w, r, http.StatusOK, out)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func upstreamStatus(u *resilience.UpstreamHealth) models.UpstreamStatus {
	us := models.UpstreamStatus{
		Name:         u.Name,
		CircuitState: u.CircuitState.String(),
		Requests:     u.Counts.Requests,
		Failures:     u.Counts.TotalFailures,
	}
	if u.LastSuccessAt != nil {
		us.LastSuccessAt = models.TimestampPtr(*u.LastSuccessAt)
	}
	if u.LastFailureAt != nil {
		us.LastFailureAt = models.TimestampPtr(*u.LastFailureAt)
	}
	if u.LastError != "" {
		msg := u.LastError
		us.Message = &msg
	}

	switch u.Status() {
	case resilience.StatusHealthy:
		us.Status = models.HealthStatusOK
	case resilience.StatusDegraded:
		us.Status = models.HealthStatusDegraded
	default:
		us.Status = models.HealthStatusFail
	}
	return us
}
