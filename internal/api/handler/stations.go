package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/acis"
	"github.com/imclimate/acis/internal/api/models"
	"github.com/imclimate/acis/internal/api/response"
	"github.com/imclimate/acis/internal/unitbounds"
)

// UnitBounds resolves a park or refuge unit code to a buffered bounding box.
type UnitBounds interface {
	BoundingBox(ctx context.Context, unitCode string, bufferKM float64) (acis.BoundingBox, error)
}

// StationHandlerConfig holds configuration for a StationHandler.
type StationHandlerConfig struct {
	Gateway acis.Gateway
	// Bounds is optional; without it the unit query parameter is rejected.
	Bounds UnitBounds
	Logger zerolog.Logger
}

// StationHandler serves live station lookups and station data.
type StationHandler struct {
	gateway acis.Gateway
	bounds  UnitBounds
	logger  zerolog.Logger
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(cfg StationHandlerConfig) *StationHandler {
	return &StationHandler{
		gateway: cfg.Gateway,
		bounds:  cfg.Bounds,
		logger:  cfg.Logger,
	}
}

// session returns a fresh Session; sessions are not shared across requests.
func (h *StationHandler) session() *acis.Session {
	return acis.NewSession(acis.SessionConfig{
		Gateway: h.gateway,
		Logger:  h.logger,
	})
}

// ListStations handles GET /v1/stations - station metadata search.
//
// Query parameters: state, elements (comma separated or repeated), county,
// huc, bbox, sdate, edate, unit with buffer_km, view (meta, ids or labels)
// and require=nonempty.
func (h *StationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view := strings.ToLower(strings.TrimSpace(q.Get("view")))
	switch view {
	case "":
		view = models.ViewMeta
	case models.ViewMeta, models.ViewIDs, models.ViewLabels:
	default:
		response.BadRequest(w, r, "unknown view "+strconv.Quote(view), []models.FieldError{
			{Field: "view", Message: "must be meta, ids or labels", Code: "INVALID"},
		})
		return
	}

	var opts []acis.ViewOption
	switch require := strings.ToLower(strings.TrimSpace(q.Get("require"))); require {
	case "":
	case "nonempty":
		opts = append(opts, acis.RequireNonEmpty())
	default:
		response.BadRequest(w, r, "unknown require value "+strconv.Quote(require), []models.FieldError{
			{Field: "require", Message: "must be nonempty", Code: "INVALID"},
		})
		return
	}

	criteria := criteriaFromQuery(q)

	var resolved *acis.BoundingBox
	if unit := strings.TrimSpace(q.Get("unit")); unit != "" {
		if criteria.BBox != nil {
			response.BadRequest(w, r, "unit and bbox are mutually exclusive", []models.FieldError{
				{Field: "unit", Message: "cannot be combined with bbox", Code: "CONFLICT"},
			})
			return
		}
		box, ok := h.resolveUnit(w, r, unit, q.Get("buffer_km"))
		if !ok {
			return
		}
		resolved = &box
		criteria.BBox = box
	}

	collection, err := h.session().FindStations(r.Context(), criteria)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := models.StationList{
		Count:       collection.Len(),
		View:        view,
		BBox:        resolved,
		QueryParams: collection.Request(),
	}

	switch view {
	case models.ViewIDs:
		out.IDs, err = collection.StationIDs(opts...)
	case models.ViewLabels:
		out.Labels, err = collection.StationLabels(opts...)
	default:
		if len(opts) > 0 && collection.Len() == 0 {
			err = acis.ErrEmptyCollection
		}
		out.Meta = collection.Stations()
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, out)
}

// resolveUnit looks up the unit's envelope and writes the error response
// itself when it fails.
func (h *StationHandler) resolveUnit(w http.ResponseWriter, r *http.Request, unit, rawBuffer string) (acis.BoundingBox, bool) {
	if h.bounds == nil {
		response.ServiceUnavailable(w, r, "unit lookup is not configured")
		return acis.BoundingBox{}, false
	}

	var bufferKM float64
	if rawBuffer = strings.TrimSpace(rawBuffer); rawBuffer != "" {
		v, err := strconv.ParseFloat(rawBuffer, 64)
		if err != nil {
			response.BadRequest(w, r, "buffer_km must be a number", []models.FieldError{
				{Field: "buffer_km", Message: "must be a number", Code: "INVALID"},
			})
			return acis.BoundingBox{}, false
		}
		bufferKM = v
	}

	box, err := h.bounds.BoundingBox(r.Context(), unit, bufferKM)
	if err == nil {
		return box, true
	}

	switch {
	case errors.Is(err, unitbounds.ErrInvalidUnitCode),
		errors.Is(err, unitbounds.ErrNegativeBuffer),
		errors.Is(err, unitbounds.ErrUnitNotFound):
		writeError(w, r, h.logger, err)
	default:
		h.logger.Warn().Err(err).Str("unit_code", unit).Msg("unit bounding box lookup failed")
		response.BadGateway(w, r, fmt.Sprintf("unit geography lookup for %s failed", unit))
	}
	return acis.BoundingBox{}, false
}

// GetObservations handles GET /v1/stations/{sid}/observations - daily or
// monthly values of one element.
func (h *StationHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	element := strings.TrimSpace(q.Get("element"))
	if element == "" {
		response.BadRequest(w, r, "element is required", []models.FieldError{
			{Field: "element", Message: "required", Code: "REQUIRED"},
		})
		return
	}

	kind, err := acis.ParseKind(q.Get("interval"))
	if err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "interval", Message: "must be daily or monthly", Code: "INVALID"},
		})
		return
	}

	series, err := h.session().FetchObservations(r.Context(), acis.ObservationQuery{
		StationID: chi.URLParam(r, "sid"),
		Element:   element,
		StartDate: q.Get("sdate"),
		EndDate:   q.Get("edate"),
		Kind:      kind,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.ObservationList{
		ObservationSeries: series,
		Count:             len(series.Observations),
	})
}

// criteriaFromQuery maps query parameters onto a station search. Blank
// values are left unset.
func criteriaFromQuery(q url.Values) acis.Criteria {
	c := acis.Criteria{
		State:     strings.TrimSpace(q.Get("state")),
		StartDate: q.Get("sdate"),
		EndDate:   q.Get("edate"),
	}

	for _, raw := range q["elements"] {
		for _, code := range strings.Split(raw, ",") {
			if code = strings.TrimSpace(code); code != "" {
				c.Elements = append(c.Elements, code)
			}
		}
	}

	if v := strings.TrimSpace(q.Get("county")); v != "" {
		c.County = v
	}
	if v := strings.TrimSpace(q.Get("huc")); v != "" {
		c.HUC = v
	}
	if v := strings.TrimSpace(q.Get("bbox")); v != "" {
		c.BBox = v
	}
	return c
}
