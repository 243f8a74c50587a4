package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/imclimate/acis/internal/api/models"
	"github.com/imclimate/acis/internal/api/response"
	"github.com/imclimate/acis/internal/stationstore"
)

// UnitHandler serves stations archived by the sync worker.
type UnitHandler struct {
	store  stationstore.Repository
	logger zerolog.Logger
}

// NewUnitHandler creates a new UnitHandler. A nil store answers 503.
func NewUnitHandler(store stationstore.Repository, logger zerolog.Logger) *UnitHandler {
	return &UnitHandler{store: store, logger: logger}
}

// ListUnits handles GET /v1/units - units with an archived sync.
func (h *UnitHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.ServiceUnavailable(w, r, "station archive is not configured")
		return
	}

	syncs, err := h.store.ListUnits(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := models.UnitList{Units: make([]models.UnitSummary, 0, len(syncs))}
	for _, s := range syncs {
		out.Units = append(out.Units, unitSummary(s))
	}
	response.JSON(w, r, http.StatusOK, out)
}

// ListUnitStations handles GET /v1/units/{unitCode}/stations - the stations
// stored by the last sync of a unit.
func (h *UnitHandler) ListUnitStations(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.ServiceUnavailable(w, r, "station archive is not configured")
		return
	}

	sync, records, err := h.store.ListUnitStations(r.Context(), chi.URLParam(r, "unitCode"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := models.UnitStations{
		Unit:     unitSummary(*sync),
		Stations: make([]models.ArchivedStation, 0, len(records)),
	}
	for _, rec := range records {
		out.Stations = append(out.Stations, models.ArchivedStation{
			StationID: rec.StationID,
			UID:       rec.UID,
			SIDs:      rec.SIDs,
			Name:      rec.Name,
			State:     rec.State,
			Lon:       rec.Lon,
			Lat:       rec.Lat,
			Elevation: rec.Elevation,
			ValidFrom: rec.ValidFrom,
			ValidTo:   rec.ValidTo,
		})
	}
	response.JSON(w, r, http.StatusOK, out)
}

func unitSummary(s stationstore.UnitSync) models.UnitSummary {
	return models.UnitSummary{
		UnitCode:     s.UnitCode,
		SyncID:       s.SyncID,
		BBox:         s.BBox,
		BufferKM:     s.BufferKM,
		Elements:     s.Elements,
		StationCount: s.StationCount,
		SyncedAt:     models.Timestamp(s.SyncedAt),
	}
}
