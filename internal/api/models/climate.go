package models

import "github.com/imclimate/acis/internal/acis"

// ParameterList is the response of GET /v1/parameters.
type ParameterList struct {
	Parameters []acis.Parameter `json:"parameters"`
	Defaults   []string         `json:"defaults"`
}

// StationList is the response of GET /v1/stations. Exactly one of Meta, IDs
// or Labels is set, depending on the requested view.
type StationList struct {
	Count       int               `json:"count"`
	View        string            `json:"view"`
	Meta        []acis.Station    `json:"meta,omitempty"`
	IDs         []string          `json:"ids,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	BBox        *acis.BoundingBox `json:"bbox,omitempty"`
	QueryParams acis.Request      `json:"queryParams,omitempty"`
}

// Station list views.
const (
	ViewMeta   = "meta"
	ViewIDs    = "ids"
	ViewLabels = "labels"
)

// ObservationList is the response of GET /v1/stations/{sid}/observations.
type ObservationList struct {
	*acis.ObservationSeries
	Count int `json:"count"`
}

// UnitSummary describes one archived unit sync.
type UnitSummary struct {
	UnitCode     string           `json:"unitCode"`
	SyncID       string           `json:"syncId"`
	BBox         acis.BoundingBox `json:"bbox"`
	BufferKM     float64          `json:"bufferKm"`
	Elements     []string         `json:"elements"`
	StationCount int              `json:"stationCount"`
	SyncedAt     Timestamp        `json:"syncedAt"`
}

// UnitList is the response of GET /v1/units.
type UnitList struct {
	Units []UnitSummary `json:"units"`
}

// ArchivedStation is a station stored by the sync worker.
type ArchivedStation struct {
	StationID string   `json:"stationId"`
	UID       *int64   `json:"uid,omitempty"`
	SIDs      []string `json:"sids"`
	Name      string   `json:"name"`
	State     string   `json:"state"`
	Lon       float64  `json:"lon"`
	Lat       float64  `json:"lat"`
	Elevation float64  `json:"elev"`
	ValidFrom string   `json:"validFrom,omitempty"`
	ValidTo   string   `json:"validTo,omitempty"`
}

// UnitStations is the response of GET /v1/units/{unitCode}/stations.
type UnitStations struct {
	Unit     UnitSummary       `json:"unit"`
	Stations []ArchivedStation `json:"stations"`
}
