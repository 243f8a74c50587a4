// Package stationstore archives the stations found for park and refuge units
// by the sync worker.
package stationstore

import (
	"errors"
	"strings"
	"time"

	"github.com/imclimate/acis/internal/acis"
)

// ErrUnitNotFound is returned when no sync has been stored for a unit.
var ErrUnitNotFound = errors.New("unit not found")

// UnitSync describes one completed station sync for a unit.
type UnitSync struct {
	SyncID       string           `json:"sync_id"`
	UnitCode     string           `json:"unit_code"`
	BBox         acis.BoundingBox `json:"bbox"`
	BufferKM     float64          `json:"buffer_km"`
	Elements     []string         `json:"elements"`
	StationCount int              `json:"station_count"`
	SyncedAt     time.Time        `json:"synced_at"`
}

// StationRecord is an archived station row.
type StationRecord struct {
	UnitCode  string   `json:"unit_code"`
	StationID string   `json:"station_id"`
	UID       *int64   `json:"uid,omitempty"`
	SIDs      []string `json:"sids"`
	Name      string   `json:"name"`
	State     string   `json:"state"`
	Lon       float64  `json:"lon"`
	Lat       float64  `json:"lat"`
	Elevation float64  `json:"elevation"`

	// ValidFrom and ValidTo span every non-empty valid date range of the
	// requested elements. Empty when the service reported none.
	ValidFrom string `json:"valid_from,omitempty"`
	ValidTo   string `json:"valid_to,omitempty"`
}

// NormalizeUnitCode upper-cases and trims a unit code for storage keys.
func NormalizeUnitCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RecordsFromCollection flattens a station collection for archiving under
// unitCode, keeping service order.
func RecordsFromCollection(unitCode string, c *acis.StationCollection) []StationRecord {
	unit := NormalizeUnitCode(unitCode)
	records := make([]StationRecord, 0, c.Len())
	for _, s := range c.Stations() {
		lon, lat := s.Location()
		r := StationRecord{
			UnitCode:  unit,
			StationID: s.ID(),
			SIDs:      s.SIDs(),
			Name:      s.Name(),
			State:     s.State(),
			Lon:       lon,
			Lat:       lat,
			Elevation: s.Elevation(),
		}
		if uid, ok := s.UID(); ok {
			r.UID = &uid
		}
		r.ValidFrom, r.ValidTo = span(s.ValidDateRanges())
		records = append(records, r)
	}
	return records
}

// span returns the earliest start and latest end of the non-empty ranges.
// ISO dates compare correctly as strings.
func span(ranges []acis.DateRange) (from, to string) {
	for _, r := range ranges {
		if r.Start != "" && (from == "" || r.Start < from) {
			from = r.Start
		}
		if r.End != "" && r.End > to {
			to = r.End
		}
	}
	return from, to
}
