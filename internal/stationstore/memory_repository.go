package stationstore

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Contents are lost on restart.
type InMemoryRepository struct {
	mu       sync.RWMutex
	syncs    map[string]UnitSync
	stations map[string][]StationRecord
}

// NewInMemoryRepository creates a new in-memory station archive.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		syncs:    make(map[string]UnitSync),
		stations: make(map[string][]StationRecord),
	}
}

// SaveUnitStations replaces the stations archived for sync.UnitCode.
func (r *InMemoryRepository) SaveUnitStations(_ context.Context, s UnitSync, stations []StationRecord) error {
	unit := NormalizeUnitCode(s.UnitCode)
	s.UnitCode = unit
	s.StationCount = len(stations)
	s.Elements = append([]string(nil), s.Elements...)

	copied := make([]StationRecord, len(stations))
	for i, st := range stations {
		st.UnitCode = unit
		st.SIDs = append([]string(nil), st.SIDs...)
		copied[i] = st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs[unit] = s
	r.stations[unit] = copied
	return nil
}

// ListUnitStations returns the archived stations of a unit.
func (r *InMemoryRepository) ListUnitStations(_ context.Context, unitCode string) (*UnitSync, []StationRecord, error) {
	unit := NormalizeUnitCode(unitCode)

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.syncs[unit]
	if !ok {
		return nil, nil, ErrUnitNotFound
	}

	stations := make([]StationRecord, len(r.stations[unit]))
	copy(stations, r.stations[unit])
	return &s, stations, nil
}

// ListUnits returns the latest sync of every unit, ordered by unit code.
func (r *InMemoryRepository) ListUnits(_ context.Context) ([]UnitSync, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	units := make([]UnitSync, 0, len(r.syncs))
	for _, s := range r.syncs {
		units = append(units, s)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].UnitCode < units[j].UnitCode })
	return units, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
