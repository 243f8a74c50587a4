package stationstore

import "context"

// Repository persists unit syncs and their stations.
type Repository interface {
	// SaveUnitStations replaces the stations archived for sync.UnitCode.
	SaveUnitStations(ctx context.Context, sync UnitSync, stations []StationRecord) error

	// ListUnitStations returns the archived stations of a unit in the order
	// they were saved. Returns ErrUnitNotFound if the unit was never synced.
	ListUnitStations(ctx context.Context, unitCode string) (*UnitSync, []StationRecord, error)

	// ListUnits returns the latest sync of every unit, ordered by unit code.
	ListUnits(ctx context.Context) ([]UnitSync, error)
}
