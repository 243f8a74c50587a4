package stationstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the archive tables. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS unit_syncs (
	unit_code     TEXT PRIMARY KEY,
	sync_id       UUID NOT NULL,
	bbox_west     DOUBLE PRECISION NOT NULL,
	bbox_south    DOUBLE PRECISION NOT NULL,
	bbox_east     DOUBLE PRECISION NOT NULL,
	bbox_north    DOUBLE PRECISION NOT NULL,
	buffer_km     DOUBLE PRECISION NOT NULL,
	elements      TEXT[] NOT NULL,
	station_count INTEGER NOT NULL,
	synced_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS unit_stations (
	unit_code  TEXT NOT NULL REFERENCES unit_syncs (unit_code) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	station_id TEXT NOT NULL,
	uid        BIGINT,
	sids       TEXT[] NOT NULL,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	lat        DOUBLE PRECISION NOT NULL,
	elevation  DOUBLE PRECISION NOT NULL,
	valid_from TEXT NOT NULL DEFAULT '',
	valid_to   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (unit_code, position)
);
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL station archive.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply station archive schema: %w", err)
	}
	return nil
}

// SaveUnitStations replaces the stations archived for sync.UnitCode in one
// transaction.
func (r *PostgresRepository) SaveUnitStations(ctx context.Context, s UnitSync, stations []StationRecord) error {
	unit := NormalizeUnitCode(s.UnitCode)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback error is not critical

	_, err = tx.Exec(ctx, `
		INSERT INTO unit_syncs (
			unit_code, sync_id, bbox_west, bbox_south, bbox_east, bbox_north,
			buffer_km, elements, station_count, synced_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (unit_code) DO UPDATE SET
			sync_id = EXCLUDED.sync_id,
			bbox_west = EXCLUDED.bbox_west,
			bbox_south = EXCLUDED.bbox_south,
			bbox_east = EXCLUDED.bbox_east,
			bbox_north = EXCLUDED.bbox_north,
			buffer_km = EXCLUDED.buffer_km,
			elements = EXCLUDED.elements,
			station_count = EXCLUDED.station_count,
			synced_at = EXCLUDED.synced_at
	`, unit, s.SyncID, s.BBox.West, s.BBox.South, s.BBox.East, s.BBox.North,
		s.BufferKM, nonNil(s.Elements), len(stations), s.SyncedAt)
	if err != nil {
		return fmt.Errorf("upsert unit sync: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM unit_stations WHERE unit_code = $1`, unit); err != nil {
		return fmt.Errorf("clear unit stations: %w", err)
	}

	if len(stations) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO unit_stations (
				unit_code, position, station_id, uid, sids, name, state,
				lon, lat, elevation, valid_from, valid_to
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		for i, st := range stations {
			batch.Queue(query, unit, i, st.StationID, st.UID, nonNil(st.SIDs), st.Name, st.State,
				st.Lon, st.Lat, st.Elevation, st.ValidFrom, st.ValidTo)
		}

		res := tx.SendBatch(ctx, batch)
		for range stations {
			if _, err := res.Exec(); err != nil {
				res.Close()
				return fmt.Errorf("insert unit station: %w", err)
			}
		}
		if err := res.Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// ListUnitStations returns the archived stations of a unit.
func (r *PostgresRepository) ListUnitStations(ctx context.Context, unitCode string) (*UnitSync, []StationRecord, error) {
	unit := NormalizeUnitCode(unitCode)

	s, err := scanUnitSync(r.pool.QueryRow(ctx, unitSyncSelect+` WHERE unit_code = $1`, unit))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrUnitNotFound
		}
		return nil, nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT
			unit_code, station_id, uid, sids, name, state,
			lon, lat, elevation, valid_from, valid_to
		FROM unit_stations
		WHERE unit_code = $1
		ORDER BY position
	`, unit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var stations []StationRecord
	for rows.Next() {
		var st StationRecord
		if err := rows.Scan(
			&st.UnitCode,
			&st.StationID,
			&st.UID,
			&st.SIDs,
			&st.Name,
			&st.State,
			&st.Lon,
			&st.Lat,
			&st.Elevation,
			&st.ValidFrom,
			&st.ValidTo,
		); err != nil {
			return nil, nil, err
		}
		stations = append(stations, st)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return s, stations, nil
}

// ListUnits returns the latest sync of every unit, ordered by unit code.
func (r *PostgresRepository) ListUnits(ctx context.Context) ([]UnitSync, error) {
	rows, err := r.pool.Query(ctx, unitSyncSelect+` ORDER BY unit_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := []UnitSync{}
	for rows.Next() {
		s, err := scanUnitSync(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *s)
	}
	return units, rows.Err()
}

const unitSyncSelect = `
	SELECT
		unit_code, sync_id::text, bbox_west, bbox_south, bbox_east, bbox_north,
		buffer_km, elements, station_count, synced_at
	FROM unit_syncs`

func scanUnitSync(row pgx.Row) (*UnitSync, error) {
	var s UnitSync
	err := row.Scan(
		&s.UnitCode,
		&s.SyncID,
		&s.BBox.West,
		&s.BBox.South,
		&s.BBox.East,
		&s.BBox.North,
		&s.BufferKM,
		&s.Elements,
		&s.StationCount,
		&s.SyncedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
