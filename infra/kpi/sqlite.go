// Package kpi persists delivery indicators.
package kpi

import (
	"database/sql"
	"time"

	"github.com/kilianp07/parcelmas/core/metrics/kpi"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ kpi.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS delivery_kpi (
        vehicle_id TEXT,
        day INTEGER,
        delivered INTEGER,
        on_time INTEGER,
        distance REAL,
        tardiness_ns INTEGER,
        PRIMARY KEY(vehicle_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add inserts or accumulates into the record of the same vehicle and day.
func (s *SQLiteStore) Add(r kpi.Record) error {
	_, err := s.db.Exec(`INSERT INTO delivery_kpi (vehicle_id, day, delivered, on_time, distance, tardiness_ns)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(vehicle_id, day) DO UPDATE SET
            delivered = delivered + excluded.delivered,
            on_time = on_time + excluded.on_time,
            distance = distance + excluded.distance,
            tardiness_ns = tardiness_ns + excluded.tardiness_ns`,
		r.VehicleID, kpi.Day(r.Date).Unix(), r.Delivered, r.OnTime, r.Distance, int64(r.Tardiness))
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(vehicleID string, start, end time.Time) ([]kpi.Record, error) {
	rows, err := s.db.Query(`SELECT vehicle_id, day, delivered, on_time, distance, tardiness_ns
        FROM delivery_kpi WHERE vehicle_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		vehicleID, kpi.Day(start).Unix(), kpi.Day(end).Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []kpi.Record
	for rows.Next() {
		var (
			r    kpi.Record
			day  int64
			tard int64
		)
		if err := rows.Scan(&r.VehicleID, &day, &r.Delivered, &r.OnTime, &r.Distance, &tard); err != nil {
			return nil, err
		}
		r.Date = time.Unix(day, 0).UTC()
		r.Tardiness = time.Duration(tard)
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
