package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore persists records to PostgreSQL through the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and ensures the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	schema := `CREATE TABLE IF NOT EXISTS auction_logs (
        id BIGSERIAL PRIMARY KEY,
        ts TIMESTAMPTZ NOT NULL,
        run_id TEXT NOT NULL,
        task_id TEXT NOT NULL,
        winner TEXT NOT NULL,
        record JSONB NOT NULL
    );
    CREATE INDEX IF NOT EXISTS auction_logs_run_task ON auction_logs (run_id, task_id);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auction_logs (ts, run_id, task_id, winner, record) VALUES ($1, $2, $3, $4, $5)`,
		rec.Timestamp.UTC(), rec.RunID, rec.TaskID, rec.Winner, b)
	return err
}

// Query returns records matching q, oldest first.
func (s *PostgresStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT record FROM auction_logs WHERE TRUE`
	add := func(cond string, v any) {
		args = append(args, v)
		query += " AND " + cond + " $" + strconv.Itoa(len(args))
	}
	if !q.Start.IsZero() {
		add("ts >=", q.Start.UTC())
	}
	if !q.End.IsZero() {
		add("ts <=", q.End.UTC())
	}
	if q.TaskID != "" {
		add("task_id =", q.TaskID)
	}
	if q.RunID != "" {
		add("run_id =", q.RunID)
	}
	query += ` ORDER BY ts, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		if q.Match(r) {
			res = append(res, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
