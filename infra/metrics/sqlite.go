package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
)

// SQLiteSink persists sensor state history to a SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates the database at path and ensures schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS sensor_states (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        ts INTEGER,
        unique_id TEXT,
        vin TEXT,
        attribute TEXT,
        record TEXT
    );
    CREATE INDEX IF NOT EXISTS sensor_states_uid_ts ON sensor_states (unique_id, ts);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

// RecordSensorState appends the state to the history table.
func (s *SQLiteSink) RecordSensorState(ev coremetrics.SensorStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sensor_states (ts, unique_id, vin, attribute, record) VALUES (?, ?, ?, ?, ?)`,
		ev.Time.UnixNano(), ev.UniqueID, ev.VIN, ev.Attribute, string(b))
	return err
}

// Query returns records matching q ordered by time.
func (s *SQLiteSink) Query(ctx context.Context, q coremetrics.HistoryQuery) ([]coremetrics.SensorStateEvent, error) {
	var args []any
	query := `SELECT record FROM sensor_states WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.UniqueID != "" {
		query += ` AND unique_id = ?`
		args = append(args, q.UniqueID)
	}
	if q.VIN != "" {
		query += ` AND vin = ?`
		args = append(args, q.VIN)
	}
	if q.Attribute != "" {
		query += ` AND attribute = ?`
		args = append(args, q.Attribute)
	}
	query += ` ORDER BY ts, id`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []coremetrics.SensorStateEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var ev coremetrics.SensorStateEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error { return s.db.Close() }
