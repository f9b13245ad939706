package repository

import (
	"context"
	"database/sql"
	"time"

	"farmlab_twin/internal/models"
)

// HistorySQLite archives every recorded reading beyond the in-memory ring,
// so ranges wider than the ring can still be exported.
type HistorySQLite struct {
	db *sql.DB
}

func NewHistorySQLite(db *sql.DB) *HistorySQLite {
	return &HistorySQLite{db: db}
}

var _ HistoryRepo = (*HistorySQLite)(nil)

const (
	insertReadingSQL = `
		INSERT INTO sensor_readings (channel, recorded_at, value)
		VALUES (?, ?, ?)
	`

	selectRangeSQL = `
		SELECT recorded_at, value FROM sensor_readings
		WHERE channel = ? AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at ASC
	`
)

// Record persists one reading. Timestamps are stored in UTC; a zero time
// is replaced with now.
func (r *HistorySQLite) Record(ctx context.Context, ch models.Channel, reading models.SensorReading) error {
	ts := reading.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		string(ch),
		ts.Format("2006-01-02 15:04:05"),
		reading.Value,
	)
	return err
}

// Range returns the archived readings for ch within [from, to], oldest first.
func (r *HistorySQLite) Range(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.SensorReading, error) {
	rows, err := r.db.QueryContext(ctx, selectRangeSQL,
		string(ch),
		from.UTC().Format("2006-01-02 15:04:05"),
		to.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.SensorReading, 0, 128)
	for rows.Next() {
		var reading models.SensorReading
		if err := rows.Scan(&reading.Time, &reading.Value); err != nil {
			return nil, err
		}
		reading.Time = reading.Time.UTC()
		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
