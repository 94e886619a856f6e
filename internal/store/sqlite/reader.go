package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"ta-snapshot/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

// Reader provides read-only access to stored bars. It implements
// model.BarSource for offline evaluation.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("sqlite reader opened", slog.String("path", dbPath))
	return &Reader{db: db}, nil
}

// FetchBars returns the most recent limit bars of key, ascending by ts.
func (r *Reader) FetchBars(ctx context.Context, key model.SeriesKey, limit int) ([]model.Bar, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("sqlite fetch bars: limit %d must be positive", limit)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM (
			SELECT ts, open, high, low, close, volume
			FROM bars
			WHERE inst_id = ? AND bar = ?
			ORDER BY ts DESC
			LIMIT ?
		) ORDER BY ts ASC
	`, key.InstID, key.Bar, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars %s: %w", key, err)
	}
	defer rows.Close()

	bars := make([]model.Bar, 0, limit)
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.TS, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Ping checks the connection for health probes.
func (r *Reader) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
