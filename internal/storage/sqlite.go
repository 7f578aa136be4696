package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"camsync/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:camsync.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			device_id TEXT NOT NULL,
			device_name TEXT NOT NULL,
			event_id TEXT NOT NULL,
			caption TEXT NOT NULL,
			origin TEXT NOT NULL,
			clip_bytes INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_ts ON deliveries(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_event ON deliveries(event_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveDelivery(ctx context.Context, rec model.DeliveryRecord) error {
	if s.db == nil {
		return nil
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (ts, device_id, device_name, event_id, caption, origin, clip_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano),
		rec.DeviceID,
		rec.DeviceName,
		rec.EventID,
		rec.Caption,
		rec.Origin,
		rec.ClipBytes,
	)
	return err
}

func (s *sqliteStore) RecentDeliveries(ctx context.Context, limit int) ([]model.DeliveryRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, device_id, device_name, event_id, caption, origin, clip_bytes
		FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}
