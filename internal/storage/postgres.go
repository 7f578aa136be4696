package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"camsync/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/camsync?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deliveries (
			id BIGSERIAL PRIMARY KEY,
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

func (s *postgresStore) SaveDelivery(ctx context.Context, rec model.DeliveryRecord) error {
	if s.db == nil {
		return nil
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (ts, device_id, device_name, event_id, caption, origin, clip_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
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

func (s *postgresStore) RecentDeliveries(ctx context.Context, limit int) ([]model.DeliveryRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, device_id, device_name, event_id, caption, origin, clip_bytes
		FROM deliveries ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}
