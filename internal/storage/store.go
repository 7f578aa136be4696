// Package storage persists a durable audit log of deliveries behind a
// driver-selectable Store. The store is optional: a nil Store disables
// auditing without branching at call sites.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"camsync/internal/config"
	"camsync/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveDelivery(ctx context.Context, rec model.DeliveryRecord) error
	RecentDeliveries(ctx context.Context, limit int) ([]model.DeliveryRecord, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func scanDeliveries(rows *sql.Rows) ([]model.DeliveryRecord, error) {
	defer rows.Close()
	out := make([]model.DeliveryRecord, 0)
	for rows.Next() {
		var rec model.DeliveryRecord
		var ts string
		if err := rows.Scan(&ts, &rec.DeviceID, &rec.DeviceName, &rec.EventID, &rec.Caption, &rec.Origin, &rec.ClipBytes); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
