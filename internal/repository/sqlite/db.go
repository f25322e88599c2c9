package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/micro-ha/zway-bridge/addon/internal/storage"
)

// DB owns the bridge database and hands out repositories over it.
type DB struct {
	storage *storage.Repository
	logger  *slog.Logger
}

// Open creates or migrates the sqlite file at dbPath.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*DB, error) {
	base, err := storage.New(ctx, dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return &DB{storage: base, logger: logger}, nil
}

// Devices returns the device repository backed by this database.
func (d *DB) Devices() *DeviceRepository {
	return NewDeviceRepository(d)
}

func (d *DB) Close() error {
	if d == nil || d.storage == nil {
		return nil
	}
	return d.storage.Close()
}

// SQLDB exposes the pool for health checks.
func (d *DB) SQLDB() *sql.DB {
	if d == nil || d.storage == nil {
		return nil
	}
	return d.storage.SQLDB()
}
