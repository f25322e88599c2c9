package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	devicedomain "github.com/micro-ha/zway-bridge/addon/internal/domain/device"
	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

var _ devicedomain.Repository = (*DeviceRepository)(nil)

func TestDeviceRepositoryMapsNotFound(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "bridge.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	repo := db.Devices()
	if _, err := repo.GetDevice(ctx, "missing"); !errors.Is(err, devicedomain.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound on get, got %v", err)
	}
	if err := repo.UpdateLevel(ctx, "missing", "1", "", 1); !errors.Is(err, devicedomain.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound on update, got %v", err)
	}

	if _, err := repo.UpsertDevice(ctx, model.Device{ID: "lamp", DeviceType: model.DeviceTypeSwitchBinary}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := repo.GetDevice(ctx, "lamp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DeviceType != model.DeviceTypeSwitchBinary {
		t.Fatalf("unexpected device type %q", got.DeviceType)
	}
	if db.SQLDB() == nil {
		t.Fatalf("expected sql handle")
	}
}
