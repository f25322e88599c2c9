package sqlite

import (
	"context"
	"errors"

	devicedomain "github.com/micro-ha/zway-bridge/addon/internal/domain/device"
	"github.com/micro-ha/zway-bridge/addon/internal/storage"
)

// DeviceRepository is sqlite implementation of device.Repository.
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates sqlite-backed device repository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// ListDevices returns all devices ordered by id.
func (r *DeviceRepository) ListDevices(ctx context.Context) ([]devicedomain.Device, error) {
	return r.db.storage.ListDevices(ctx)
}

// GetDevice returns one device or device.ErrDeviceNotFound.
func (r *DeviceRepository) GetDevice(ctx context.Context, id string) (devicedomain.Device, error) {
	d, err := r.db.storage.GetDevice(ctx, id)
	return d, mapNotFound(err)
}

// UpsertDevice creates or replaces a device and reports creation.
func (r *DeviceRepository) UpsertDevice(ctx context.Context, d devicedomain.Device) (bool, error) {
	return r.db.storage.UpsertDevice(ctx, d)
}

// UpdateLevel stores new level metrics for a device.
func (r *DeviceRepository) UpdateLevel(
	ctx context.Context,
	id string,
	level devicedomain.Level,
	lastLevel devicedomain.Level,
	updateTime uint64,
) error {
	return mapNotFound(r.db.storage.UpdateLevel(ctx, id, level, lastLevel, updateTime))
}

// ListLocations returns rooms ordered by id.
func (r *DeviceRepository) ListLocations(ctx context.Context) ([]devicedomain.Location, error) {
	return r.db.storage.ListLocations(ctx)
}

// UpsertLocations creates or renames rooms.
func (r *DeviceRepository) UpsertLocations(ctx context.Context, locations []devicedomain.Location) error {
	return r.db.storage.UpsertLocations(ctx, locations)
}

// InsertCommand appends a row to the command log.
func (r *DeviceRepository) InsertCommand(ctx context.Context, rec devicedomain.CommandRecord) error {
	return r.db.storage.InsertCommand(ctx, rec)
}

// ListCommands returns the newest command log rows of a device.
func (r *DeviceRepository) ListCommands(ctx context.Context, deviceID string, limit int) ([]devicedomain.CommandRecord, error) {
	return r.db.storage.ListCommands(ctx, deviceID, limit)
}

func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return devicedomain.ErrDeviceNotFound
	}
	return err
}
