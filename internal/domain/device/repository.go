package device

import "context"

// Repository defines persistent storage operations for device domain.
type Repository interface {
	ListDevices(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, id string) (Device, error)
	UpsertDevice(ctx context.Context, d Device) (bool, error)
	UpdateLevel(ctx context.Context, id string, level, lastLevel Level, updateTime uint64) error

	ListLocations(ctx context.Context) ([]Location, error)
	UpsertLocations(ctx context.Context, locations []Location) error

	InsertCommand(ctx context.Context, rec CommandRecord) error
	ListCommands(ctx context.Context, deviceID string, limit int) ([]CommandRecord, error)
}
