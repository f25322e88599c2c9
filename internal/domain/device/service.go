package device

import "context"

// Service exposes device use-cases used by HTTP, MQTT and bridge layers.
type Service interface {
	Get(ctx context.Context, id string) (Device, error)
	List(ctx context.Context) ([]Device, error)
	Locations(ctx context.Context) ([]Location, error)
	Upsert(ctx context.Context, d Device) error
	UpsertLocations(ctx context.Context, locations []Location) error
	UpdateLevel(ctx context.Context, id string, level Level) error
	RunCommand(ctx context.Context, source, id string, in CommandInput) error
	Commands(ctx context.Context, id string, limit int) ([]CommandRecord, error)
}
