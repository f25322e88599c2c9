// Package seed loads the initial device registry from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

// File is the on-disk seed layout.
type File struct {
	Locations []LocationEntry `yaml:"locations"`
	Devices   []DeviceEntry   `yaml:"devices"`
}

type LocationEntry struct {
	ID    int    `yaml:"id"`
	Title string `yaml:"title"`
}

type DeviceEntry struct {
	ID         string   `yaml:"id"`
	DeviceType string   `yaml:"deviceType"`
	Location   int      `yaml:"location"`
	Title      string   `yaml:"title"`
	Icon       string   `yaml:"icon"`
	Level      string   `yaml:"level"`
	ScaleTitle string   `yaml:"scaleTitle"`
	Tags       []string `yaml:"tags"`
	Hidden     bool     `yaml:"hidden"`
}

// Target receives seeded rows.
type Target interface {
	Get(ctx context.Context, id string) (model.Device, error)
	UpsertLocations(ctx context.Context, locations []model.Location) error
	Upsert(ctx context.Context, d model.Device) error
}

// Parse decodes and validates a seed document.
func Parse(body []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(body, &f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	seen := map[string]struct{}{}
	for i, d := range f.Devices {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return File{}, fmt.Errorf("device #%d: missing id", i+1)
		}
		if strings.TrimSpace(d.DeviceType) == "" {
			return File{}, fmt.Errorf("device %s: missing deviceType", id)
		}
		if _, dup := seen[id]; dup {
			return File{}, fmt.Errorf("device %s: duplicate id", id)
		}
		seen[id] = struct{}{}
	}
	return f, nil
}

// DeviceList converts seed entries to registry devices.
func (f File) DeviceList() []model.Device {
	out := make([]model.Device, 0, len(f.Devices))
	for _, d := range f.Devices {
		tags := d.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, model.Device{
			ID:                strings.TrimSpace(d.ID),
			DeviceType:        strings.TrimSpace(d.DeviceType),
			Location:          d.Location,
			Visibility:        !d.Hidden,
			PermanentlyHidden: d.Hidden,
			Tags:              tags,
			Metrics: model.Metrics{
				Title:      d.Title,
				Icon:       d.Icon,
				Level:      model.Level(d.Level),
				ScaleTitle: d.ScaleTitle,
			},
		})
	}
	return out
}

func (f File) LocationList() []model.Location {
	out := make([]model.Location, 0, len(f.Locations))
	for _, loc := range f.Locations {
		out = append(out, model.Location{ID: loc.ID, Title: loc.Title})
	}
	return out
}

// Load applies the seed at path. A missing file is not an error. Devices
// already in the registry keep their current level.
func Load(ctx context.Context, path string, target Target, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	body, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("seed file not found, skipping", "path", path)
		return nil
	}
	if err != nil {
		return err
	}
	f, err := Parse(body)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := target.UpsertLocations(ctx, f.LocationList()); err != nil {
		return fmt.Errorf("seed locations: %w", err)
	}
	for _, d := range f.DeviceList() {
		if existing, err := target.Get(ctx, d.ID); err == nil {
			d.Metrics.Level = existing.Metrics.Level
			d.Metrics.LastLevel = existing.Metrics.LastLevel
			d.UpdateTime = existing.UpdateTime
		}
		if err := target.Upsert(ctx, d); err != nil {
			return fmt.Errorf("seed device %s: %w", d.ID, err)
		}
	}
	logger.Info("seed applied", "path", path, "locations", len(f.Locations), "devices", len(f.Devices))
	return nil
}
