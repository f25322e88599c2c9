package seed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

const sampleSeed = `
locations:
  - id: 1
    title: Kitchen
  - id: 2
    title: Hall
devices:
  - id: ZWayVDev_zway_2-0-37
    deviceType: switchBinary
    location: 1
    title: Kettle
    level: "off"
  - id: ZWayVDev_zway_5-0-38
    deviceType: switchMultilevel
    location: 2
    title: Hall dimmer
    level: "30"
    tags: [lights]
  - id: ZWayVDev_zway_7-0-49-1
    deviceType: sensorMultilevel
    title: Hall temperature
    scaleTitle: "°C"
    hidden: true
`

type memoryTarget struct {
	locations []model.Location
	devices   map[string]model.Device
}

func (m *memoryTarget) Get(ctx context.Context, id string) (model.Device, error) {
	_ = ctx
	d, ok := m.devices[id]
	if !ok {
		return model.Device{}, errors.New("not found")
	}
	return d, nil
}

func (m *memoryTarget) UpsertLocations(ctx context.Context, locations []model.Location) error {
	_ = ctx
	m.locations = append(m.locations, locations...)
	return nil
}

func (m *memoryTarget) Upsert(ctx context.Context, d model.Device) error {
	_ = ctx
	m.devices[d.ID] = d
	return nil
}

func TestParseSeed(t *testing.T) {
	f, err := Parse([]byte(sampleSeed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	devices := f.DeviceList()
	if len(devices) != 3 || len(f.LocationList()) != 2 {
		t.Fatalf("unexpected counts: %d devices, %d locations", len(devices), len(f.LocationList()))
	}
	if devices[1].Metrics.Level != "30" || devices[1].Location != 2 || devices[1].Tags[0] != "lights" {
		t.Fatalf("unexpected dimmer: %+v", devices[1])
	}
	if devices[0].Tags == nil {
		t.Fatalf("expected empty tags slice")
	}
	sensor := devices[2]
	if !sensor.IsSensor() || sensor.Visibility || !sensor.PermanentlyHidden || sensor.Metrics.ScaleTitle != "°C" {
		t.Fatalf("unexpected sensor: %+v", sensor)
	}
}

func TestParseRejectsInvalidDevices(t *testing.T) {
	cases := map[string]string{
		"missing id":   "devices:\n  - deviceType: switchBinary\n",
		"missing type": "devices:\n  - id: lamp\n",
		"duplicate":    "devices:\n  - id: lamp\n    deviceType: switchBinary\n  - id: lamp\n    deviceType: switchBinary\n",
		"bad yaml":     "devices: [",
	}
	for name, body := range cases {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadKeepsExistingLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(sampleSeed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	target := &memoryTarget{devices: map[string]model.Device{
		"ZWayVDev_zway_5-0-38": {ID: "ZWayVDev_zway_5-0-38", UpdateTime: 77, Metrics: model.Metrics{Level: "80", LastLevel: "30"}},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := Load(context.Background(), path, target, logger); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(target.locations) != 2 || len(target.devices) != 3 {
		t.Fatalf("unexpected target state: %+v", target)
	}
	dimmer := target.devices["ZWayVDev_zway_5-0-38"]
	if dimmer.Metrics.Level != "80" || dimmer.UpdateTime != 77 || dimmer.Metrics.Title != "Hall dimmer" {
		t.Fatalf("expected level kept and metadata refreshed, got %+v", dimmer)
	}
}

func TestLoadMissingFile(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	target := &memoryTarget{devices: map[string]model.Device{}}
	if err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), target, logger); err != nil {
		t.Fatalf("expected missing seed to be skipped, got %v", err)
	}
	if err := Load(context.Background(), "", target, logger); err != nil {
		t.Fatalf("expected empty path to be skipped, got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("devices:\n  - id: x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	err := Load(context.Background(), bad, target, logger)
	if err == nil || !strings.Contains(err.Error(), "missing deviceType") {
		t.Fatalf("expected validation error, got %v", err)
	}
}
