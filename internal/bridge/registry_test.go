package bridge

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/micro-ha/zway-bridge/addon/internal/events"
	"github.com/micro-ha/zway-bridge/addon/internal/model"
	"github.com/micro-ha/zway-bridge/addon/internal/repository/sqlite"
	devicesvc "github.com/micro-ha/zway-bridge/addon/internal/services/device"
)

func TestRemoteSetRoundTripThroughRegistry(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "bridge.db"), logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	devices := devicesvc.New(db.Devices(), events.NewBus(logger), logger)
	if err := devices.UpsertLocations(ctx, []model.Location{{ID: 4, Title: "Hall"}}); err != nil {
		t.Fatalf("seed locations: %v", err)
	}
	if err := devices.Upsert(ctx, model.Device{
		ID:         "dimmer",
		DeviceType: model.DeviceTypeSwitchMultilevel,
		Location:   4,
		Metrics:    model.Metrics{Title: "Hall dimmer", Level: "0"},
	}); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	transport := &fakeTransport{}
	b := New(devices, devices, NewRoomIndex(devices, logger), transport, logger)
	if err := b.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer b.Stop()
	if len(transport.sent) != 1 {
		t.Fatalf("expected initial broadcast of 1 device, got %d", len(transport.sent))
	}

	dispatcher := NewDispatcher(devices.Controller(model.CommandSourceRemote), logger)
	dispatcher.Handle(ctx, []byte(`{"command":"set","id":"dimmer","value":"50"}`))

	if len(transport.sent) != 2 {
		t.Fatalf("expected level change to be forwarded, got %d frames", len(transport.sent))
	}
	var frame struct {
		ID      string  `json:"id"`
		Room    *string `json:"room"`
		Metrics struct {
			Level     json.Number `json:"level"`
			LastLevel json.Number `json:"lastLevel"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(transport.sent[1]), &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.ID != "dimmer" || frame.Room == nil || *frame.Room != "Hall" {
		t.Fatalf("unexpected frame: %s", transport.sent[1])
	}
	if frame.Metrics.Level != "50" || frame.Metrics.LastLevel != "0" {
		t.Fatalf("unexpected metrics in frame: %s", transport.sent[1])
	}

	cmds, err := devices.Commands(ctx, "dimmer", 10)
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Command != "exact" || cmds[0].Params["level"] != "50%" || cmds[0].Source != model.CommandSourceRemote {
		t.Fatalf("unexpected command log: %+v", cmds)
	}
}
