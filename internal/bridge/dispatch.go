package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

const (
	commandSet   = "set"
	commandExact = "exact"
)

// ErrReadOnlyDevice is returned when a set command targets a sensor.
var ErrReadOnlyDevice = errors.New("device is read-only")

// DeviceController looks devices up and runs actions on them.
type DeviceController interface {
	Get(ctx context.Context, id string) (model.Device, error)
	PerformCommand(ctx context.Context, id, command string, params map[string]string) error
}

// Command is one inbound frame from the remote endpoint.
type Command struct {
	Command string      `json:"command"`
	ID      string      `json:"id"`
	Value   model.Level `json:"value"`
}

// Dispatcher decodes inbound frames and applies recognised commands.
type Dispatcher struct {
	devices DeviceController
	logger  *slog.Logger
}

func NewDispatcher(devices DeviceController, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{devices: devices, logger: logger}
}

// Handle processes one frame. Malformed frames and unknown commands are
// dropped; failures are logged and never returned to the transport.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		d.logger.Warn("unable to parse message", "err", err, "bytes", len(raw))
		return
	}
	if cmd.Command != commandSet {
		d.logger.Debug("ignoring command", "command", cmd.Command)
		return
	}

	err := d.SetDevice(ctx, cmd.ID, cmd.Value.String())
	if err != nil && !errors.Is(err, ErrReadOnlyDevice) {
		d.logger.Error("set command failed", "device", cmd.ID, "value", cmd.Value.String(), "err", err)
	}
}

// SetDevice maps a remote set value to a device action.
func (d *Dispatcher) SetDevice(ctx context.Context, id, value string) error {
	device, err := d.devices.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup device %s: %w", id, err)
	}

	if device.IsSensor() {
		d.logger.Error("can't perform action on sensor", "device", id, "title", device.Metrics.Title)
		return fmt.Errorf("%w: %s", ErrReadOnlyDevice, device.Metrics.Title)
	}

	switch {
	case device.DeviceType == model.DeviceTypeSwitchMultilevel && !isSwitchLiteral(value):
		return d.devices.PerformCommand(ctx, id, commandExact, map[string]string{"level": value + "%"})
	case device.DeviceType == model.DeviceTypeThermostat:
		return d.devices.PerformCommand(ctx, id, commandExact, map[string]string{"level": value})
	default:
		return d.devices.PerformCommand(ctx, id, value, nil)
	}
}

func isSwitchLiteral(value string) bool {
	switch value {
	case "on", "off", "stop":
		return true
	default:
		return false
	}
}
