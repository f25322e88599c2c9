package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/micro-ha/zway-bridge/addon/internal/connection"
	"github.com/micro-ha/zway-bridge/addon/internal/events"
	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

// ErrStopped is returned by Init after Stop.
var ErrStopped = errors.New("bridge stopped")

// Lifecycle is implemented by components started and stopped by the host.
type Lifecycle interface {
	Init(ctx context.Context) error
	Stop() error
}

// EventSource delivers device registry events.
type EventSource interface {
	Subscribe(kind events.Kind, l events.Listener)
	Unsubscribe(kind events.Kind, l events.Listener)
}

// DeviceLister enumerates devices for the initial broadcast.
type DeviceLister interface {
	List(ctx context.Context) ([]model.Device, error)
}

// Transport carries outbound frames. *connection.Manager implements it.
type Transport interface {
	Start()
	Send(msg string)
	Stop()
	Status() connection.Status
}

// Status reports bridge health.
type Status struct {
	Active         bool              `json:"active"`
	TrackedDevices int               `json:"tracked_devices"`
	Connection     connection.Status `json:"connection"`
}

// Bridge relays device changes to the transport.
type Bridge struct {
	events    EventSource
	devices   DeviceLister
	transport Transport
	filter    *ChangeFilter
	rooms     *RoomIndex
	logger    *slog.Logger

	mu      sync.Mutex
	active  bool
	stopped bool

	sendMu sync.Mutex
}

var subscribedKinds = []events.Kind{events.KindLevelChanged, events.KindCreated}

func New(src EventSource, devices DeviceLister, rooms *RoomIndex, transport Transport, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		events:    src,
		devices:   devices,
		transport: transport,
		filter:    NewChangeFilter(),
		rooms:     rooms,
		logger:    logger,
	}
}

// Init subscribes to device events, broadcasts every known device once and
// starts the transport.
func (b *Bridge) Init(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	if b.active {
		b.mu.Unlock()
		return nil
	}
	b.active = true
	b.mu.Unlock()

	if err := b.rooms.Preload(ctx); err != nil {
		b.logger.Warn("room preload failed", "err", err)
	}

	for _, kind := range subscribedKinds {
		b.events.Subscribe(kind, b)
	}

	devices, err := b.devices.List(ctx)
	if err != nil {
		b.logger.Warn("initial device broadcast failed", "err", err)
	}
	for _, d := range devices {
		b.forward(ctx, d)
	}

	b.transport.Start()
	b.logger.Info("bridge initialized", "devices", len(devices))
	return nil
}

// Stop unsubscribes from device events and shuts the transport down.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	wasActive := b.active
	b.stopped = true
	b.active = false
	b.mu.Unlock()

	if wasActive {
		for _, kind := range subscribedKinds {
			b.events.Unsubscribe(kind, b)
		}
	}
	b.transport.Stop()
	b.logger.Info("bridge stopped")
	return nil
}

// OnDeviceEvent implements events.Listener.
func (b *Bridge) OnDeviceEvent(evt events.Event) {
	b.forward(context.Background(), evt.Device)
}

// Status reports the bridge and connection state.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	active := b.active
	b.mu.Unlock()
	return Status{
		Active:         active,
		TrackedDevices: b.filter.Len(),
		Connection:     b.transport.Status(),
	}
}

// forward resolves the room outside sendMu. The filter check and the send
// run under it, so an older snapshot cannot overtake a newer one.
func (b *Bridge) forward(ctx context.Context, d model.Device) {
	room, ok := b.rooms.Lookup(ctx, d.Location)
	msg, err := EncodeSnapshot(d, room, ok)
	if err != nil {
		b.logger.Error("encode device snapshot failed", "device", d.ID, "err", err)
		return
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()
	if !b.filter.ShouldForward(d.ID, d.UpdateTime) {
		return
	}
	b.transport.Send(msg)
}

type snapshot struct {
	model.Device
	Room *string `json:"room"`
}

// EncodeSnapshot renders the outbound frame for a device: its JSON form plus
// the resolved room title, or null when the room is unknown.
func EncodeSnapshot(d model.Device, room string, known bool) (string, error) {
	out := snapshot{Device: d}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if known {
		out.Room = &room
	}
	body, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal device %s: %w", d.ID, err)
	}
	return string(body), nil
}
