package events

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

// Kind names a device registry event.
type Kind string

const (
	// KindLevelChanged fires when metrics:level of a device changes.
	KindLevelChanged Kind = "change:metrics:level"
	// KindCreated fires when a device is added to the registry.
	KindCreated Kind = "created"
)

// Event carries the device snapshot taken right after the change.
type Event struct {
	Kind   Kind
	Device model.Device
}

// Listener receives device events. Implementations must be comparable
// (typically pointers) because Unsubscribe matches by identity.
type Listener interface {
	OnDeviceEvent(evt Event)
}

// Bus fans device events out to registered listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Kind][]Listener
	logger    *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{listeners: map[Kind][]Listener{}, logger: logger}
}

// Subscribe registers l for kind. Registering the same listener twice is a no-op.
func (b *Bus) Subscribe(kind Kind, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.listeners[kind] {
		if existing == l {
			return
		}
	}
	b.listeners[kind] = append(b.listeners[kind], l)
}

// Unsubscribe removes l from kind.
func (b *Bus) Unsubscribe(kind Kind, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.listeners[kind]
	for i, existing := range current {
		if existing == l {
			next := make([]Listener, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			b.listeners[kind] = next
			return
		}
	}
}

// Publish delivers evt synchronously to every listener of its kind.
// A panicking listener is logged and does not stop delivery.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	targets := b.listeners[evt.Kind]
	b.mu.RUnlock()

	for _, l := range targets {
		b.deliver(l, evt)
	}
}

// Count returns the number of listeners registered for kind.
func (b *Bus) Count(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[kind])
}

func (b *Bus) deliver(l Listener, evt Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("device event listener panicked", "kind", evt.Kind, "device", evt.Device.ID, "panic", fmt.Sprint(recovered))
		}
	}()
	l.OnDeviceEvent(evt)
}
