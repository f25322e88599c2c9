package events

import (
	"io"
	"log/slog"
	"testing"

	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

type recorder struct {
	got []Event
}

func (r *recorder) OnDeviceEvent(evt Event) {
	r.got = append(r.got, evt)
}

type panicker struct{}

func (p *panicker) OnDeviceEvent(Event) {
	panic("boom")
}

func newTestBus() *Bus {
	return NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBusDeliversByKind(t *testing.T) {
	bus := newTestBus()
	rec := &recorder{}
	bus.Subscribe(KindLevelChanged, rec)

	bus.Publish(Event{Kind: KindLevelChanged, Device: model.Device{ID: "dev1"}})
	bus.Publish(Event{Kind: KindCreated, Device: model.Device{ID: "dev2"}})

	if len(rec.got) != 1 || rec.got[0].Device.ID != "dev1" {
		t.Fatalf("unexpected events: %+v", rec.got)
	}
}

func TestBusUnsubscribeByIdentity(t *testing.T) {
	bus := newTestBus()
	first := &recorder{}
	second := &recorder{}
	bus.Subscribe(KindCreated, first)
	bus.Subscribe(KindCreated, second)
	bus.Subscribe(KindCreated, first)

	if got := bus.Count(KindCreated); got != 2 {
		t.Fatalf("Count() = %d, want 2", got)
	}

	bus.Unsubscribe(KindCreated, first)
	bus.Publish(Event{Kind: KindCreated, Device: model.Device{ID: "dev1"}})

	if len(first.got) != 0 {
		t.Fatalf("unsubscribed listener received %d events", len(first.got))
	}
	if len(second.got) != 1 {
		t.Fatalf("remaining listener received %d events, want 1", len(second.got))
	}
}

func TestBusRecoversListenerPanic(t *testing.T) {
	bus := newTestBus()
	rec := &recorder{}
	bus.Subscribe(KindCreated, &panicker{})
	bus.Subscribe(KindCreated, rec)

	bus.Publish(Event{Kind: KindCreated, Device: model.Device{ID: "dev1"}})

	if len(rec.got) != 1 {
		t.Fatalf("listener after panicking one received %d events, want 1", len(rec.got))
	}
}
