package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	devicedomain "github.com/micro-ha/zway-bridge/addon/internal/domain/device"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePaho struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	published  []published
	handlers   map[string]pahomqtt.MessageHandler
}

func (f *fakePaho) Connect() pahomqtt.Token { return doneToken{} }
func (f *fakePaho) Disconnect(uint)         {}
func (f *fakePaho) IsConnected() bool       { return f.connected }

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	_ = retained
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return doneToken{err: f.publishErr}
}

func (f *fakePaho) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	_ = qos
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[string]pahomqtt.MessageHandler{}
	}
	f.handlers[topic] = callback
	return doneToken{}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type levelCall struct {
	id    string
	level devicedomain.Level
}

type fakeUpdater struct {
	mu    sync.Mutex
	calls []levelCall
	err   error
}

func (u *fakeUpdater) UpdateLevel(ctx context.Context, id string, level devicedomain.Level) error {
	_ = ctx
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, levelCall{id: id, level: level})
	return u.err
}

func newTestClient(pc *fakePaho, updater LevelUpdater) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newClient(context.Background(), Options{Broker: "tcp://broker:1883", TopicPrefix: "/home/"}, pc, updater, logger)
}

func TestPublishCommandTopicAndPayload(t *testing.T) {
	pc := &fakePaho{connected: true}
	c := newTestClient(pc, &fakeUpdater{})

	err := c.PublishCommand(context.Background(), "ZWayVDev_zway_5-0-38", "exact", map[string]string{"level": "40%"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(pc.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(pc.published))
	}
	msg := pc.published[0]
	if msg.topic != "home/devices/ZWayVDev_zway_5-0-38/command" {
		t.Fatalf("unexpected topic %q", msg.topic)
	}
	if msg.qos != 1 {
		t.Fatalf("expected qos 1, got %d", msg.qos)
	}
	var body commandPayload
	if err := json.Unmarshal(msg.payload, &body); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if body.Command != "exact" || body.Params["level"] != "40%" {
		t.Fatalf("unexpected payload: %s", msg.payload)
	}
}

func TestPublishCommandErrors(t *testing.T) {
	pc := &fakePaho{}
	c := newTestClient(pc, &fakeUpdater{})
	if err := c.PublishCommand(context.Background(), "lamp", "on", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	pc.connected = true
	pc.publishErr = errors.New("broker rejected")
	if err := c.PublishCommand(context.Background(), "lamp", "on", nil); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestStateMessagesUpdateLevel(t *testing.T) {
	pc := &fakePaho{connected: true}
	updater := &fakeUpdater{}
	c := newTestClient(pc, updater)

	c.onConnect()
	handler, ok := pc.handlers["home/devices/+/state"]
	if !ok {
		t.Fatalf("expected subscription on state filter, got %v", pc.handlers)
	}

	handler(nil, fakeMessage{topic: "home/devices/dimmer/state", payload: []byte(`{"level":42}`)})
	handler(nil, fakeMessage{topic: "home/devices/lamp/state", payload: []byte(`{"level":"on"}`)})
	handler(nil, fakeMessage{topic: "home/devices/lamp/state", payload: []byte(`not json`)})
	handler(nil, fakeMessage{topic: "home/devices/a/b/state", payload: []byte(`{"level":1}`)})

	if len(updater.calls) != 2 {
		t.Fatalf("expected 2 level updates, got %+v", updater.calls)
	}
	if updater.calls[0] != (levelCall{id: "dimmer", level: "42"}) {
		t.Fatalf("unexpected first update %+v", updater.calls[0])
	}
	if updater.calls[1] != (levelCall{id: "lamp", level: "on"}) {
		t.Fatalf("unexpected second update %+v", updater.calls[1])
	}
}

func TestDeviceFromStateTopic(t *testing.T) {
	c := newTestClient(&fakePaho{}, &fakeUpdater{})
	cases := []struct {
		topic string
		want  string
		ok    bool
	}{
		{topic: "home/devices/lamp/state", want: "lamp", ok: true},
		{topic: "home/devices//state", ok: false},
		{topic: "other/devices/lamp/state", ok: false},
		{topic: "home/devices/lamp/command", ok: false},
	}
	for _, tc := range cases {
		got, err := c.deviceFromStateTopic(tc.topic)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("topic %q: got %q, %v", tc.topic, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTopic) {
			t.Fatalf("topic %q: expected ErrInvalidTopic, got %v", tc.topic, err)
		}
	}
}
