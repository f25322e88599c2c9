package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	devicedomain "github.com/micro-ha/zway-bridge/addon/internal/domain/device"
)

const (
	defaultTopicPrefix = "zway"
	defaultClientID    = "zway-bridge"

	commandQoS     = 1
	stateQoS       = 1
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	quiesceMillis  = 250
)

var (
	// ErrNotConnected is returned by PublishCommand while the broker is unreachable.
	ErrNotConnected = errors.New("mqtt not connected")
	// ErrInvalidTopic is returned for state topics outside the device tree.
	ErrInvalidTopic = errors.New("invalid state topic")
)

// LevelUpdater applies device levels reported by the field network.
type LevelUpdater interface {
	UpdateLevel(ctx context.Context, id string, level devicedomain.Level) error
}

// pahoClient is the subset of pahomqtt.Client used by the adapter.
type pahoClient interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
}

type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Client publishes device commands and consumes device state reports.
type Client struct {
	opts    Options
	client  pahoClient
	updater LevelUpdater
	logger  *slog.Logger
	ctx     context.Context
}

type commandPayload struct {
	Command string            `json:"command"`
	Params  map[string]string `json:"params,omitempty"`
}

// New builds a paho client with auto-reconnect. Subscriptions are restored
// on every (re)connect.
func New(ctx context.Context, opts Options, updater LevelUpdater, logger *slog.Logger) *Client {
	opts = normalizeOptions(opts)
	c := newClient(ctx, opts, nil, updater, logger)

	po := pahomqtt.NewClientOptions()
	po.AddBroker(opts.Broker)
	po.SetClientID(opts.ClientID)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	po.SetCleanSession(true)
	po.SetAutoReconnect(true)
	po.SetConnectRetry(true)
	po.SetConnectTimeout(connectTimeout)
	po.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.onConnect()
	})
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("mqtt connection lost", "err", err)
	})

	c.client = pahomqtt.NewClient(po)
	return c
}

func newClient(ctx context.Context, opts Options, pc pahoClient, updater LevelUpdater, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Client{
		opts:    normalizeOptions(opts),
		client:  pc,
		updater: updater,
		logger:  logger,
		ctx:     ctx,
	}
}

func normalizeOptions(opts Options) Options {
	opts.Broker = strings.TrimSpace(opts.Broker)
	opts.ClientID = strings.TrimSpace(opts.ClientID)
	if opts.ClientID == "" {
		opts.ClientID = defaultClientID
	}
	opts.TopicPrefix = strings.Trim(strings.TrimSpace(opts.TopicPrefix), "/")
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = defaultTopicPrefix
	}
	return opts
}

// Start connects to the broker. An unreachable broker is not fatal: paho
// keeps retrying in the background.
func (c *Client) Start() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", c.opts.Broker)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(quiesceMillis)
}

// CommandTopic returns the topic commands for id are published on.
func (c *Client) CommandTopic(id string) string {
	return c.opts.TopicPrefix + "/devices/" + id + "/command"
}

func (c *Client) stateFilter() string {
	return c.opts.TopicPrefix + "/devices/+/state"
}

// PublishCommand sends a device command at QoS 1.
func (c *Client) PublishCommand(ctx context.Context, id, command string, params map[string]string) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	body, err := json.Marshal(commandPayload{Command: command, Params: params})
	if err != nil {
		return err
	}

	token := c.client.Publish(c.CommandTopic(id), commandQoS, false, body)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publish %s: timeout after %v", c.CommandTopic(id), publishTimeout)
	}
}

func (c *Client) onConnect() {
	c.logger.Info("mqtt connected", "broker", c.opts.Broker)
	filter := c.stateFilter()
	token := c.client.Subscribe(filter, stateQoS, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if err := c.handleState(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("state message rejected", "topic", msg.Topic(), "err", err)
		}
	})
	go func() {
		if !token.WaitTimeout(connectTimeout) {
			c.logger.Warn("mqtt subscribe timed out", "topic", filter)
			return
		}
		if err := token.Error(); err != nil {
			c.logger.Error("mqtt subscribe failed", "topic", filter, "err", err)
		}
	}()
}

func (c *Client) handleState(topic string, payload []byte) error {
	id, err := c.deviceFromStateTopic(topic)
	if err != nil {
		return err
	}
	var in devicedomain.LevelInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	if in.Level == "" {
		return fmt.Errorf("state for %s without level", id)
	}
	return c.updater.UpdateLevel(c.ctx, id, in.Level)
}

func (c *Client) deviceFromStateTopic(topic string) (string, error) {
	prefix := c.opts.TopicPrefix + "/devices/"
	if !strings.HasPrefix(topic, prefix) || !strings.HasSuffix(topic, "/state") {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(topic, prefix), "/state")
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return id, nil
}
