package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr         = ":8099"
	defaultDBPath           = "/data/zway_bridge.db"
	defaultSeedPath         = "/data/devices.yaml"
	defaultAddonOptionsPath = "/data/options.json"
	defaultClientID         = "downstairs"
	defaultBaseDelay        = time.Second
	defaultMaxDelay         = 60 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 120 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultMQTTClientID     = "zway-bridge"
	defaultMQTTTopicPrefix  = "zway"
)

// ErrMissingServerURL is returned when neither WS_SERVER nor ws_server is set.
var ErrMissingServerURL = errors.New("websocket server url is not configured")

// Config stores runtime settings loaded from environment variables and the
// add-on options file.
type Config struct {
	HTTPAddr         string
	DBPath           string
	SeedPath         string
	AddonOptionsPath string
	LogLevel         slog.Level
	Bridge           BridgeConfig
	MQTT             MQTTConfig
}

// BridgeConfig configures the outbound websocket connection.
type BridgeConfig struct {
	ServerURL        string
	ClientID         string
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	QueueLimit       int
}

// MQTTConfig configures the optional field network adapter. An empty
// Broker disables it.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

type addonOptions struct {
	WSServer        *string `json:"ws_server"`
	ClientID        *string `json:"client_id"`
	QueueLimit      *int    `json:"queue_limit"`
	LogLevel        *string `json:"log_level"`
	MQTTBroker      *string `json:"mqtt_broker"`
	MQTTUsername    *string `json:"mqtt_username"`
	MQTTPassword    *string `json:"mqtt_password"`
	MQTTTopicPrefix *string `json:"mqtt_topic_prefix"`
}

// Load builds Config from environment variables using stable defaults, then
// applies values present in the add-on options file.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:           getenv("DB_PATH", defaultDBPath),
		SeedPath:         getenv("SEED_PATH", defaultSeedPath),
		AddonOptionsPath: getenv("ADDON_OPTIONS_PATH", defaultAddonOptionsPath),
		LogLevel:         parseLogLevel(getenv("LOG_LEVEL", "info")),
		Bridge: BridgeConfig{
			ServerURL:        getenv("WS_SERVER", ""),
			ClientID:         getenv("BRIDGE_CLIENT_ID", defaultClientID),
			BaseDelay:        parseDuration("RECONNECT_BASE_DELAY", defaultBaseDelay),
			MaxDelay:         parseDuration("RECONNECT_MAX_DELAY", defaultMaxDelay),
			HandshakeTimeout: parseDuration("WS_HANDSHAKE_TIMEOUT", defaultHandshakeTimeout),
			ReadTimeout:      parseDuration("WS_READ_TIMEOUT", defaultReadTimeout),
			PingInterval:     parseDuration("WS_PING_INTERVAL", defaultPingInterval),
			QueueLimit:       parseInt("QUEUE_LIMIT", 0),
		},
		MQTT: MQTTConfig{
			Broker:      getenv("MQTT_BROKER", ""),
			ClientID:    getenv("MQTT_CLIENT_ID", defaultMQTTClientID),
			Username:    getenv("MQTT_USERNAME", ""),
			Password:    getenv("MQTT_PASSWORD", ""),
			TopicPrefix: getenv("MQTT_TOPIC_PREFIX", defaultMQTTTopicPrefix),
		},
	}

	if err := cfg.applyOptionsFile(); err != nil {
		return Config{}, err
	}
	if cfg.Bridge.MaxDelay < cfg.Bridge.BaseDelay {
		cfg.Bridge.MaxDelay = cfg.Bridge.BaseDelay
	}
	if cfg.Bridge.ServerURL == "" {
		return cfg, ErrMissingServerURL
	}
	return cfg, nil
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func (c *Config) applyOptionsFile() error {
	body, err := os.ReadFile(c.AddonOptionsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read add-on options: %w", err)
	}

	var opts addonOptions
	if err := json.Unmarshal(body, &opts); err != nil {
		return fmt.Errorf("parse add-on options %s: %w", c.AddonOptionsPath, err)
	}

	overlay(&c.Bridge.ServerURL, opts.WSServer)
	overlay(&c.Bridge.ClientID, opts.ClientID)
	overlay(&c.MQTT.Broker, opts.MQTTBroker)
	overlay(&c.MQTT.Username, opts.MQTTUsername)
	overlay(&c.MQTT.Password, opts.MQTTPassword)
	overlay(&c.MQTT.TopicPrefix, opts.MQTTTopicPrefix)
	if opts.QueueLimit != nil && *opts.QueueLimit >= 0 {
		c.Bridge.QueueLimit = *opts.QueueLimit
	}
	if opts.LogLevel != nil && strings.TrimSpace(*opts.LogLevel) != "" {
		c.LogLevel = parseLogLevel(*opts.LogLevel)
	}
	return nil
}

func overlay(dst *string, value *string) {
	if value == nil {
		return
	}
	if trimmed := strings.TrimSpace(*value); trimmed != "" {
		*dst = trimmed
	}
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
