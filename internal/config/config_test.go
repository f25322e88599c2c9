package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"HTTP_ADDR", "DB_PATH", "SEED_PATH", "LOG_LEVEL", "WS_SERVER", "BRIDGE_CLIENT_ID",
	"RECONNECT_BASE_DELAY", "RECONNECT_MAX_DELAY", "WS_HANDSHAKE_TIMEOUT", "WS_READ_TIMEOUT",
	"WS_PING_INTERVAL", "QUEUE_LIMIT", "MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME",
	"MQTT_PASSWORD", "MQTT_TOPIC_PREFIX",
}

func isolateEnv(t *testing.T) string {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "options.json")
	t.Setenv("ADDON_OPTIONS_PATH", path)
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("WS_SERVER", "http://hub.local:8080/ws")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bridge.ServerURL != "http://hub.local:8080/ws" {
		t.Fatalf("ServerURL = %q", cfg.Bridge.ServerURL)
	}
	if cfg.Bridge.ClientID != "downstairs" {
		t.Fatalf("ClientID = %q, want downstairs", cfg.Bridge.ClientID)
	}
	if cfg.Bridge.BaseDelay != time.Second || cfg.Bridge.MaxDelay != time.Minute {
		t.Fatalf("unexpected delays %v/%v", cfg.Bridge.BaseDelay, cfg.Bridge.MaxDelay)
	}
	if cfg.Bridge.QueueLimit != 0 {
		t.Fatalf("QueueLimit = %d, want 0", cfg.Bridge.QueueLimit)
	}
	if cfg.MQTT.Enabled() {
		t.Fatalf("expected mqtt disabled by default")
	}
	if cfg.HTTPAddr != ":8099" || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadMissingServerURL(t *testing.T) {
	isolateEnv(t)
	if _, err := Load(); !errors.Is(err, ErrMissingServerURL) {
		t.Fatalf("expected ErrMissingServerURL, got %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("WS_SERVER", "https://remote.example/bridge")
	t.Setenv("BRIDGE_CLIENT_ID", "kitchen")
	t.Setenv("RECONNECT_BASE_DELAY", "500ms")
	t.Setenv("RECONNECT_MAX_DELAY", "100ms")
	t.Setenv("QUEUE_LIMIT", "250")
	t.Setenv("WS_PING_INTERVAL", "nonsense")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bridge.ClientID != "kitchen" || cfg.Bridge.QueueLimit != 250 {
		t.Fatalf("unexpected bridge config %+v", cfg.Bridge)
	}
	if cfg.Bridge.BaseDelay != 500*time.Millisecond || cfg.Bridge.MaxDelay != 500*time.Millisecond {
		t.Fatalf("expected max delay raised to base, got %v/%v", cfg.Bridge.BaseDelay, cfg.Bridge.MaxDelay)
	}
	if cfg.Bridge.PingInterval != 30*time.Second {
		t.Fatalf("expected invalid duration to fall back, got %v", cfg.Bridge.PingInterval)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want debug", cfg.LogLevel)
	}
}

func TestLoadOptionsFileOverlay(t *testing.T) {
	path := isolateEnv(t)
	t.Setenv("WS_SERVER", "http://env.local/ws")
	t.Setenv("MQTT_USERNAME", "env-user")
	if err := os.WriteFile(path, []byte(`{
		"ws_server": "http://options.local/ws",
		"queue_limit": 10,
		"mqtt_broker": "tcp://broker:1883",
		"mqtt_username": "",
		"log_level": "warn"
	}`), 0o644); err != nil {
		t.Fatalf("write options file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Bridge.ServerURL != "http://options.local/ws" {
		t.Fatalf("ServerURL = %q, want options value", cfg.Bridge.ServerURL)
	}
	if cfg.Bridge.QueueLimit != 10 {
		t.Fatalf("QueueLimit = %d, want 10", cfg.Bridge.QueueLimit)
	}
	if !cfg.MQTT.Enabled() || cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Fatalf("unexpected mqtt config %+v", cfg.MQTT)
	}
	if cfg.MQTT.Username != "env-user" {
		t.Fatalf("expected empty option to keep env value, got %q", cfg.MQTT.Username)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v, want warn", cfg.LogLevel)
	}
}

func TestLoadInvalidOptionsFile(t *testing.T) {
	path := isolateEnv(t)
	t.Setenv("WS_SERVER", "http://env.local/ws")
	if err := os.WriteFile(path, []byte(`{"ws_server":`), 0o644); err != nil {
		t.Fatalf("write options file: %v", err)
	}
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
