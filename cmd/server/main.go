package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqttadapter "github.com/micro-ha/zway-bridge/addon/internal/adapters/mqtt"
	"github.com/micro-ha/zway-bridge/addon/internal/bridge"
	"github.com/micro-ha/zway-bridge/addon/internal/config"
	"github.com/micro-ha/zway-bridge/addon/internal/connection"
	"github.com/micro-ha/zway-bridge/addon/internal/events"
	httpapi "github.com/micro-ha/zway-bridge/addon/internal/http"
	"github.com/micro-ha/zway-bridge/addon/internal/http/handlers"
	"github.com/micro-ha/zway-bridge/addon/internal/logging"
	"github.com/micro-ha/zway-bridge/addon/internal/model"
	"github.com/micro-ha/zway-bridge/addon/internal/repository/sqlite"
	"github.com/micro-ha/zway-bridge/addon/internal/seed"
	devicesvc "github.com/micro-ha/zway-bridge/addon/internal/services/device"
)

func main() {
	os.Exit(run())
}

// run wires the add-on and blocks until shutdown. Deferred cleanup runs
// before the exit code reaches main.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.Bridge.ClientID)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		return 1
	}

	wsURL, err := connection.ToWebsocketURL(cfg.Bridge.ServerURL)
	if err != nil {
		logger.Error("invalid websocket server url", "url", cfg.Bridge.ServerURL, "err", err)
		return 1
	}

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		return 1
	}
	db, err := sqlite.Open(ctx, cfg.DBPath, logging.Component(logger, "storage"))
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		return 1
	}
	defer db.Close()

	bus := events.NewBus(logging.Component(logger, "events"))
	devices := devicesvc.New(db.Devices(), bus, logging.Component(logger, "devices"))

	if err := seed.Load(ctx, cfg.SeedPath, devices, logging.Component(logger, "seed")); err != nil {
		logger.Warn("seed load failed", "err", err)
	}

	if cfg.MQTT.Enabled() {
		mq := mqttadapter.New(ctx, mqttadapter.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, devices, logging.Component(logger, "mqtt"))
		if err := mq.Start(); err != nil {
			logger.Warn("mqtt start failed", "err", err)
		}
		defer mq.Close()
		devices.SetPublisher(mq)
	} else {
		logger.Info("MQTT_BROKER is empty; field network adapter disabled")
	}

	dispatcher := bridge.NewDispatcher(devices.Controller(model.CommandSourceRemote), logging.Component(logger, "dispatch"))
	manager, err := connection.New(connection.Options{
		URL:              wsURL,
		ClientID:         cfg.Bridge.ClientID,
		BaseDelay:        cfg.Bridge.BaseDelay,
		MaxDelay:         cfg.Bridge.MaxDelay,
		HandshakeTimeout: cfg.Bridge.HandshakeTimeout,
		ReadTimeout:      cfg.Bridge.ReadTimeout,
		PingInterval:     cfg.Bridge.PingInterval,
		QueueLimit:       cfg.Bridge.QueueLimit,
	}, dispatcher.Handle, logging.Component(logger, "connection"))
	if err != nil {
		logger.Error("failed to create connection manager", "err", err)
		return 1
	}

	rooms := bridge.NewRoomIndex(devices, logging.Component(logger, "rooms"))
	br := bridge.New(devices, devices, rooms, manager, logging.Component(logger, "bridge"))
	var lifecycle bridge.Lifecycle = br
	if err := lifecycle.Init(ctx); err != nil {
		logger.Error("bridge init failed", "err", err)
		return 1
	}
	defer func() {
		if err := lifecycle.Stop(); err != nil {
			logger.Warn("bridge stop failed", "err", err)
		}
	}()

	api := handlers.New(devices, br, logging.Component(logger, "http"))
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", httpServer.Addr, "ws_server", wsURL)
	if err := httpapi.RunServer(ctx, httpServer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		return 1
	}
	logger.Info("server stopped")
	return 0
}
