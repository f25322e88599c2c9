package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/micro-ha/zway-bridge/addon/internal/bridge"
	devicedomain "github.com/micro-ha/zway-bridge/addon/internal/domain/device"
)

// BridgeMonitor reports bridge and websocket connection health.
type BridgeMonitor interface {
	Status() bridge.Status
}

// API groups HTTP handlers and dependencies.
type API struct {
	devices devicedomain.Service
	bridge  BridgeMonitor
	logger  *slog.Logger
}

// New creates HTTP handlers with explicit dependencies.
func New(devices devicedomain.Service, monitor BridgeMonitor, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		devices: devices,
		bridge:  monitor,
		logger:  logger,
	}
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports liveness and the websocket connection state.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	status := a.bridge.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"bridge_state": status.Connection.State,
	})
}

// Bridge returns bridge status with connection details.
func (a *API) Bridge(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.bridge.Status())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
