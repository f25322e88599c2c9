package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	devicedomain "github.com/micro-ha/zway-bridge/addon/internal/domain/device"
	"github.com/micro-ha/zway-bridge/addon/internal/model"
)

const defaultCommandLimit = 50

// ListDevices returns all devices.
func (a *API) ListDevices(w http.ResponseWriter, r *http.Request) {
	items, err := a.devices.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GetDevice returns one device by id.
func (a *API) GetDevice(w http.ResponseWriter, r *http.Request, id string) {
	device, err := a.devices.Get(r.Context(), id)
	if errors.Is(err, devicedomain.ErrDeviceNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// PutDevice creates or replaces a device. The path id wins over the body.
func (a *API) PutDevice(w http.ResponseWriter, r *http.Request, id string) {
	var payload devicedomain.Device
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	payload.ID = id
	if err := a.devices.Upsert(r.Context(), payload); err != nil {
		if errors.Is(err, devicedomain.ErrInvalidDevice) {
			writeError(w, http.StatusBadRequest, "invalid_device", "deviceType is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "upsert_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// PatchLevel reports a new level for a device.
func (a *API) PatchLevel(w http.ResponseWriter, r *http.Request, id string) {
	var payload devicedomain.LevelInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if payload.Level == "" {
		writeError(w, http.StatusBadRequest, "invalid_level", "level is required")
		return
	}
	if err := a.devices.UpdateLevel(r.Context(), id, payload.Level); err != nil {
		if errors.Is(err, devicedomain.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// RunCommand executes a device command on behalf of the API.
func (a *API) RunCommand(w http.ResponseWriter, r *http.Request, id string) {
	var payload devicedomain.CommandInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	err := a.devices.RunCommand(r.Context(), model.CommandSourceAPI, id, payload)
	switch {
	case errors.Is(err, devicedomain.ErrEmptyCommand):
		writeError(w, http.StatusBadRequest, "invalid_command", "command is required")
	case errors.Is(err, devicedomain.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Device not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "command_failed", err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

// ListCommands returns the command log of a device, newest first.
func (a *API) ListCommands(w http.ResponseWriter, r *http.Request, id string) {
	limit := defaultCommandLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = value
	}

	items, err := a.devices.Commands(r.Context(), id, limit)
	if errors.Is(err, devicedomain.ErrDeviceNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ListLocations returns all rooms.
func (a *API) ListLocations(w http.ResponseWriter, r *http.Request) {
	items, err := a.devices.Locations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
