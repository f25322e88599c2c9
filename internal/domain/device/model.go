package device

import "github.com/micro-ha/zway-bridge/addon/internal/model"

// Device is one virtual device of the registry.
type Device = model.Device

// Location is one room of the controller.
type Location = model.Location

// Level is a device level value.
type Level = model.Level

// CommandRecord is one entry of the command log.
type CommandRecord = model.CommandRecord

// CommandInput is API payload for running a device command.
type CommandInput struct {
	Command string            `json:"command"`
	Params  map[string]string `json:"params"`
}

// LevelInput is API and MQTT payload for reporting a new level.
type LevelInput struct {
	Level Level `json:"level"`
}
