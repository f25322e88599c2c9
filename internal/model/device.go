package model

import "strings"

// Device types reported by the Z-Way device registry.
const (
	DeviceTypeSwitchBinary     = "switchBinary"
	DeviceTypeSwitchMultilevel = "switchMultilevel"
	DeviceTypeThermostat       = "thermostat"
	DeviceTypeToggleButton     = "toggleButton"
	DeviceTypeDoorlock         = "doorlock"
	DeviceTypeSensorBinary     = "sensorBinary"
	DeviceTypeSensorMultilevel = "sensorMultilevel"

	sensorTypePrefix = "sensor"
)

// Device is a snapshot of one virtual device as exposed by the registry.
type Device struct {
	ID                string   `json:"id"`
	DeviceType        string   `json:"deviceType"`
	Location          int      `json:"location"`
	UpdateTime        uint64   `json:"updateTime"`
	CreatorID         int      `json:"creatorId"`
	Visibility        bool     `json:"visibility"`
	PermanentlyHidden bool     `json:"permanently_hidden"`
	Tags              []string `json:"tags"`
	Metrics           Metrics  `json:"metrics"`
}

// Metrics holds the user-facing values of a device.
type Metrics struct {
	Title      string `json:"title"`
	Icon       string `json:"icon,omitempty"`
	Level      Level  `json:"level"`
	LastLevel  Level  `json:"lastLevel,omitempty"`
	ScaleTitle string `json:"scaleTitle,omitempty"`
}

// IsSensor reports read-only sensor devices.
func (d Device) IsSensor() bool {
	return strings.HasPrefix(d.DeviceType, sensorTypePrefix)
}

// Location is one room of the controller.
type Location struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}
