package model

import "time"

// Command sources recorded in the command log.
const (
	CommandSourceRemote = "remote"
	CommandSourceAPI    = "api"
)

// CommandRecord is one device action applied through the device controller.
type CommandRecord struct {
	ID        string            `json:"id"`
	DeviceID  string            `json:"device_id"`
	Command   string            `json:"command"`
	Params    map[string]string `json:"params,omitempty"`
	Source    string            `json:"source"`
	CreatedAt time.Time         `json:"created_at"`
}
