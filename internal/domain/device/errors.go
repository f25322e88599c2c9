package device

import "errors"

var (
	// ErrDeviceNotFound indicates missing device by id.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidDevice indicates a device payload without id or type.
	ErrInvalidDevice = errors.New("invalid device")
	// ErrEmptyCommand indicates a command request without a command name.
	ErrEmptyCommand = errors.New("empty command")
)
