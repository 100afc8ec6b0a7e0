package smartlock

import "errors"

// Domain errors for the smart lock bridge.
var (
	// ErrUnknownDevice is returned for a device id the bridge does not own.
	ErrUnknownDevice = errors.New("smartlock: unknown device")

	// ErrInvalidCommand is returned when a command payload cannot be parsed.
	ErrInvalidCommand = errors.New("smartlock: invalid command")

	// ErrUnknownCapability is returned for a capability other than
	// "locked" or "open".
	ErrUnknownCapability = errors.New("smartlock: unknown capability")

	// ErrDiscoveryFailed is returned when the lock list cannot be fetched.
	ErrDiscoveryFailed = errors.New("smartlock: discovery failed")
)
