package lock

import "errors"

// Domain errors for the lock package.
//
// Precondition errors are returned before any remote mutation. Response,
// operation and exhaustion errors come out of the remote API or the Monitor.
var (
	// ErrNotAvailable is returned when a command targets an unavailable device.
	ErrNotAvailable = errors.New("lock: device not available")

	// ErrInUse is returned when a command arrives while a Monitor cycle runs.
	ErrInUse = errors.New("lock: device in use")

	// ErrUnknownState is returned when the reported state is absent or unrecognised.
	ErrUnknownState = errors.New("lock: unknown state")

	// ErrNotReadyToLock is returned when the current state does not allow locking.
	ErrNotReadyToLock = errors.New("lock: not ready to lock")

	// ErrNotReadyToUnlock is returned when the current state does not allow unlocking.
	ErrNotReadyToUnlock = errors.New("lock: not ready to unlock")

	// ErrFirstUnlock is returned when pull spring is requested on a lock that is not unlocked.
	ErrFirstUnlock = errors.New("lock: must unlock first")

	// ErrPullSpringDisabled is returned when the device has no open capability.
	ErrPullSpringDisabled = errors.New("lock: pull spring disabled")

	// ErrResponse is returned for transport failures and malformed responses.
	ErrResponse = errors.New("lock: invalid response")

	// ErrOperationFailed is returned when the remote operation ends with a non-zero result.
	ErrOperationFailed = errors.New("lock: operation failed")

	// ErrTooManyTries is returned when a Monitor exceeds its try ceiling.
	ErrTooManyTries = errors.New("lock: too many tries")

	// ErrDeviceRemoved is returned for calls on a detached device.
	ErrDeviceRemoved = errors.New("lock: device removed")
)

// Message keys for localized user-facing errors.
const (
	KeyNotAvailable       = "state.notAvailable"
	KeyInUse              = "state.inUse"
	KeyUnknownState       = "state.unknown"
	KeyNotReadyToLock     = "errors.notReadyToLock"
	KeyNotReadyToUnlock   = "errors.notReadyToUnlock"
	KeyFirstUnlock        = "errors.firstUnLock"
	KeyPullSpringDisabled = "errors.pullSpringDisabled"
	KeyResponse           = "errors.response"
)

// MessageKeys lists every key MessageKey can return.
var MessageKeys = []string{
	KeyNotAvailable,
	KeyInUse,
	KeyUnknownState,
	KeyNotReadyToLock,
	KeyNotReadyToUnlock,
	KeyFirstUnlock,
	KeyPullSpringDisabled,
	KeyResponse,
}

// MessageKey maps an error to its localization key. Errors outside the
// precondition set, including exhaustion and failed operations, map to
// the generic response key.
func MessageKey(err error) string {
	switch {
	case errors.Is(err, ErrNotAvailable), errors.Is(err, ErrDeviceRemoved):
		return KeyNotAvailable
	case errors.Is(err, ErrInUse):
		return KeyInUse
	case errors.Is(err, ErrUnknownState):
		return KeyUnknownState
	case errors.Is(err, ErrNotReadyToLock):
		return KeyNotReadyToLock
	case errors.Is(err, ErrNotReadyToUnlock):
		return KeyNotReadyToUnlock
	case errors.Is(err, ErrFirstUnlock):
		return KeyFirstUnlock
	case errors.Is(err, ErrPullSpringDisabled):
		return KeyPullSpringDisabled
	default:
		return KeyResponse
	}
}

// IsPrecondition reports whether err was raised before any remote mutation.
func IsPrecondition(err error) bool {
	switch {
	case errors.Is(err, ErrNotAvailable),
		errors.Is(err, ErrInUse),
		errors.Is(err, ErrNotReadyToLock),
		errors.Is(err, ErrNotReadyToUnlock),
		errors.Is(err, ErrFirstUnlock),
		errors.Is(err, ErrPullSpringDisabled),
		errors.Is(err, ErrDeviceRemoved):
		return true
	default:
		return false
	}
}
