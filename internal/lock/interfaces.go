package lock

import "context"

// API is the remote lock service as seen by the core.
// Implementations return errors wrapping ErrResponse for transport or
// decoding failures and ErrUnknownState for unrecognised state ids.
type API interface {
	// SubmitCommand issues a command and returns the operation id.
	// mode is only meaningful for OperationOpen.
	SubmitCommand(ctx context.Context, deviceID string, op OperationType, mode UnlockMode) (string, error)

	// GetOperation returns the current record for an operation id.
	GetOperation(ctx context.Context, operationID string) (Operation, error)

	// GetState returns the current lock state.
	GetState(ctx context.Context, deviceID string) (State, error)

	// GetDetails returns the full device report.
	GetDetails(ctx context.Context, deviceID string) (Details, error)
}

// Projector receives everything the core wants the hub to show.
// Implementations must tolerate calls for devices that have been removed.
type Projector interface {
	// ApplyState sets the locked, battery and charging capabilities.
	ApplyState(deviceID string, p Projection)

	// SetOpen sets the optimistic open capability.
	SetOpen(deviceID string, open bool)

	// SetOpenSupported adds or removes the open capability.
	SetOpenSupported(deviceID string, supported bool)

	// SetAvailable marks the device available, or unavailable with a
	// localization key describing why.
	SetAvailable(deviceID string, available bool, reasonKey string)

	// TriggerOpened fires the one-shot opened notification.
	TriggerOpened(deviceID string)

	// Warn surfaces a background failure to the user.
	Warn(deviceID string, err error)
}

// Logger is the logging surface used by the package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
