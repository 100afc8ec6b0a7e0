package lock

import "fmt"

// State is the lock state reported by the remote lock service.
// Values match the numeric ids used on the wire.
type State int

const (
	StateUncalibrated State = 0
	StateCalibrating  State = 1
	StateUnlocked     State = 2
	StateSemiLocked   State = 3
	StateUnlocking    State = 4
	StateLocking      State = 5
	StateLocked       State = 6
	StatePulled       State = 7
	StatePulling      State = 8
	StateUnknown      State = 9
	StateUpdating     State = 18
)

var stateNames = map[State]string{
	StateUncalibrated: "Uncalibrated",
	StateCalibrating:  "Calibrating",
	StateUnlocked:     "Unlocked",
	StateSemiLocked:   "SemiLocked",
	StateUnlocking:    "Unlocking",
	StateLocking:      "Locking",
	StateLocked:       "Locked",
	StatePulled:       "Pulled",
	StatePulling:      "Pulling",
	StateUnknown:      "Unknown",
	StateUpdating:     "Updating",
}

// ParseState converts a wire state id into a State.
// Ids outside the known set return ErrUnknownState.
func ParseState(id int) (State, error) {
	s := State(id)
	if _, ok := stateNames[s]; !ok {
		return StateUnknown, fmt.Errorf("%w: id %d", ErrUnknownState, id)
	}
	return s, nil
}

// String returns the canonical state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsSettling reports whether the lock is mid-motion and needs to be
// observed until it reaches a stable state.
func (s State) IsSettling() bool {
	switch s {
	case StateLocking, StateUnlocking, StatePulled, StatePulling:
		return true
	default:
		return false
	}
}

// IsBlocking reports whether the state makes the device unavailable
// rather than actionable.
func (s State) IsBlocking() bool {
	switch s {
	case StateUncalibrated, StateCalibrating, StateUnknown, StateUpdating:
		return true
	default:
		return false
	}
}

// IsPulling reports whether the spring is being or has been pulled.
func (s State) IsPulling() bool {
	return s == StatePulling || s == StatePulled
}

// Locked is the boolean projection exposed to the hub. Only a fully locked
// bolt counts as locked; SemiLocked is shown as unlocked.
func (s State) Locked() bool {
	return s == StateLocked
}

// OperationType classifies a command.
type OperationType string

const (
	OperationClose OperationType = "CLOSE"
	OperationOpen  OperationType = "OPEN"
	OperationPull  OperationType = "PULL"
)

// UnlockMode is the parameter attached to an open command.
type UnlockMode int

const (
	UnlockDefault          UnlockMode = 0
	UnlockForce            UnlockMode = 1
	UnlockNoAutoPullSpring UnlockMode = 2
	UnlockOrPullSpring     UnlockMode = 3
	unlockModeCount                   = 4
)

// Valid reports whether m is a known unlock mode.
func (m UnlockMode) Valid() bool {
	return m >= UnlockDefault && m < unlockModeCount
}

// OperationStatus is the lifecycle status of a remote operation record.
type OperationStatus string

const (
	OperationPending   OperationStatus = "PENDING"
	OperationCompleted OperationStatus = "COMPLETED"
)

// ResultNone marks an operation that has not reported a result yet.
const ResultNone = -1

// Operation is the remote record created when a command is accepted.
type Operation struct {
	ID     string          `json:"id"`
	Type   OperationType   `json:"type"`
	Status OperationStatus `json:"status"`
	// Result is 0 on success, non-zero on failure, ResultNone while unknown.
	Result int `json:"result"`
}

// Succeeded reports whether the operation finished with a zero result.
func (o Operation) Succeeded() bool {
	return o.Result == 0
}

// Pending reports whether the operation is still being executed.
func (o Operation) Pending() bool {
	return o.Status == OperationPending
}

// Properties holds the lock-specific part of a device report.
type Properties struct {
	State        State `json:"state"`
	BatteryLevel *int  `json:"battery_level,omitempty"`
	IsCharging   *bool `json:"is_charging,omitempty"`
}

// Details is the full device report returned by the remote service.
type Details struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Serial      string     `json:"serial,omitempty"`
	IsConnected bool       `json:"is_connected"`
	Properties  Properties `json:"lock_properties"`
	// PullSpringEnabled mirrors the device setting that allows the spring
	// to be pulled after unlocking.
	PullSpringEnabled bool `json:"pull_spring_enabled"`
}

// Projection is the capability view of a lock report.
type Projection struct {
	State        State `json:"state"`
	Locked       bool  `json:"locked"`
	BatteryLevel *int  `json:"battery_level,omitempty"`
	Charging     *bool `json:"charging,omitempty"`
}

// Project converts lock properties into capability values.
func Project(p Properties) Projection {
	return Projection{
		State:        p.State,
		Locked:       p.State.Locked(),
		BatteryLevel: p.BatteryLevel,
		Charging:     p.IsCharging,
	}
}
