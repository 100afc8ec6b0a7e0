package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Monitor defaults.
const (
	DefaultPollInterval      = 900 * time.Millisecond
	DefaultMaxOperationTries = 5
	DefaultMaxStateTries     = 6
)

// Phase is the lifecycle state of a Monitor.
type Phase int

const (
	PhaseReady Phase = iota
	PhaseRunning
)

func (p Phase) String() string {
	if p == PhaseRunning {
		return "running"
	}
	return "ready"
}

// Mode is the polling strategy of a running Monitor.
type Mode int

const (
	ModeState Mode = iota
	ModeOperation
)

func (m Mode) String() string {
	if m == ModeOperation {
		return "operation"
	}
	return "state"
}

// step is the tagged state of a Monitor. Exactly one of idle,
// pollingOperation or pollingState is current at any time.
type step interface {
	mode() Mode
	tries() int
}

type idle struct{}

func (idle) mode() Mode { return ModeState }
func (idle) tries() int { return 0 }

type pollingOperation struct {
	id    string
	count int
}

func (pollingOperation) mode() Mode   { return ModeOperation }
func (p pollingOperation) tries() int { return p.count }

type pollingState struct {
	count int
}

func (pollingState) mode() Mode   { return ModeState }
func (p pollingState) tries() int { return p.count }

// MonitorStatus is a point-in-time view of a Monitor.
type MonitorStatus struct {
	Phase         Phase  `json:"phase"`
	Mode          Mode   `json:"mode"`
	OperationID   string `json:"operation_id,omitempty"`
	Tries         int    `json:"tries"`
	OpenTriggered bool   `json:"open_triggered"`
}

// MonitorOptions configures a Monitor. Zero values select the defaults.
type MonitorOptions struct {
	Interval          time.Duration
	MaxOperationTries int
	MaxStateTries     int
	Logger            Logger

	// OnSettled is called after a cycle ends on a stable lock state.
	OnSettled func()

	// OnFailure is called after a cycle ends with an error. The Monitor
	// is already idle when it runs.
	OnFailure func(err error)
}

// Monitor follows one lock after a command until it settles.
//
// A cycle starts in operation mode when an operation id is supplied and
// switches to state mode once the operation succeeds. Each mode has its
// own try ceiling. Every exit path returns the Monitor to idle.
type Monitor struct {
	deviceID          string
	api               API
	projector         Projector
	logger            Logger
	interval          time.Duration
	maxOperationTries int
	maxStateTries     int
	onSettled         func()
	onFailure         func(error)

	mu            sync.Mutex
	current       step
	openTriggered bool
	// cycle identifies the current run; ticks from an older run are dropped.
	cycle  uint64
	cancel context.CancelFunc
}

// NewMonitor creates an idle Monitor for one device.
func NewMonitor(deviceID string, api API, projector Projector, opts MonitorOptions) *Monitor {
	m := &Monitor{
		deviceID:          deviceID,
		api:               api,
		projector:         projector,
		logger:            opts.Logger,
		interval:          opts.Interval,
		maxOperationTries: opts.MaxOperationTries,
		maxStateTries:     opts.MaxStateTries,
		onSettled:         opts.OnSettled,
		onFailure:         opts.OnFailure,
		current:           idle{},
	}
	if m.logger == nil {
		m.logger = noopLogger{}
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	if m.maxOperationTries <= 0 {
		m.maxOperationTries = DefaultMaxOperationTries
	}
	if m.maxStateTries <= 0 {
		m.maxStateTries = DefaultMaxStateTries
	}
	return m
}

// Run starts a polling cycle. An empty operationID starts in state mode.
// It returns false without side effects if a cycle is already running.
//
// The polling goroutine stops when the cycle ends, Reset is called or
// ctx is cancelled, so ctx must outlive the command that started it.
func (m *Monitor) Run(ctx context.Context, operationID string) bool {
	m.mu.Lock()
	if _, ok := m.current.(idle); !ok {
		m.mu.Unlock()
		return false
	}
	m.begin(operationID)
	cycleCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	cycle := m.cycle
	m.mu.Unlock()

	m.logger.Debug("monitor started",
		"device_id", m.deviceID,
		"operation_id", operationID,
	)

	go m.loop(cycleCtx, cycle)
	return true
}

// begin enters a new cycle. Caller must hold m.mu.
func (m *Monitor) begin(operationID string) {
	m.cycle++
	m.openTriggered = false
	if operationID != "" {
		m.current = pollingOperation{id: operationID}
	} else {
		m.current = pollingState{}
	}
	monitorsRunning.Inc()
}

// Reset returns the Monitor to idle and stops any polling goroutine.
// Resetting an idle Monitor does nothing.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Monitor) resetLocked() {
	if _, ok := m.current.(idle); ok {
		return
	}
	m.current = idle{}
	m.openTriggered = false
	m.cycle++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	monitorsRunning.Dec()
}

// Running reports whether a cycle is in progress.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.current.(idle)
	return !ok
}

// Status returns a snapshot of the Monitor fields.
func (m *Monitor) Status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MonitorStatus{
		Phase:         PhaseRunning,
		Mode:          m.current.mode(),
		Tries:         m.current.tries(),
		OpenTriggered: m.openTriggered,
	}
	switch cur := m.current.(type) {
	case idle:
		s.Phase = PhaseReady
	case pollingOperation:
		s.OperationID = cur.id
	}
	return s
}

func (m *Monitor) loop(ctx context.Context, cycle uint64) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if m.cycle == cycle {
				m.resetLocked()
			}
			m.mu.Unlock()
			return
		case <-ticker.C:
		}

		if !m.tick(ctx) {
			return
		}
	}
}

// tick performs one poll and reports whether the cycle is still running.
// The operation check runs before the state check so that a state check
// in the same tick sees the outcome of the operation.
func (m *Monitor) tick(ctx context.Context) bool {
	m.mu.Lock()
	cycle := m.cycle
	cur := m.current
	m.mu.Unlock()

	if op, ok := cur.(pollingOperation); ok {
		next, err := m.checkOperation(ctx, op)
		if err != nil {
			m.fail(cycle, err)
			return false
		}
		if !m.advance(cycle, next) {
			return false
		}
		cur = next
	}

	st, ok := cur.(pollingState)
	if !ok {
		// Idle or still waiting on the operation.
		_, waiting := cur.(pollingOperation)
		return waiting
	}
	return m.checkState(ctx, cycle, st)
}

// checkOperation polls the operation record and returns the next step.
// A successful operation yields a fresh state-mode step.
func (m *Monitor) checkOperation(ctx context.Context, op pollingOperation) (step, error) {
	pollsTotal.WithLabelValues(ModeOperation.String()).Inc()

	rec, err := m.api.GetOperation(ctx, op.id)
	op.count++
	if err != nil {
		return nil, err
	}

	m.logger.Debug("operation polled",
		"device_id", m.deviceID,
		"operation_id", op.id,
		"status", rec.Status,
		"result", rec.Result,
		"tries", op.count,
	)

	switch {
	case rec.Succeeded():
		return pollingState{}, nil
	case op.count > m.maxOperationTries:
		return nil, fmt.Errorf("%w: operation %s after %d polls", ErrTooManyTries, op.id, op.count)
	case rec.Pending():
		return op, nil
	default:
		return nil, fmt.Errorf("%w: operation %s returned result %d", ErrOperationFailed, op.id, rec.Result)
	}
}

// checkState polls the lock, projects the result and decides whether the
// cycle continues.
func (m *Monitor) checkState(ctx context.Context, cycle uint64, st pollingState) bool {
	pollsTotal.WithLabelValues(ModeState.String()).Inc()

	details, err := m.api.GetDetails(ctx, m.deviceID)
	st.count++
	if err != nil {
		m.fail(cycle, err)
		return false
	}
	state := details.Properties.State

	m.mu.Lock()
	if m.cycle != cycle {
		m.mu.Unlock()
		return false
	}
	fireOpened := state.IsPulling() && !m.openTriggered
	if fireOpened {
		m.openTriggered = true
	}
	m.mu.Unlock()

	m.logger.Debug("state polled",
		"device_id", m.deviceID,
		"state", state.String(),
		"tries", st.count,
	)

	if fireOpened {
		m.projector.TriggerOpened(m.deviceID)
	}
	m.projector.ApplyState(m.deviceID, Project(details.Properties))

	if st.count > m.maxStateTries {
		m.fail(cycle, fmt.Errorf("%w: state %s after %d polls", ErrTooManyTries, state, st.count))
		return false
	}
	if !state.IsSettling() {
		m.settle(cycle, state)
		return false
	}
	return m.advance(cycle, st)
}

// advance stores next as the current step if cycle is still current.
func (m *Monitor) advance(cycle uint64, next step) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cycle != cycle {
		return false
	}
	m.current = next
	return true
}

func (m *Monitor) settle(cycle uint64, state State) {
	m.mu.Lock()
	if m.cycle != cycle {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.mu.Unlock()

	cyclesTotal.WithLabelValues(cycleOutcome(nil)).Inc()
	m.logger.Debug("monitor settled", "device_id", m.deviceID, "state", state.String())

	if m.onSettled != nil {
		m.onSettled()
	}
}

// fail resets the Monitor before reporting err. Background errors have no
// caller, so they are logged and handed to the failure hook.
func (m *Monitor) fail(cycle uint64, err error) {
	m.mu.Lock()
	if m.cycle != cycle {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.mu.Unlock()

	cyclesTotal.WithLabelValues(cycleOutcome(err)).Inc()
	m.logger.Warn("monitor cycle failed",
		"device_id", m.deviceID,
		"error", err,
	)

	if m.onFailure != nil {
		m.onFailure(err)
	}
}
