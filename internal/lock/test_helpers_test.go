package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

// MockAPI implements API with scripted responses. Queued operations and
// details are consumed in order; the last entry repeats.
type MockAPI struct {
	mu sync.Mutex

	state    State
	stateErr error

	details    []Details
	detailsErr error

	operations   []Operation
	operationErr error

	submitID  string
	submitErr error
	submitted []submission

	getStateCalls     int
	getDetailsCalls   int
	getOperationCalls int
}

type submission struct {
	DeviceID string
	Op       OperationType
	Mode     UnlockMode
}

func NewMockAPI(state State) *MockAPI {
	return &MockAPI{state: state, submitID: "op-1"}
}

func (m *MockAPI) SubmitCommand(_ context.Context, deviceID string, op OperationType, mode UnlockMode) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.submitted = append(m.submitted, submission{DeviceID: deviceID, Op: op, Mode: mode})
	return m.submitID, nil
}

func (m *MockAPI) GetOperation(_ context.Context, id string) (Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOperationCalls++
	if m.operationErr != nil {
		return Operation{}, m.operationErr
	}
	if len(m.operations) == 0 {
		return Operation{ID: id, Status: OperationPending, Result: ResultNone}, nil
	}
	op := m.operations[0]
	if len(m.operations) > 1 {
		m.operations = m.operations[1:]
	}
	op.ID = id
	return op, nil
}

func (m *MockAPI) GetState(_ context.Context, _ string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getStateCalls++
	return m.state, m.stateErr
}

func (m *MockAPI) GetDetails(_ context.Context, deviceID string) (Details, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getDetailsCalls++
	if m.detailsErr != nil {
		return Details{}, m.detailsErr
	}
	if len(m.details) == 0 {
		return connected(deviceID, m.state), nil
	}
	d := m.details[0]
	if len(m.details) > 1 {
		m.details = m.details[1:]
	}
	return d, nil
}

// QueueOperations replaces the scripted operation records.
func (m *MockAPI) QueueOperations(ops ...Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = ops
}

// QueueStates replaces the scripted detail reports with connected reports
// carrying the given states.
func (m *MockAPI) QueueStates(deviceID string, states ...State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details = nil
	for _, s := range states {
		m.details = append(m.details, connected(deviceID, s))
	}
}

func (m *MockAPI) Submitted() []submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]submission, len(m.submitted))
	copy(out, m.submitted)
	return out
}

func (m *MockAPI) DetailsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getDetailsCalls
}

func (m *MockAPI) StateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getStateCalls
}

func connected(deviceID string, s State) Details {
	battery := 80
	return Details{
		ID:          deviceID,
		IsConnected: true,
		Properties:  Properties{State: s, BatteryLevel: &battery},
	}
}

func succeeded() Operation {
	return Operation{Type: OperationClose, Status: OperationCompleted, Result: 0}
}

func pending() Operation {
	return Operation{Type: OperationClose, Status: OperationPending, Result: ResultNone}
}

// MockProjector records every projector call.
type MockProjector struct {
	mu        sync.Mutex
	applied   []Projection
	open      []bool
	supported []bool
	available []availability
	opened    int
	warnings  []error
}

type availability struct {
	Available bool
	Reason    string
}

func (p *MockProjector) ApplyState(_ string, pr Projection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, pr)
}

func (p *MockProjector) SetOpen(_ string, open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = append(p.open, open)
}

func (p *MockProjector) SetOpenSupported(_ string, supported bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supported = append(p.supported, supported)
}

func (p *MockProjector) SetAvailable(_ string, available bool, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = append(p.available, availability{Available: available, Reason: reason})
}

func (p *MockProjector) TriggerOpened(string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened++
}

func (p *MockProjector) Warn(_ string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings = append(p.warnings, err)
}

func (p *MockProjector) Applied() []Projection {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Projection, len(p.applied))
	copy(out, p.applied)
	return out
}

func (p *MockProjector) LastApplied() (Projection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.applied) == 0 {
		return Projection{}, false
	}
	return p.applied[len(p.applied)-1], true
}

func (p *MockProjector) LastOpen() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.open) == 0 {
		return false, false
	}
	return p.open[len(p.open)-1], true
}

func (p *MockProjector) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

func (p *MockProjector) Warnings() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]error, len(p.warnings))
	copy(out, p.warnings)
	return out
}

// parkedInterval keeps the polling goroutine waiting so tests drive ticks.
const parkedInterval = time.Hour

func newTestMonitor(t *testing.T, api API, proj Projector, opts MonitorOptions) *Monitor {
	t.Helper()
	if opts.Interval == 0 {
		opts.Interval = parkedInterval
	}
	m := NewMonitor("lock-1", api, proj, opts)
	t.Cleanup(m.Reset)
	return m
}

func newTestDevice(t *testing.T, details Details, api API) (*Device, *MockProjector) {
	t.Helper()
	proj := &MockProjector{}
	if details.ID == "" {
		details.ID = "lock-1"
	}
	d := NewDevice(context.Background(), details, api, proj, DeviceOptions{
		Monitor: MonitorOptions{Interval: parkedInterval},
	})
	t.Cleanup(d.Remove)
	return d, proj
}

func assertIdle(t *testing.T, m *Monitor) {
	t.Helper()
	s := m.Status()
	if s.Phase != PhaseReady || s.Mode != ModeState || s.OperationID != "" || s.Tries != 0 || s.OpenTriggered {
		t.Errorf("monitor not idle: %+v", s)
	}
}
