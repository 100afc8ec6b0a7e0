package smartlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-locks/internal/audit"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// MockService is a scripted lock service. Operations succeed immediately
// and move the lock to the commanded state.
type MockService struct {
	mu        sync.Mutex
	locks     map[string]lock.Details
	listErrs  []error
	submitted []string
	opSeq     int
}

func NewMockService(locks ...lock.Details) *MockService {
	s := &MockService{locks: make(map[string]lock.Details)}
	for _, d := range locks {
		s.locks[d.ID] = d
	}
	return s
}

func (s *MockService) SubmitCommand(_ context.Context, deviceID string, op lock.OperationType, mode lock.UnlockMode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.locks[deviceID]
	if !ok {
		return "", fmt.Errorf("%w: no lock %s", lock.ErrResponse, deviceID)
	}
	s.submitted = append(s.submitted, fmt.Sprintf("%s/%d", op, mode))
	if op == lock.OperationClose {
		d.Properties.State = lock.StateLocked
	} else {
		d.Properties.State = lock.StateUnlocked
	}
	s.locks[deviceID] = d
	s.opSeq++
	return fmt.Sprintf("op-%d", s.opSeq), nil
}

func (s *MockService) GetOperation(_ context.Context, id string) (lock.Operation, error) {
	return lock.Operation{ID: id, Status: lock.OperationCompleted, Result: 0}, nil
}

func (s *MockService) GetState(_ context.Context, deviceID string) (lock.State, error) {
	d, err := s.GetDetails(context.Background(), deviceID)
	return d.Properties.State, err
}

func (s *MockService) GetDetails(_ context.Context, deviceID string) (lock.Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.locks[deviceID]
	if !ok {
		return lock.Details{}, fmt.Errorf("%w: no lock %s", lock.ErrResponse, deviceID)
	}
	return d, nil
}

func (s *MockService) ListLocks(context.Context) ([]lock.Details, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listErrs) > 0 && len(s.locks) == 0 {
		return nil, s.listErrs
	}
	out := make([]lock.Details, 0, len(s.locks))
	for _, d := range s.locks {
		out = append(out, d)
	}
	return out, s.listErrs
}

func (s *MockService) SetState(deviceID string, state lock.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.locks[deviceID]
	d.Properties.State = state
	s.locks[deviceID] = d
}

func (s *MockService) Delete(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, deviceID)
}

func (s *MockService) Submitted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.submitted...)
}

type published struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// MockMQTT records publishes and subscriptions.
type MockMQTT struct {
	mu           sync.Mutex
	messages     []published
	handlers     map[string]mqtt.MessageHandler
	disconnected bool
}

func NewMockMQTT() *MockMQTT {
	return &MockMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *MockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

func (m *MockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTT) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.disconnected
}

func (m *MockMQTT) Handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

// On returns every message published to topic.
func (m *MockMQTT) On(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, msg := range m.messages {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// MockAudit records audit entries.
type MockAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (a *MockAudit) Create(_ context.Context, e *audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *e)
	return nil
}

func (a *MockAudit) Entries() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Entry(nil), a.entries...)
}

type fakeTranslator struct{}

func (fakeTranslator) T(lang, key string) string { return lang + ":" + key }

// MockTelemetry counts writes per measurement.
type MockTelemetry struct {
	mu       sync.Mutex
	states   []string
	events   []string
	commands []string
}

func (t *MockTelemetry) WriteLockState(deviceID, state string, _ bool, _ *int, _ *bool) {
	t.mu.Lock()
	t.states = append(t.states, deviceID+"="+state)
	t.mu.Unlock()
}

func (t *MockTelemetry) WriteLockEvent(deviceID, event, _ string) {
	t.mu.Lock()
	t.events = append(t.events, deviceID+"="+event)
	t.mu.Unlock()
}

func (t *MockTelemetry) WriteLockCommand(deviceID, command, outcome string) {
	t.mu.Lock()
	t.commands = append(t.commands, deviceID+"="+command+"/"+outcome)
	t.mu.Unlock()
}

func (t *MockTelemetry) Commands() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.commands...)
}

// MockNotifier records broadcast event types.
type MockNotifier struct {
	mu    sync.Mutex
	types []string
}

func (n *MockNotifier) Broadcast(eventType string, _ any) {
	n.mu.Lock()
	n.types = append(n.types, eventType)
	n.mu.Unlock()
}

func (n *MockNotifier) Types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.types...)
}

func lockDetails(id string, state lock.State, pullSpring bool) lock.Details {
	battery := 90
	return lock.Details{
		ID:                id,
		Name:              "Lock " + id,
		IsConnected:       true,
		PullSpringEnabled: pullSpring,
		Properties:        lock.Properties{State: state, BatteryLevel: &battery},
	}
}

type testBridge struct {
	*Bridge
	service   *MockService
	mqtt      *MockMQTT
	audit     *MockAudit
	telemetry *MockTelemetry
}

// newTestBridge builds a bridge whose Monitors poll every interval.
func newTestBridge(t *testing.T, interval time.Duration, locks ...lock.Details) *testBridge {
	t.Helper()
	svc := NewMockService(locks...)
	mq := NewMockMQTT()
	aud := &MockAudit{}
	tel := &MockTelemetry{}
	proj := NewProjector(ProjectorOptions{Publisher: mq, Translator: fakeTranslator{}, Telemetry: tel, Language: "en"})

	b, err := NewBridge(Options{
		Service:   svc,
		MQTT:      mq,
		Projector: proj,
		Device:    lock.DeviceOptions{Monitor: lock.MonitorOptions{Interval: interval}},
		Audit:     aud,
		Telemetry: tel,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return &testBridge{Bridge: b, service: svc, mqtt: mq, audit: aud, telemetry: tel}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
