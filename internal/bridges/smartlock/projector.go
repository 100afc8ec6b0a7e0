package smartlock

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// Publisher is the MQTT surface used for state, acks, events and health.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Translator resolves localization keys. Satisfied by *i18n.Catalog.
type Translator interface {
	T(lang, key string) string
}

// Telemetry records time-series data. Satisfied by *influxdb.Client.
type Telemetry interface {
	WriteLockState(deviceID, state string, locked bool, battery *int, charging *bool)
	WriteLockEvent(deviceID, event, detail string)
	WriteLockCommand(deviceID, command, outcome string)
}

// Notifier pushes events to live clients. Satisfied by the API WebSocket hub.
type Notifier interface {
	Broadcast(eventType string, payload any)
}

// Projector implements lock.Projector for the hub. It keeps the capability
// view of every lock and publishes it retained on MQTT whenever it changes.
//
// Thread Safety: All methods are safe for concurrent use.
type Projector struct {
	publisher  Publisher
	translator Translator
	telemetry  Telemetry
	language   string
	logger     Logger

	mu     sync.RWMutex
	states map[string]*StateMessage

	notifierMu sync.RWMutex
	notifier   Notifier
}

// ProjectorOptions configures a Projector. Only Publisher is required.
type ProjectorOptions struct {
	Publisher  Publisher
	Translator Translator
	Telemetry  Telemetry
	Notifier   Notifier
	Language   string
	Logger     Logger
}

// NewProjector creates a Projector.
func NewProjector(opts ProjectorOptions) *Projector {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Projector{
		publisher:  opts.Publisher,
		translator: opts.Translator,
		telemetry:  opts.Telemetry,
		notifier:   opts.Notifier,
		language:   opts.Language,
		logger:     logger,
		states:     make(map[string]*StateMessage),
	}
}

// SetNotifier replaces the live-event notifier. The API hub is created
// after the bridge, so it is attached late.
func (p *Projector) SetNotifier(n Notifier) {
	p.notifierMu.Lock()
	p.notifier = n
	p.notifierMu.Unlock()
}

// ApplyState sets the locked, battery and charging capabilities.
func (p *Projector) ApplyState(deviceID string, proj lock.Projection) {
	msg := p.update(deviceID, func(s *StateMessage) {
		s.State = proj.State.String()
		s.Locked = proj.Locked
		s.BatteryLevel = proj.BatteryLevel
		s.Charging = proj.Charging
	})
	if p.telemetry != nil {
		p.telemetry.WriteLockState(deviceID, msg.State, msg.Locked, msg.BatteryLevel, msg.Charging)
	}
}

// SetOpen sets the optimistic open capability.
func (p *Projector) SetOpen(deviceID string, open bool) {
	p.update(deviceID, func(s *StateMessage) { s.Open = open })
}

// SetOpenSupported adds or removes the open capability.
func (p *Projector) SetOpenSupported(deviceID string, supported bool) {
	p.update(deviceID, func(s *StateMessage) {
		s.OpenSupported = supported
		if !supported {
			s.Open = false
		}
	})
}

// SetAvailable marks the device available, or unavailable with a
// localized reason.
func (p *Projector) SetAvailable(deviceID string, available bool, reasonKey string) {
	p.update(deviceID, func(s *StateMessage) {
		s.Available = available
		s.ReasonKey = ""
		s.Reason = ""
		if !available {
			s.ReasonKey = reasonKey
			s.Reason = p.translate(reasonKey)
		}
	})
}

// TriggerOpened fires the opened event.
func (p *Projector) TriggerOpened(deviceID string) {
	evt := EventMessage{
		Type:      EventOpened,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Key:       "events.opened",
		Message:   p.translate("events.opened"),
	}
	p.publishJSON(mqtt.Topics{}.CoreEvent(coreEventOpened), evt, false)
	if p.telemetry != nil {
		p.telemetry.WriteLockEvent(deviceID, "opened", "")
	}
	p.notify(EventOpened, evt)
	p.logger.Info("lock opened", "device_id", deviceID)
}

// Warn surfaces a background failure with its localized message.
func (p *Projector) Warn(deviceID string, err error) {
	key := lock.MessageKey(err)
	evt := EventMessage{
		Type:      EventWarning,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Key:       key,
		Message:   p.translate(key),
	}
	p.publishJSON(mqtt.Topics{}.CoreEvent(coreEventWarning), evt, false)
	if p.telemetry != nil {
		p.telemetry.WriteLockEvent(deviceID, "warning", key)
	}
	p.notify(EventWarning, evt)
	p.logger.Warn("lock warning", "device_id", deviceID, "key", key, "error", err)
}

// Snapshot returns the current capability view of a device.
func (p *Projector) Snapshot(deviceID string) (StateMessage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.states[deviceID]
	if !ok {
		return StateMessage{}, false
	}
	return *s, true
}

// Forget drops a removed device and clears its retained state.
func (p *Projector) Forget(deviceID string) {
	p.mu.Lock()
	delete(p.states, deviceID)
	p.mu.Unlock()

	// An empty retained payload deletes the retained message.
	if err := p.publisher.Publish(mqtt.Topics{}.LockState(deviceID), nil, 1, true); err != nil {
		p.logger.Warn("clearing retained lock state failed", "device_id", deviceID, "error", err)
	}
	p.notify(EventRemoved, EventMessage{Type: EventRemoved, DeviceID: deviceID, Timestamp: time.Now().UTC()})
}

// Translate resolves key in the configured language, falling back to the
// key itself when no translator is set.
func (p *Projector) Translate(key string) string {
	return p.translate(key)
}

func (p *Projector) translate(key string) string {
	if p.translator == nil || key == "" {
		return key
	}
	return p.translator.T(p.language, key)
}

// update mutates the cached view, publishes it when it changed and
// returns a copy.
func (p *Projector) update(deviceID string, mutate func(*StateMessage)) StateMessage {
	p.mu.Lock()
	s, ok := p.states[deviceID]
	if !ok {
		s = &StateMessage{DeviceID: deviceID}
		p.states[deviceID] = s
	}
	before := *s
	mutate(s)
	changed := !ok || !sameState(before, *s)
	if changed {
		s.Timestamp = time.Now().UTC()
	}
	msg := *s
	p.mu.Unlock()

	if changed {
		p.publishJSON(mqtt.Topics{}.LockState(deviceID), msg, true)
		p.notify(EventStateChanged, msg)
	}
	return msg
}

func sameState(a, b StateMessage) bool {
	return a.Available == b.Available &&
		a.ReasonKey == b.ReasonKey &&
		a.State == b.State &&
		a.Locked == b.Locked &&
		equalPtr(a.BatteryLevel, b.BatteryLevel) &&
		equalPtr(a.Charging, b.Charging) &&
		a.Open == b.Open &&
		a.OpenSupported == b.OpenSupported
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (p *Projector) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("encoding mqtt payload failed", "topic", topic, "error", err)
		return
	}
	if err := p.publisher.Publish(topic, payload, 1, retained); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

func (p *Projector) notify(eventType string, payload any) {
	p.notifierMu.RLock()
	n := p.notifier
	p.notifierMu.RUnlock()
	if n != nil {
		n.Broadcast(eventType, payload)
	}
}

// Logger is the logging surface. Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
