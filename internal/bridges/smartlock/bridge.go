package smartlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-locks/internal/audit"
	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

const (
	// commandTimeout bounds the synchronous part of a command: precondition
	// checks, state fetch and submission. Polling continues in the Monitor.
	commandTimeout = 15 * time.Second

	// auditTimeout bounds a single audit insert.
	auditTimeout = 2 * time.Second
)

// LockService is the remote lock API plus account discovery.
// Satisfied by *cloud.Client.
type LockService interface {
	lock.API
	ListLocks(ctx context.Context) ([]lock.Details, []error)
}

// MQTTClient is the MQTT surface used by the bridge.
// Satisfied by *mqtt.Client.
type MQTTClient interface {
	Publisher
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// AuditRecorder appends to the command history. Satisfied by
// *audit.SQLiteRepository.
type AuditRecorder interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// Options configures a Bridge.
type Options struct {
	Service   LockService
	MQTT      MQTTClient
	Projector *Projector

	// Device tunes each lock's Monitor. Logger and OnOutcome are set by
	// the bridge.
	Device lock.DeviceOptions

	// ResyncInterval is how often idle locks are re-read. Zero disables it.
	ResyncInterval time.Duration

	// HealthInterval is how often health is published. Default 30s.
	HealthInterval time.Duration

	Audit     AuditRecorder
	Telemetry Telemetry
	Logger    Logger
	Version   string
}

// Bridge owns one lock.Device per discovered lock and connects them to the
// hub: commands arrive over MQTT or the REST API, capability updates leave
// through the Projector.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	service   LockService
	mqtt      MQTTClient
	projector *Projector
	deviceOpt lock.DeviceOptions
	resync    time.Duration
	audit     AuditRecorder
	telemetry Telemetry
	logger    Logger
	health    *HealthReporter

	mu      sync.RWMutex
	devices map[string]*lock.Device

	errMu        sync.RWMutex
	lastCloudErr error

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewBridge validates opts and creates a stopped Bridge.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("lock service is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Projector == nil {
		return nil, fmt.Errorf("projector is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		service:   opts.Service,
		mqtt:      opts.MQTT,
		projector: opts.Projector,
		deviceOpt: opts.Device,
		resync:    opts.ResyncInterval,
		audit:     opts.Audit,
		telemetry: opts.Telemetry,
		logger:    logger,
		devices:   make(map[string]*lock.Device),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	b.deviceOpt.Logger = logger
	b.deviceOpt.OnOutcome = b.recordOutcome

	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Counts:    b.counts,
		CloudErr:  b.cloudErr,
		Logger:    logger,
	})
	return b, nil
}

// Start discovers locks, subscribes to command topics and starts the
// health and resync loops. A failed discovery is logged and retried by
// the resync loop.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("publishing starting status failed", "error", err)
	}

	if err := b.Discover(ctx); err != nil {
		b.logger.Error("initial lock discovery failed", "error", err)
	}

	topic := mqtt.Topics{}.AllLockCommands()
	if err := b.mqtt.Subscribe(topic, 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	b.health.Start(b.ctx)
	if b.resync > 0 {
		b.wg.Add(1)
		go b.resyncLoop()
	}

	b.logger.Info("smart lock bridge started", "locks", len(b.DeviceIDs()), "topic", topic)
	return nil
}

// Stop detaches every lock and stops background loops. Safe to call more
// than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.cancel()
		b.wg.Wait()

		b.mu.Lock()
		for _, d := range b.devices {
			d.Remove()
		}
		b.mu.Unlock()

		b.health.Stop()
		b.logger.Info("smart lock bridge stopped")
	})
}

// Discover lists the account's locks, attaches new ones and removes locks
// that disappeared. Removal is skipped when any report failed to parse,
// since a missing lock may just be unreadable.
func (b *Bridge) Discover(ctx context.Context) error {
	found, errs := b.service.ListLocks(ctx)
	if len(found) == 0 && len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrDiscoveryFailed, errors.Join(errs...))
		b.setCloudErr(err)
		return err
	}
	for _, err := range errs {
		b.logger.Warn("skipping unreadable lock report", "error", err)
	}
	b.setCloudErr(nil)

	seen := make(map[string]bool, len(found))
	added := 0
	for _, details := range found {
		seen[details.ID] = true
		if b.attach(details) {
			added++
		}
	}

	removed := 0
	if len(errs) == 0 {
		for _, id := range b.DeviceIDs() {
			if !seen[id] && b.Remove(id) {
				removed++
			}
		}
	}

	if added > 0 || removed > 0 {
		b.publishDiscovery(found)
		b.logger.Info("lock discovery", "added", added, "removed", removed, "total", len(seen))
	}
	return nil
}

// attach creates a Device for details unless one exists.
func (b *Bridge) attach(details lock.Details) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.devices[details.ID]; ok {
		return false
	}
	b.devices[details.ID] = lock.NewDevice(b.ctx, details, b.service, b.projector, b.deviceOpt)
	return true
}

// Remove detaches a lock: its Monitor stops and nothing more is projected
// for it. Returns false for unknown ids.
func (b *Bridge) Remove(deviceID string) bool {
	b.mu.Lock()
	d, ok := b.devices[deviceID]
	delete(b.devices, deviceID)
	b.mu.Unlock()
	if !ok {
		return false
	}
	d.Remove()
	b.projector.Forget(deviceID)
	return true
}

// Device returns the controller for deviceID.
func (b *Bridge) Device(deviceID string) (*lock.Device, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.devices[deviceID]
	return d, ok
}

// DeviceIDs returns the owned lock ids, sorted.
func (b *Bridge) DeviceIDs() []string {
	b.mu.RLock()
	ids := make([]string, 0, len(b.devices))
	for id := range b.devices {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Statuses returns a snapshot of every owned lock, sorted by id.
func (b *Bridge) Statuses() []lock.DeviceStatus {
	ids := b.DeviceIDs()
	out := make([]lock.DeviceStatus, 0, len(ids))
	for _, id := range ids {
		if d, ok := b.Device(id); ok {
			out = append(out, d.Status())
		}
	}
	return out
}

// Status returns the snapshot of one lock.
func (b *Bridge) Status(deviceID string) (lock.DeviceStatus, bool) {
	d, ok := b.Device(deviceID)
	if !ok {
		return lock.DeviceStatus{}, false
	}
	return d.Status(), true
}

// Projector returns the bridge's projector.
func (b *Bridge) Projector() *Projector { return b.projector }

// Command toggles a capability of a lock. It returns once the command is
// issued or rejected; the Monitor follows it up in the background.
func (b *Bridge) Command(ctx context.Context, deviceID, capability string, value bool, source string) error {
	d, ok := b.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var (
		err    error
		action string
	)
	switch capability {
	case CapabilityLocked:
		action = audit.ActionUnlock
		if value {
			action = audit.ActionLock
		}
		err = d.OnLockedCapability(ctx, value)
	case CapabilityOpen:
		action = audit.ActionOpen
		err = d.OnOpenCapability(ctx, value)
		if !value {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	}

	b.recordCommand(deviceID, action, source, err)
	return err
}

// Sync re-reads a lock from the remote service outside its Monitor.
func (b *Bridge) Sync(ctx context.Context, deviceID, source string) error {
	d, ok := b.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	err := d.Sync(ctx)
	b.setCloudErr(err)
	b.recordCommand(deviceID, audit.ActionSync, source, err)
	return err
}

// handleCommandMessage runs a command received on MQTT and publishes the
// acknowledgement.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	deviceID, ok := mqtt.Topics{}.DeviceID("command", topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrInvalidCommand, topic)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.publishAck(deviceID, "", fmt.Errorf("%w: %w", ErrInvalidCommand, err))
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	source := cmd.Source
	if source == "" {
		source = audit.SourceMQTT
	}

	b.logger.Debug("received lock command",
		"command_id", cmd.ID,
		"device_id", deviceID,
		"capability", cmd.Capability,
		"value", cmd.Value,
	)

	err := b.Command(b.ctx, deviceID, cmd.Capability, cmd.Value, source)
	b.publishAck(deviceID, cmd.ID, err)
	return nil
}

func (b *Bridge) publishAck(deviceID, commandID string, cmdErr error) {
	ack := AckMessage{
		CommandID: commandID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    AckAccepted,
	}
	if cmdErr != nil {
		key := ErrorKey(cmdErr)
		ack.Status = AckFailed
		ack.Error = &AckError{Code: key, Message: b.projector.Translate(key)}
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.LockAck(deviceID), payload, 1, false); err != nil {
		b.logger.Warn("publishing ack failed", "device_id", deviceID, "error", err)
	}
}

// ErrorKey maps a command error to its localization key. Bridge-level
// errors with no lock semantics map to the lock's not-available key.
func ErrorKey(err error) string {
	switch {
	case errors.Is(err, ErrUnknownDevice):
		return lock.KeyNotAvailable
	case errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrUnknownCapability):
		return lock.KeyResponse
	default:
		return lock.MessageKey(err)
	}
}

func (b *Bridge) publishDiscovery(found []lock.Details) {
	msg := DiscoveryMessage{Timestamp: time.Now().UTC(), Locks: make([]LockInfo, 0, len(found))}
	for _, d := range found {
		msg.Locks = append(msg.Locks, newLockInfo(d))
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.BridgeDiscovery(), payload, 1, true); err != nil {
		b.logger.Warn("publishing discovery failed", "error", err)
	}
}

// resyncLoop periodically picks up added or removed locks and re-reads
// locks whose Monitor is idle.
func (b *Bridge) resyncLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.resync)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.resyncOnce(b.ctx)
		}
	}
}

func (b *Bridge) resyncOnce(ctx context.Context) {
	if err := b.Discover(ctx); err != nil {
		b.logger.Warn("lock discovery failed", "error", err)
		return
	}
	for _, id := range b.DeviceIDs() {
		d, ok := b.Device(id)
		if !ok || d.Monitor().Running() {
			continue
		}
		if err := d.Sync(ctx); err != nil && !errors.Is(err, lock.ErrDeviceRemoved) {
			b.setCloudErr(err)
			b.logger.Warn("idle lock resync failed", "device_id", id, "error", err)
		}
	}
}

func (b *Bridge) recordCommand(deviceID, action, source string, err error) {
	outcome := "issued"
	key := ""
	if err != nil {
		outcome = "error"
		if lock.IsPrecondition(err) {
			outcome = "rejected"
		}
		key = ErrorKey(err)
	}
	if b.telemetry != nil {
		b.telemetry.WriteLockCommand(deviceID, action, outcome)
	}
	b.appendAudit(&audit.Entry{
		DeviceID:   deviceID,
		Action:     action,
		Source:     source,
		Outcome:    outcome,
		MessageKey: key,
	})
}

// recordOutcome is the Device hook for finished Monitor cycles.
func (b *Bridge) recordOutcome(deviceID string, err error) {
	entry := &audit.Entry{
		DeviceID: deviceID,
		Action:   audit.ActionMonitor,
		Source:   audit.SourceMonitor,
		Outcome:  "settled",
	}
	if err != nil {
		entry.MessageKey = lock.MessageKey(err)
		entry.Detail = map[string]any{"error": err.Error()}
		switch {
		case errors.Is(err, lock.ErrTooManyTries):
			entry.Outcome = "exhausted"
		case errors.Is(err, lock.ErrOperationFailed):
			entry.Outcome = "failed"
		default:
			entry.Outcome = "error"
		}
	} else if s, ok := b.projector.Snapshot(deviceID); ok {
		entry.Detail = map[string]any{"state": s.State}
	}
	b.appendAudit(entry)
}

func (b *Bridge) appendAudit(e *audit.Entry) {
	if b.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := b.audit.Create(ctx, e); err != nil {
		b.logger.Warn("audit append failed", "device_id", e.DeviceID, "action", e.Action, "error", err)
	}
}

func (b *Bridge) counts() LockCounts {
	var c LockCounts
	for _, s := range b.Statuses() {
		c.Total++
		if s.Available {
			c.Available++
		}
		if s.Monitor.Phase == lock.PhaseRunning {
			c.Busy++
		}
	}
	return c
}

func (b *Bridge) setCloudErr(err error) {
	b.errMu.Lock()
	b.lastCloudErr = err
	b.errMu.Unlock()
}

func (b *Bridge) cloudErr() error {
	b.errMu.RLock()
	defer b.errMu.RUnlock()
	return b.lastCloudErr
}

// Health returns the current health message.
func (b *Bridge) Health() HealthMessage {
	return b.health.Current()
}
