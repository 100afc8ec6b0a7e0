package lock

import (
	"context"
	"fmt"
	"sync"
)

// DeviceOptions configures a Device.
type DeviceOptions struct {
	Monitor MonitorOptions
	Logger  Logger

	// OnOutcome, if set, is called when a Monitor cycle ends: with nil
	// after the lock settled, otherwise with the cycle error.
	OnOutcome func(deviceID string, err error)
}

// DeviceStatus is a point-in-time view of a Device.
type DeviceStatus struct {
	ID                string        `json:"id"`
	Name              string        `json:"name,omitempty"`
	Available         bool          `json:"available"`
	ReasonKey         string        `json:"reason,omitempty"`
	PullSpringEnabled bool          `json:"pull_spring_enabled"`
	Open              bool          `json:"open"`
	Projection        *Projection   `json:"projection,omitempty"`
	Monitor           MonitorStatus `json:"monitor"`
}

// Device is the controller for one lock. It owns the lock's Monitor for
// its whole lifetime and is the only caller of Monitor.Run.
type Device struct {
	id        string
	api       API
	projector Projector
	logger    Logger
	monitor   *Monitor
	onOutcome func(deviceID string, err error)

	// cmdMu serialises command issuance; a concurrent command fails with
	// ErrInUse rather than waiting.
	cmdMu sync.Mutex

	mu                sync.RWMutex
	name              string
	available         bool
	reasonKey         string
	pullSpringEnabled bool
	open              bool
	last              *Projection
	removed           bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDevice attaches a lock and applies its initial report.
//
// Parameters:
//   - ctx: lifetime of the device; cancelling it stops any polling
//   - details: report obtained from discovery
//   - api: remote lock service
//   - projector: receiver of capability updates
//   - opts: logger and Monitor tuning
func NewDevice(ctx context.Context, details Details, api API, projector Projector, opts DeviceOptions) *Device {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	dctx, cancel := context.WithCancel(ctx)

	d := &Device{
		id:        details.ID,
		name:      details.Name,
		api:       api,
		projector: projector,
		logger:    logger,
		onOutcome: opts.OnOutcome,
		ctx:       dctx,
		cancel:    cancel,
	}

	mopts := opts.Monitor
	if mopts.Logger == nil {
		mopts.Logger = logger
	}
	mopts.OnSettled = d.onSettled
	mopts.OnFailure = d.onFailure
	d.monitor = NewMonitor(d.id, api, guardedProjector{d}, mopts)

	d.applyDetails(details, true)
	return d
}

// ID returns the remote device id.
func (d *Device) ID() string { return d.id }

// Monitor returns the device's Monitor.
func (d *Device) Monitor() *Monitor { return d.monitor }

// Status returns a snapshot of the device and its Monitor.
func (d *Device) Status() DeviceStatus {
	d.mu.RLock()
	s := DeviceStatus{
		ID:                d.id,
		Name:              d.name,
		Available:         d.available,
		ReasonKey:         d.reasonKey,
		PullSpringEnabled: d.pullSpringEnabled,
		Open:              d.open,
	}
	if d.last != nil {
		p := *d.last
		s.Projection = &p
	}
	d.mu.RUnlock()

	s.Monitor = d.monitor.Status()
	return s
}

// Lock closes the bolt.
func (d *Device) Lock(ctx context.Context) error {
	return d.command(ctx, OperationClose, UnlockDefault)
}

// Unlock opens the bolt without pulling the spring.
func (d *Device) Unlock(ctx context.Context) error {
	return d.command(ctx, OperationOpen, UnlockDefault)
}

// Open pulls the spring of an unlocked lock.
func (d *Device) Open(ctx context.Context) error {
	return d.command(ctx, OperationOpen, UnlockOrPullSpring)
}

// command runs the shared precondition chain and starts a Monitor cycle.
// Order: availability, busy, capability, state fetch, already at target,
// compatible state.
func (d *Device) command(ctx context.Context, op OperationType, mode UnlockMode) (err error) {
	name := commandName(op, mode)
	defer func() {
		commandsTotal.WithLabelValues(name, commandOutcome(err)).Inc()
	}()

	if !d.cmdMu.TryLock() {
		return ErrInUse
	}
	defer d.cmdMu.Unlock()

	if err := d.checkReady(); err != nil {
		return err
	}

	pull := mode == UnlockOrPullSpring
	if pull && !d.PullSpringEnabled() {
		d.Reset(ctx)
		return ErrPullSpringDisabled
	}

	state, err := d.api.GetState(ctx, d.id)
	if err != nil {
		d.Reset(ctx)
		return fmt.Errorf("fetching state for %s: %w", name, err)
	}

	proceed, err := checkTransition(name, state)
	if err != nil || !proceed {
		d.logger.Debug("command not issued",
			"device_id", d.id,
			"command", name,
			"state", state.String(),
		)
		d.Reset(ctx)
		return err
	}

	opID, err := d.api.SubmitCommand(ctx, d.id, op, mode)
	if err != nil {
		d.Reset(ctx)
		return fmt.Errorf("submitting %s: %w", name, err)
	}

	if pull {
		d.setOpen(true)
	}
	if !d.monitor.Run(d.ctx, opID) {
		return ErrInUse
	}

	d.logger.Info("lock command issued",
		"device_id", d.id,
		"command", name,
		"operation_id", opID,
	)
	return nil
}

// checkReady fails fast on removed, unavailable or busy devices.
func (d *Device) checkReady() error {
	d.mu.RLock()
	removed, available := d.removed, d.available
	d.mu.RUnlock()

	switch {
	case removed:
		return ErrDeviceRemoved
	case !available:
		return ErrNotAvailable
	case d.monitor.Running():
		return ErrInUse
	}
	return nil
}

// checkTransition decides whether a command may be issued from state.
// A command already satisfied by state returns false with no error.
func checkTransition(command string, state State) (bool, error) {
	switch command {
	case commandLock:
		if state == StateLocked {
			return false, nil
		}
		if state != StateUnlocked && state != StateSemiLocked {
			return false, ErrNotReadyToLock
		}
	case commandUnlock:
		if state == StateUnlocked {
			return false, nil
		}
		if state != StateLocked && state != StateSemiLocked {
			return false, ErrNotReadyToUnlock
		}
	case commandOpen:
		if state != StateUnlocked {
			return false, ErrFirstUnlock
		}
	}
	return true, nil
}

const (
	commandLock   = "lock"
	commandUnlock = "unlock"
	commandOpen   = "open"
)

func commandName(op OperationType, mode UnlockMode) string {
	switch {
	case op == OperationClose:
		return commandLock
	case mode == UnlockOrPullSpring || op == OperationPull:
		return commandOpen
	default:
		return commandUnlock
	}
}

func commandOutcome(err error) string {
	switch {
	case err == nil:
		return "issued"
	case IsPrecondition(err):
		return "rejected"
	default:
		return "error"
	}
}

// Reset clears the optimistic open flag and resynchronises the device from
// the remote service outside the Monitor. Sync failures are logged only.
func (d *Device) Reset(ctx context.Context) {
	d.setOpen(false)
	if err := d.Sync(ctx); err != nil {
		d.logger.Warn("lock resync failed", "device_id", d.id, "error", err)
	}
}

// Sync fetches the device report and applies state, availability and
// settings.
func (d *Device) Sync(ctx context.Context) error {
	if d.Removed() {
		return ErrDeviceRemoved
	}
	details, err := d.api.GetDetails(ctx, d.id)
	if err != nil {
		return fmt.Errorf("syncing %s: %w", d.id, err)
	}
	d.applyDetails(details, false)
	return nil
}

// applyDetails projects a device report. initial forces the open
// capability presence to be published even when unchanged.
func (d *Device) applyDetails(details Details, initial bool) {
	state := details.Properties.State
	available := details.IsConnected && !state.IsBlocking()
	reason := ""
	if !available {
		reason = KeyNotAvailable
		if state == StateUnknown {
			reason = KeyUnknownState
		}
	}

	d.mu.Lock()
	if details.Name != "" {
		d.name = details.Name
	}
	d.available = available
	d.reasonKey = reason
	d.mu.Unlock()

	p := guardedProjector{d}
	p.SetAvailable(d.id, available, reason)
	p.ApplyState(d.id, Project(details.Properties))
	d.setPullSpringEnabled(details.PullSpringEnabled, initial)
}

// PullSpringEnabled reports whether the open capability is present.
func (d *Device) PullSpringEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pullSpringEnabled
}

// SetPullSpringEnabled mirrors the device setting onto the open capability.
func (d *Device) SetPullSpringEnabled(enabled bool) {
	d.setPullSpringEnabled(enabled, false)
}

func (d *Device) setPullSpringEnabled(enabled, force bool) {
	d.mu.Lock()
	changed := d.pullSpringEnabled != enabled
	d.pullSpringEnabled = enabled
	d.mu.Unlock()

	if changed || force {
		guardedProjector{d}.SetOpenSupported(d.id, enabled)
	}
}

// OnLockedCapability handles a toggle of the locked capability. On failure
// the last known projection is restored.
func (d *Device) OnLockedCapability(ctx context.Context, locked bool) error {
	var err error
	if locked {
		err = d.Lock(ctx)
	} else {
		err = d.Unlock(ctx)
	}
	if err != nil {
		d.restore()
	}
	return err
}

// OnOpenCapability handles a toggle of the open capability. Clearing the
// capability has no remote effect.
func (d *Device) OnOpenCapability(ctx context.Context, open bool) error {
	if !open {
		d.setOpen(d.isOpen())
		return nil
	}
	err := d.Open(ctx)
	if err != nil {
		d.setOpen(false)
	}
	return err
}

// Remove detaches the device. The Monitor is reset and no projector call
// is made for the device afterwards.
func (d *Device) Remove() {
	d.mu.Lock()
	if d.removed {
		d.mu.Unlock()
		return
	}
	d.removed = true
	d.mu.Unlock()

	d.monitor.Reset()
	d.cancel()
	d.logger.Info("lock removed", "device_id", d.id)
}

// Removed reports whether Remove has been called.
func (d *Device) Removed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.removed
}

func (d *Device) restore() {
	d.mu.RLock()
	last := d.last
	d.mu.RUnlock()
	if last != nil {
		guardedProjector{d}.ApplyState(d.id, *last)
	}
}

func (d *Device) isOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.open
}

func (d *Device) setOpen(open bool) {
	d.mu.Lock()
	d.open = open
	d.mu.Unlock()
	guardedProjector{d}.SetOpen(d.id, open)
}

func (d *Device) onSettled() {
	if d.isOpen() {
		d.setOpen(false)
	}
	d.reportOutcome(nil)
}

func (d *Device) onFailure(err error) {
	d.Reset(d.ctx)
	guardedProjector{d}.Warn(d.id, err)
	d.reportOutcome(err)
}

func (d *Device) reportOutcome(err error) {
	if d.onOutcome != nil && !d.Removed() {
		d.onOutcome(d.id, err)
	}
}

// guardedProjector drops calls for removed devices and records the last
// applied projection.
type guardedProjector struct {
	d *Device
}

func (g guardedProjector) ApplyState(deviceID string, p Projection) {
	g.d.mu.Lock()
	if g.d.removed {
		g.d.mu.Unlock()
		return
	}
	g.d.last = &p
	g.d.mu.Unlock()
	g.d.projector.ApplyState(deviceID, p)
}

func (g guardedProjector) SetOpen(deviceID string, open bool) {
	if !g.d.Removed() {
		g.d.projector.SetOpen(deviceID, open)
	}
}

func (g guardedProjector) SetOpenSupported(deviceID string, supported bool) {
	if !g.d.Removed() {
		g.d.projector.SetOpenSupported(deviceID, supported)
	}
}

func (g guardedProjector) SetAvailable(deviceID string, available bool, reasonKey string) {
	if !g.d.Removed() {
		g.d.projector.SetAvailable(deviceID, available, reasonKey)
	}
}

func (g guardedProjector) TriggerOpened(deviceID string) {
	if !g.d.Removed() {
		g.d.projector.TriggerOpened(deviceID)
	}
}

func (g guardedProjector) Warn(deviceID string, err error) {
	if !g.d.Removed() {
		g.d.projector.Warn(deviceID, err)
	}
}
