package lock

import (
	"context"
	"errors"
	"testing"
)

func TestDeviceNoOpWhenAlreadyAtTarget(t *testing.T) {
	tests := []struct {
		name  string
		state State
		call  func(*Device, context.Context) error
	}{
		{"lock when locked", StateLocked, (*Device).Lock},
		{"unlock when unlocked", StateUnlocked, (*Device).Unlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewMockAPI(tt.state)
			d, _ := newTestDevice(t, connected("lock-1", tt.state), api)

			if err := tt.call(d, context.Background()); err != nil {
				t.Fatalf("err = %v, want nil", err)
			}
			if got := api.Submitted(); len(got) != 0 {
				t.Errorf("submitted %v, want no command", got)
			}
			assertIdle(t, d.Monitor())
		})
	}
}

func TestDeviceRejectsIncompatibleState(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		call    func(*Device, context.Context) error
		wantErr error
		wantKey string
	}{
		{"lock while pulling", StatePulling, (*Device).Lock, ErrNotReadyToLock, KeyNotReadyToLock},
		{"lock while locking", StateLocking, (*Device).Lock, ErrNotReadyToLock, KeyNotReadyToLock},
		{"unlock while unlocking", StateUnlocking, (*Device).Unlock, ErrNotReadyToUnlock, KeyNotReadyToUnlock},
		{"unlock while pulled", StatePulled, (*Device).Unlock, ErrNotReadyToUnlock, KeyNotReadyToUnlock},
		{"open while locked", StateLocked, (*Device).Open, ErrFirstUnlock, KeyFirstUnlock},
		{"open while semi locked", StateSemiLocked, (*Device).Open, ErrFirstUnlock, KeyFirstUnlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewMockAPI(tt.state)
			details := connected("lock-1", StateUnlocked)
			details.PullSpringEnabled = true
			d, _ := newTestDevice(t, details, api)

			err := tt.call(d, context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if key := MessageKey(err); key != tt.wantKey {
				t.Errorf("MessageKey = %q, want %q", key, tt.wantKey)
			}
			if got := api.Submitted(); len(got) != 0 {
				t.Errorf("submitted %v, want no command", got)
			}
			// The device resyncs after a rejected command.
			if api.DetailsCalls() != 1 {
				t.Errorf("resync calls = %d, want 1", api.DetailsCalls())
			}
			assertIdle(t, d.Monitor())
		})
	}
}

func TestDeviceOpenPullSpringDisabled(t *testing.T) {
	for _, state := range []State{StateUnlocked, StateLocked, StateSemiLocked} {
		t.Run(state.String(), func(t *testing.T) {
			api := NewMockAPI(state)
			d, _ := newTestDevice(t, connected("lock-1", state), api)

			err := d.Open(context.Background())
			if !errors.Is(err, ErrPullSpringDisabled) {
				t.Fatalf("err = %v, want ErrPullSpringDisabled", err)
			}
			if api.StateCalls() != 0 {
				t.Errorf("state fetched %d times, want 0", api.StateCalls())
			}
		})
	}
}

func TestDeviceNotAvailable(t *testing.T) {
	tests := []struct {
		name       string
		details    Details
		wantReason string
	}{
		{
			name:       "disconnected",
			details:    Details{ID: "lock-1", Properties: Properties{State: StateLocked}},
			wantReason: KeyNotAvailable,
		},
		{
			name:       "updating",
			details:    connected("lock-1", StateUpdating),
			wantReason: KeyNotAvailable,
		},
		{
			name:       "calibrating",
			details:    connected("lock-1", StateCalibrating),
			wantReason: KeyNotAvailable,
		},
		{
			name:       "unknown",
			details:    connected("lock-1", StateUnknown),
			wantReason: KeyUnknownState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewMockAPI(StateUnlocked)
			d, proj := newTestDevice(t, tt.details, api)

			status := d.Status()
			if status.Available {
				t.Fatal("device available, want unavailable")
			}
			if status.ReasonKey != tt.wantReason {
				t.Errorf("reason = %q, want %q", status.ReasonKey, tt.wantReason)
			}
			if len(proj.available) == 0 || proj.available[0].Available {
				t.Errorf("projector availability = %+v", proj.available)
			}

			for _, call := range []func(*Device, context.Context) error{(*Device).Lock, (*Device).Unlock, (*Device).Open} {
				if err := call(d, context.Background()); !errors.Is(err, ErrNotAvailable) {
					t.Errorf("err = %v, want ErrNotAvailable", err)
				}
			}
			if api.StateCalls() != 0 {
				t.Errorf("state fetched %d times, want 0", api.StateCalls())
			}
		})
	}
}

func TestDeviceInUseLeavesMonitorUntouched(t *testing.T) {
	api := NewMockAPI(StateUnlocked)
	details := connected("lock-1", StateUnlocked)
	details.PullSpringEnabled = true
	d, _ := newTestDevice(t, details, api)
	ctx := context.Background()

	if err := d.Lock(ctx); err != nil {
		t.Fatalf("Lock() = %v", err)
	}
	before := d.Monitor().Status()
	if before.Phase != PhaseRunning || before.OperationID != "op-1" {
		t.Fatalf("monitor after Lock = %+v", before)
	}

	for _, call := range []func(*Device, context.Context) error{(*Device).Lock, (*Device).Unlock, (*Device).Open} {
		err := call(d, ctx)
		if !errors.Is(err, ErrInUse) {
			t.Errorf("err = %v, want ErrInUse", err)
		}
		if MessageKey(err) != KeyInUse {
			t.Errorf("MessageKey = %q, want %q", MessageKey(err), KeyInUse)
		}
	}

	if after := d.Monitor().Status(); after != before {
		t.Errorf("monitor changed: before %+v, after %+v", before, after)
	}
	if got := len(api.Submitted()); got != 1 {
		t.Errorf("submitted %d commands, want 1", got)
	}
}

func TestDeviceStateFetchErrorAbortsCommand(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantKey string
	}{
		{"response", ErrResponse, KeyResponse},
		{"unknown state", ErrUnknownState, KeyUnknownState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewMockAPI(StateUnlocked)
			api.stateErr = tt.err
			d, _ := newTestDevice(t, connected("lock-1", StateUnlocked), api)

			err := d.Lock(context.Background())
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if MessageKey(err) != tt.wantKey {
				t.Errorf("MessageKey = %q, want %q", MessageKey(err), tt.wantKey)
			}
			if len(api.Submitted()) != 0 {
				t.Error("command submitted against unknown precondition")
			}
			assertIdle(t, d.Monitor())
		})
	}
}

func TestDeviceLockRoundTrip(t *testing.T) {
	api := NewMockAPI(StateUnlocked)
	api.QueueOperations(succeeded())
	api.QueueStates("lock-1", StateLocking, StateLocked)
	d, proj := newTestDevice(t, connected("lock-1", StateUnlocked), api)
	ctx := context.Background()

	if err := d.Lock(ctx); err != nil {
		t.Fatalf("Lock() = %v", err)
	}
	sub := api.Submitted()
	if len(sub) != 1 || sub[0].Op != OperationClose {
		t.Fatalf("submitted = %+v, want one close", sub)
	}

	for d.Monitor().tick(ctx) {
	}

	p, ok := proj.LastApplied()
	if !ok || !p.Locked || p.State != StateLocked {
		t.Errorf("last projection = %+v, want locked", p)
	}
	assertIdle(t, d.Monitor())
	if len(proj.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", proj.Warnings())
	}
}

func TestDeviceUnlockSemiLockedShowsUnlocked(t *testing.T) {
	api := NewMockAPI(StateLocked)
	api.QueueOperations(succeeded())
	api.QueueStates("lock-1", StateUnlocking, StateSemiLocked)
	d, proj := newTestDevice(t, connected("lock-1", StateLocked), api)
	ctx := context.Background()

	if err := d.Unlock(ctx); err != nil {
		t.Fatalf("Unlock() = %v", err)
	}
	sub := api.Submitted()
	if len(sub) != 1 || sub[0].Op != OperationOpen || sub[0].Mode != UnlockDefault {
		t.Fatalf("submitted = %+v, want one default open", sub)
	}

	for d.Monitor().tick(ctx) {
	}

	p, _ := proj.LastApplied()
	if p.Locked {
		t.Error("SemiLocked projected as locked")
	}
	assertIdle(t, d.Monitor())
}

func TestDeviceOpenFlow(t *testing.T) {
	api := NewMockAPI(StateUnlocked)
	api.QueueOperations(succeeded())
	api.QueueStates("lock-1", StatePulling, StatePulled, StateUnlocked)
	details := connected("lock-1", StateUnlocked)
	details.PullSpringEnabled = true
	d, proj := newTestDevice(t, details, api)
	ctx := context.Background()

	if err := d.OnOpenCapability(ctx, true); err != nil {
		t.Fatalf("OnOpenCapability(true) = %v", err)
	}
	sub := api.Submitted()
	if len(sub) != 1 || sub[0].Mode != UnlockOrPullSpring {
		t.Fatalf("submitted = %+v, want pull spring unlock", sub)
	}
	if open, _ := proj.LastOpen(); !open {
		t.Error("open capability not set optimistically")
	}

	for d.Monitor().tick(ctx) {
	}

	if proj.Opened() != 1 {
		t.Errorf("opened fired %d times, want 1", proj.Opened())
	}
	if open, _ := proj.LastOpen(); open {
		t.Error("open capability still set after settling")
	}
}

func TestDeviceMonitorFailureResyncsAndWarns(t *testing.T) {
	api := NewMockAPI(StateUnlocked)
	api.QueueOperations(Operation{Status: OperationCompleted, Result: 1})
	d, proj := newTestDevice(t, connected("lock-1", StateUnlocked), api)
	ctx := context.Background()

	if err := d.OnLockedCapability(ctx, true); err != nil {
		t.Fatalf("OnLockedCapability(true) = %v", err)
	}
	if d.Monitor().tick(ctx) {
		t.Fatal("tick() = true, want failure")
	}

	warnings := proj.Warnings()
	if len(warnings) != 1 || !errors.Is(warnings[0], ErrOperationFailed) {
		t.Fatalf("warnings = %v, want ErrOperationFailed", warnings)
	}
	if MessageKey(warnings[0]) != KeyResponse {
		t.Errorf("MessageKey = %q, want %q", MessageKey(warnings[0]), KeyResponse)
	}
	if api.DetailsCalls() != 1 {
		t.Errorf("resync calls = %d, want 1", api.DetailsCalls())
	}
	assertIdle(t, d.Monitor())
}

func TestDeviceCapabilityRollbackOnRejection(t *testing.T) {
	api := NewMockAPI(StateUnlocked)
	d, proj := newTestDevice(t, connected("lock-1", StateUnlocked), api)
	d.Monitor().Run(context.Background(), "op-9")
	applied := len(proj.Applied())

	if err := d.OnLockedCapability(context.Background(), true); !errors.Is(err, ErrInUse) {
		t.Fatalf("err = %v, want ErrInUse", err)
	}
	got := proj.Applied()
	if len(got) != applied+1 || got[len(got)-1].Locked {
		t.Errorf("projection not restored to unlocked: %+v", got)
	}
}

func TestDeviceSyncMirrorsSettings(t *testing.T) {
	api := NewMockAPI(StateLocked)
	d, proj := newTestDevice(t, connected("lock-1", StateLocked), api)

	updated := connected("lock-1", StateLocked)
	updated.PullSpringEnabled = true
	api.details = []Details{updated}

	if err := d.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() = %v", err)
	}
	if !d.PullSpringEnabled() {
		t.Error("pull spring setting not mirrored")
	}
	if n := len(proj.supported); n != 2 || !proj.supported[1] {
		t.Errorf("open capability presence = %v, want [false true]", proj.supported)
	}
}

func TestDeviceRemoveStopsProjection(t *testing.T) {
	api := NewMockAPI(StateUnlocked)
	api.QueueOperations(succeeded())
	api.QueueStates("lock-1", StateLocking)
	d, proj := newTestDevice(t, connected("lock-1", StateUnlocked), api)
	ctx := context.Background()

	if err := d.Lock(ctx); err != nil {
		t.Fatalf("Lock() = %v", err)
	}
	applied := len(proj.Applied())

	d.Remove()
	assertIdle(t, d.Monitor())

	if d.Monitor().tick(ctx) {
		t.Error("tick() after Remove = true")
	}
	if got := len(proj.Applied()); got != applied {
		t.Errorf("projections after removal = %d, want %d", got, applied)
	}
	if err := d.Lock(ctx); !errors.Is(err, ErrDeviceRemoved) {
		t.Errorf("Lock() after Remove = %v, want ErrDeviceRemoved", err)
	}
	if err := d.Sync(ctx); !errors.Is(err, ErrDeviceRemoved) {
		t.Errorf("Sync() after Remove = %v, want ErrDeviceRemoved", err)
	}
}

func TestDeviceReportsCycleOutcomes(t *testing.T) {
	api := NewMockAPI(StateUnlocked)
	api.QueueOperations(succeeded())
	api.QueueStates("lock-1", StateLocked)

	var outcomes []error
	d := NewDevice(context.Background(), connected("lock-1", StateUnlocked), api, &MockProjector{}, DeviceOptions{
		Monitor:   MonitorOptions{Interval: parkedInterval},
		OnOutcome: func(_ string, err error) { outcomes = append(outcomes, err) },
	})
	t.Cleanup(d.Remove)
	ctx := context.Background()

	if err := d.Lock(ctx); err != nil {
		t.Fatalf("Lock() = %v", err)
	}
	for d.Monitor().tick(ctx) {
	}

	api.mu.Lock()
	api.state = StateLocked
	api.mu.Unlock()
	api.QueueOperations(Operation{Status: OperationCompleted, Result: 1})
	if err := d.Unlock(ctx); err != nil {
		t.Fatalf("Unlock() = %v", err)
	}
	for d.Monitor().tick(ctx) {
	}

	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %v, want 2", outcomes)
	}
	if outcomes[0] != nil {
		t.Errorf("first outcome = %v, want nil (settled)", outcomes[0])
	}
	if !errors.Is(outcomes[1], ErrOperationFailed) {
		t.Errorf("second outcome = %v, want ErrOperationFailed", outcomes[1])
	}
}
