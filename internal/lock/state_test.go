package lock

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		id      int
		want    State
		wantErr bool
	}{
		{0, StateUncalibrated, false},
		{2, StateUnlocked, false},
		{3, StateSemiLocked, false},
		{6, StateLocked, false},
		{8, StatePulling, false},
		{18, StateUpdating, false},
		{10, StateUnknown, true},
		{-1, StateUnknown, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("id %d", tt.id), func(t *testing.T) {
			got, err := ParseState(tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownState) {
					t.Fatalf("err = %v, want ErrUnknownState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseState(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestStateClassification(t *testing.T) {
	tests := []struct {
		state    State
		settling bool
		blocking bool
		locked   bool
	}{
		{StateUncalibrated, false, true, false},
		{StateCalibrating, false, true, false},
		{StateUnlocked, false, false, false},
		{StateSemiLocked, false, false, false},
		{StateUnlocking, true, false, false},
		{StateLocking, true, false, false},
		{StateLocked, false, false, true},
		{StatePulled, true, false, false},
		{StatePulling, true, false, false},
		{StateUnknown, false, true, false},
		{StateUpdating, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsSettling(); got != tt.settling {
				t.Errorf("IsSettling() = %v, want %v", got, tt.settling)
			}
			if got := tt.state.IsBlocking(); got != tt.blocking {
				t.Errorf("IsBlocking() = %v, want %v", got, tt.blocking)
			}
			if got := tt.state.Locked(); got != tt.locked {
				t.Errorf("Locked() = %v, want %v", got, tt.locked)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if got := StateSemiLocked.String(); got != "SemiLocked" {
		t.Errorf("String() = %q", got)
	}
	if got := State(42).String(); got != "State(42)" {
		t.Errorf("String() for unknown id = %q", got)
	}
}

func TestUnlockModeValid(t *testing.T) {
	for _, m := range []UnlockMode{UnlockDefault, UnlockForce, UnlockNoAutoPullSpring, UnlockOrPullSpring} {
		if !m.Valid() {
			t.Errorf("%d.Valid() = false", m)
		}
	}
	if UnlockMode(4).Valid() || UnlockMode(-1).Valid() {
		t.Error("out-of-range mode reported valid")
	}
}

func TestProject(t *testing.T) {
	battery := 42
	charging := true
	p := Project(Properties{State: StateLocked, BatteryLevel: &battery, IsCharging: &charging})

	if !p.Locked {
		t.Error("Locked = false, want true")
	}
	if p.BatteryLevel == nil || *p.BatteryLevel != 42 {
		t.Errorf("BatteryLevel = %v", p.BatteryLevel)
	}
	if p.Charging == nil || !*p.Charging {
		t.Errorf("Charging = %v", p.Charging)
	}

	if got := Project(Properties{State: StateSemiLocked}); got.Locked || got.BatteryLevel != nil {
		t.Errorf("Project(SemiLocked) = %+v", got)
	}
}

func TestMessageKey(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNotAvailable, "state.notAvailable"},
		{ErrDeviceRemoved, "state.notAvailable"},
		{ErrInUse, "state.inUse"},
		{fmt.Errorf("fetching: %w", ErrUnknownState), "state.unknown"},
		{ErrNotReadyToLock, "errors.notReadyToLock"},
		{ErrNotReadyToUnlock, "errors.notReadyToUnlock"},
		{ErrFirstUnlock, "errors.firstUnLock"},
		{ErrPullSpringDisabled, "errors.pullSpringDisabled"},
		{ErrResponse, "errors.response"},
		{ErrOperationFailed, "errors.response"},
		{ErrTooManyTries, "errors.response"},
		{errors.New("boom"), "errors.response"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := MessageKey(tt.err); got != tt.want {
				t.Errorf("MessageKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
