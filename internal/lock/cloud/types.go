package cloud

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// envelope wraps every response body.
type envelope struct {
	Result        json.RawMessage `json:"result"`
	Success       bool            `json:"success"`
	ErrorMessages []string        `json:"errorMessages"`
	StatusCode    int             `json:"statusCode"`
}

type commandRequest struct {
	DeviceID      int  `json:"deviceId"`
	OpenParameter *int `json:"openParameter,omitempty"`
}

type commandResult struct {
	OperationID          string `json:"operationId"`
	LastStateChangedDate string `json:"lastStateChangedDate,omitempty"`
}

type operationResult struct {
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
	Result      *int   `json:"result"`
	Type        string `json:"type"`
}

func (r operationResult) toOperation(id string) lock.Operation {
	op := lock.Operation{
		ID:     id,
		Type:   lock.OperationType(r.Type),
		Status: lock.OperationStatus(r.Status),
		Result: lock.ResultNone,
	}
	if r.Result != nil {
		op.Result = *r.Result
	}
	return op
}

type lockProperties struct {
	State        *int  `json:"state"`
	BatteryLevel *int  `json:"batteryLevel"`
	IsCharging   *bool `json:"isCharging"`
}

// toProperties rejects absent and unrecognised state ids.
func (p *lockProperties) toProperties() (lock.Properties, error) {
	if p == nil || p.State == nil {
		return lock.Properties{}, fmt.Errorf("%w: state missing", lock.ErrUnknownState)
	}
	s, err := lock.ParseState(*p.State)
	if err != nil {
		return lock.Properties{}, err
	}
	return lock.Properties{
		State:        s,
		BatteryLevel: p.BatteryLevel,
		IsCharging:   p.IsCharging,
	}, nil
}

type syncResult struct {
	ID             int             `json:"id"`
	IsConnected    bool            `json:"isConnected"`
	LockProperties *lockProperties `json:"lockProperties"`
}

type deviceSettings struct {
	PullSpringEnabled bool `json:"pullSpringEnabled"`
	AutoLockEnabled   bool `json:"autoLockEnabled"`
}

type lockResult struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	SerialNumber   string          `json:"serialNumber"`
	IsConnected    bool            `json:"isConnected"`
	LockProperties *lockProperties `json:"lockProperties"`
	DeviceSettings deviceSettings  `json:"deviceSettings"`
}

func (r lockResult) toDetails() (lock.Details, error) {
	props, err := r.LockProperties.toProperties()
	if err != nil {
		return lock.Details{}, err
	}
	return lock.Details{
		ID:                strconv.Itoa(r.ID),
		Name:              r.Name,
		Serial:            r.SerialNumber,
		IsConnected:       r.IsConnected,
		Properties:        props,
		PullSpringEnabled: r.DeviceSettings.PullSpringEnabled,
	}, nil
}

// parseDeviceID converts a device id to the numeric form used in request bodies.
func parseDeviceID(deviceID string) (int, error) {
	id, err := strconv.Atoi(deviceID)
	if err != nil {
		return 0, fmt.Errorf("cloud: invalid device id %q", deviceID)
	}
	return id, nil
}
