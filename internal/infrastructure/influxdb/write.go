package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the lock bridge.
const (
	MeasurementLockState   = "lock_state"
	MeasurementLockEvent   = "lock_event"
	MeasurementLockCommand = "lock_command"
)

// WriteLockState records one capability projection of a lock.
//
// battery and charging are optional; nil values are not written.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteLockState("12345", "Locked", true, &battery, nil)
func (c *Client) WriteLockState(deviceID, state string, locked bool, battery *int, charging *bool) {
	fields := map[string]interface{}{
		"state":  state,
		"locked": locked,
	}
	if battery != nil {
		fields["battery_level"] = *battery
	}
	if charging != nil {
		fields["charging"] = *charging
	}
	c.writePoint(MeasurementLockState, map[string]string{"device_id": deviceID}, fields, time.Now())
}

// WriteLockEvent records a one-shot event such as "opened" or a
// background warning identified by its message key.
func (c *Client) WriteLockEvent(deviceID, event, detail string) {
	fields := map[string]interface{}{"count": 1}
	if detail != "" {
		fields["detail"] = detail
	}
	c.writePoint(MeasurementLockEvent, map[string]string{
		"device_id": deviceID,
		"event":     event,
	}, fields, time.Now())
}

// WriteLockCommand records a command request and its outcome
// ("issued", "rejected" or "error").
func (c *Client) WriteLockCommand(deviceID, command, outcome string) {
	c.writePoint(MeasurementLockCommand, map[string]string{
		"device_id": deviceID,
		"command":   command,
		"outcome":   outcome,
	}, map[string]interface{}{"count": 1}, time.Now())
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if c == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
