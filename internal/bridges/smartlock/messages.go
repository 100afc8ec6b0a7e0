package smartlock

import (
	"time"

	"github.com/nerrad567/gray-logic-locks/internal/lock"
)

// Capability names accepted on the command topic.
const (
	CapabilityLocked = "locked"
	CapabilityOpen   = "open"
)

// Event types published on graylogic/core/event/{type} and pushed to
// WebSocket clients.
const (
	EventStateChanged = "lock.state_changed"
	EventOpened       = "lock.opened"
	EventWarning      = "lock.warning"
	EventRemoved      = "lock.removed"

	// coreEventOpened is the MQTT core event name of the opened trigger.
	coreEventOpened  = "lock_opened"
	coreEventWarning = "lock_warning"
)

// CommandMessage is received on graylogic/command/lock/{id}.
type CommandMessage struct {
	// ID correlates the command with its AckMessage. Generated when empty.
	ID         string    `json:"id,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	Capability string    `json:"capability"`
	Value      bool      `json:"value"`
	Source     string    `json:"source,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

const (
	// AckAccepted means the command was issued and a Monitor cycle started,
	// or the lock already was in the requested state.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command was rejected or could not be issued.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on graylogic/ack/lock/{id}.
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError carries the localization key and the translated message.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateMessage is the retained capability view on graylogic/state/lock/{id}.
type StateMessage struct {
	DeviceID      string    `json:"device_id"`
	Timestamp     time.Time `json:"timestamp"`
	Available     bool      `json:"available"`
	ReasonKey     string    `json:"reason_key,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	State         string    `json:"state,omitempty"`
	Locked        bool      `json:"locked"`
	BatteryLevel  *int      `json:"battery_level,omitempty"`
	Charging      *bool     `json:"charging,omitempty"`
	Open          bool      `json:"open"`
	OpenSupported bool      `json:"open_supported"`
}

// EventMessage is a one-shot notification.
type EventMessage struct {
	Type      string    `json:"type"`
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	Key       string    `json:"key,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// DiscoveryMessage lists the locks owned by the bridge.
type DiscoveryMessage struct {
	Timestamp time.Time  `json:"timestamp"`
	Locks     []LockInfo `json:"locks"`
}

// LockInfo describes one discovered lock.
type LockInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Serial        string `json:"serial,omitempty"`
	OpenSupported bool   `json:"open_supported"`
}

func newLockInfo(d lock.Details) LockInfo {
	return LockInfo{ID: d.ID, Name: d.Name, Serial: d.Serial, OpenSupported: d.PullSpringEnabled}
}

// HealthStatus is the bridge health state.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on graylogic/health/lock.
type HealthMessage struct {
	Status    HealthStatus `json:"status"`
	Version   string       `json:"version,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	UptimeSec int64        `json:"uptime_s"`
	Reason    string       `json:"reason,omitempty"`
	Locks     LockCounts   `json:"locks"`
}

// LockCounts summarises the owned locks.
type LockCounts struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Busy      int `json:"busy"`
}
