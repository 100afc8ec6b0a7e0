package mqtt

import (
	"fmt"
	"strings"
)

// Topic scheme for the lock bridge. Bridge topics use the flat Gray Logic
// layout graylogic/{category}/{protocol}/{device_id}.
const (
	// TopicPrefix is the root of every topic.
	TopicPrefix = "graylogic"

	// Protocol is the protocol segment used by the lock bridge.
	Protocol = "lock"

	// TopicPrefixCore is the base for core event topics.
	TopicPrefixCore = TopicPrefix + "/core"
)

// Topics provides builders for lock bridge topics.
//
//	topics := mqtt.Topics{}
//	topics.LockState("12345")
//	// Returns: "graylogic/state/lock/12345"
type Topics struct{}

// LockState returns the retained state topic of one lock.
//
// Example: graylogic/state/lock/12345
func (Topics) LockState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, deviceID)
}

// LockCommand returns the command topic of one lock.
//
// Example: graylogic/command/lock/12345
func (Topics) LockCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, deviceID)
}

// LockAck returns the command acknowledgement topic of one lock.
//
// Example: graylogic/ack/lock/12345
func (Topics) LockAck(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, deviceID)
}

// BridgeHealth returns the retained health topic. It doubles as the Last
// Will topic.
//
// Example: graylogic/health/lock
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// BridgeDiscovery returns the topic announcing discovered locks.
//
// Example: graylogic/discovery/lock
func (Topics) BridgeDiscovery() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, Protocol)
}

// CoreEvent returns the topic for bridge events such as lock_opened.
//
// Example: graylogic/core/event/lock_opened
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// AllLockCommands returns a pattern matching every lock command.
//
// Pattern: graylogic/command/lock/+
func (Topics) AllLockCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// AllLockStates returns a pattern matching every lock state.
//
// Pattern: graylogic/state/lock/+
func (Topics) AllLockStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}

// DeviceID extracts the device id from a per-lock topic of the given
// category ("state", "command" or "ack").
func (Topics) DeviceID(category, topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/%s/", TopicPrefix, category, Protocol)
	id, ok := strings.CutPrefix(topic, prefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
