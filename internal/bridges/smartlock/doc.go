// Package smartlock bridges cloud-connected smart locks into the Gray Logic
// hub.
//
// The bridge owns one lock.Device per lock on the account. Commands arrive
// on MQTT or through the REST API, are checked and issued by the Device,
// and followed up by its Monitor. Everything the hub should show leaves
// through the Projector.
//
//	┌──────────────┐ command/lock/+ ┌──────────────┐  HTTPS  ┌──────────────┐
//	│  Hub / Core  │──────────────►│    Bridge    │────────►│ Lock service │
//	│              │◄──────────────│ Device+Mon.  │◄────────│              │
//	└──────────────┘ state/ack/evt └──────────────┘  polls  └──────────────┘
//
// # Topics
//
//   - graylogic/command/lock/{id}: {"id","capability":"locked"|"open","value":bool}
//   - graylogic/ack/lock/{id}: accepted, or failed with a localization key
//   - graylogic/state/lock/{id}: retained capability view (StateMessage)
//   - graylogic/core/event/lock_opened: one-shot opened trigger
//   - graylogic/health/lock: retained bridge health
//
// # Background work
//
// Every ResyncInterval the bridge re-runs discovery, attaching new locks and
// detaching vanished ones, then re-reads locks whose Monitor is idle.
// Monitor outcomes and commands are appended to the audit trail.
package smartlock
