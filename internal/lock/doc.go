// Package lock implements command handling and transition monitoring for
// cloud-connected smart locks.
//
// The package is the core of the lock bridge. It has no knowledge of MQTT,
// HTTP or storage: the remote lock service is reached through the API
// interface and every user-visible effect goes out through the Projector
// interface. Both are supplied by the caller.
//
// # Components
//
//   - State, OperationType, UnlockMode: the shared lock state model
//   - Monitor: per-device polling state machine that follows a lock after
//     a command until it settles, fails, or exhausts its try ceiling
//   - Device: per-device controller that checks preconditions, submits
//     commands and hands the resulting operation to its Monitor
//
// # Monitor Cycle
//
//	      Run(opID)                 Run("")
//	          │                        │
//	          ▼                        ▼
//	┌───────────────────┐  ok   ┌──────────────────┐  settled
//	│ polling operation │──────▶│  polling state   │─────────▶ idle
//	└───────────────────┘       └──────────────────┘
//	    │ failed / >5 tries          │ error / >6 tries
//	    ▼                            ▼
//	  idle (error reported)        idle (error reported)
//
// A device accepts a new command only while its Monitor is idle.
//
// # Thread Safety
//
// Device and Monitor are safe for concurrent use. Each Monitor runs at most
// one polling goroutine at a time.
package lock
