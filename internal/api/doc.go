// Package api implements the HTTP REST API and WebSocket server for the
// lock bridge.
//
// This package provides:
//   - REST endpoints to list locks and issue lock, unlock, open and sync
//   - Paginated access to the command audit trail
//   - WebSocket hub pushing lock state changes, opened triggers and warnings
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Prometheus exposition on /metrics and a JSON system summary
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Errors
//
// Command failures carry the lock's localisation key and the message in the
// caller's language, taken from Accept-Language:
//
//	{"status":409,"code":"conflict","key":"state.inUse","message":"..."}
//
// # Security
//
// Tokens are issued by the hub, not by this server. The server only verifies
// HS256 signatures with the shared secret. WebSocket connections use
// single-use tickets so tokens never appear in URLs.
package api
