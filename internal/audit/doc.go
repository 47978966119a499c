// Package audit relays session lifecycle events (login, register, refresh,
// logout, forced expiry, restore) to a caller-supplied sink without blocking
// the Engine.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay, drop-if-full or block-if-full.
//   - [Event]: record with id, type, username, request id and state change.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goAuthClient or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
