// Package session provides durable persistence for the client's credential set
// (username, access token, refresh token) and the compact binary encoding used
// by the file-backed store.
//
// # Stores
//
//   - [FileStore]: versioned binary blob, replaced atomically via rename.
//   - [RedisStore]: one hash per client instance, written in a single MULTI/EXEC.
//   - [SQLiteStore]: one row per client instance, written by an UPSERT in a transaction.
//   - [MemoryStore]: process-local, for tests and ephemeral embedding.
//
// Every store satisfies [Store]: Load returns (nil, nil) when nothing is
// persisted, Clear is idempotent, and writes are all-or-nothing. A partially
// populated credential set is never returned; it is reported as absent.
//
// # Architecture boundaries
//
// This package owns the [Session] model and its storage. It does NOT decide when
// a session is created, refreshed or discarded; that belongs to the Engine.
//
// # What this package must NOT do
//
//   - Import goAuthClient, api, or guard (no upward imports).
//   - Perform network calls other than to its own storage backend.
//   - Log token values.
package session
