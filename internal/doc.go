// Package internal groups the helpers that are private to goAuthClient.
//
// # Sub-packages
//
//   - apitest: in-process fake of the authentication API for tests and demos
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - logging: slog logger construction from config
//   - metrics: lock-free counters and the request latency histogram
//
// # What this package must NOT do
//
//   - Export types that appear in the public goAuthClient API other than
//     through root aliases.
//   - Be imported by any package outside the goAuthClient module.
package internal
