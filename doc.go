// Package goAuthClient is a client-side session manager for a token based
// authentication API: it logs in, keeps the access/refresh token pair,
// refreshes transparently on HTTP 401 and tears the session down when the
// refresh token is rejected.
//
// The package is designed for UI and CLI processes that make concurrent API
// calls: Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Lifecycle
//
// The Engine is in one of four states: [StateAnonymous],
// [StateAuthenticated], [StateRefreshing] and, transiently, [StateExpired].
// Build restores a persisted credential set optimistically. Protected calls
// go through [Engine.Authorized]; every caller that hits a 401 during the same
// session shares a single refresh, and the triggering call is retried exactly
// once. [Engine.Logout] always wins: a refresh that completes after it is
// discarded and never written to the store.
//
// # Architecture boundaries
//
// goAuthClient is the public surface. The HTTP protocol lives in api, the
// credential stores in session, navigation decisions in guard. Audit dispatch,
// metrics storage and logger construction live under internal/.
//
// # What this package must NOT do
//
//   - Log or audit token values or passwords.
//   - Navigate: state changes are reported to listeners; redirects happen only
//     when a view is entered through the guard package.
//   - Retry a protected call more than once, or refresh in a loop.
package goAuthClient
