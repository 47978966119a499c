// Package guard decides, on every view entry, whether the view may render or
// the user must be redirected, based on the Engine's authentication state.
//
// # Views
//
//   - [ViewHome]: the login/register view. Authenticated users are sent to the
//     dashboard.
//   - [ViewDashboard]: the protected view. Anyone not authenticated is sent
//     home.
//
// A refresh in flight is awaited before deciding, so a user is never bounced
// off the dashboard by a token that is about to be replaced.
//
// # Architecture boundaries
//
// This package translates state into navigation. It does NOT compute session
// state itself; all state comes from [StateSource] (normally *goAuthClient.Engine).
//
// # What this package must NOT do
//
//   - Cache decisions: every entry re-reads the state.
//   - Call the authentication API or touch the credential store.
package guard
