// Package api is the HTTP client for the remote authentication API: register,
// login, refresh, profile and (optionally) logout.
//
// # Error taxonomy
//
//   - [*ValidationError] (errors.Is [ErrValidation]): the server rejected
//     register/login input; Message is the server's text, verbatim.
//   - [*NetworkError] (errors.Is [ErrNetwork]): the request never produced an
//     HTTP response: transport failure, timeout, or cancellation.
//   - [ErrUnauthorized]: a protected call was answered with HTTP 401.
//   - [ErrRefreshRejected]: the refresh endpoint did not issue a new access token.
//   - [*StatusError]: any other non-2xx answer to a protected call.
//
// # Architecture boundaries
//
// This package translates Engine operations into HTTP requests and normalises
// the responses. It does NOT persist credentials or track session state; that
// belongs to the Engine and the session package.
//
// # What this package must NOT do
//
//   - Import goAuthClient or guard.
//   - Retry requests.
//   - Log passwords or token values.
package api
