// Package jwt reads and issues the HS256/Ed25519 tokens exchanged with the
// authentication API.
//
// The client never holds a verification key, so [Inspect] decodes claims
// without checking the signature; its result is advisory (expiry hints for
// preemptive refresh and status display) and must never gate authorization.
// [Manager] signs and verifies tokens and exists for servers and test doubles.
package jwt
