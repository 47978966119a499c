package goAuthClient

import (
	"errors"

	"github.com/MrEthical07/goAuthClient/api"
	"github.com/MrEthical07/goAuthClient/session"
)

var (
	// ErrValidation: the server rejected register/login input. The server's
	// message is in the returned AuthResult and in *api.ValidationError.
	ErrValidation = api.ErrValidation
	// ErrNetwork: the request produced no HTTP response.
	ErrNetwork = api.ErrNetwork
	// ErrUnauthorized: a protected call was still rejected after one refresh
	// and one retry.
	ErrUnauthorized = api.ErrUnauthorized
	// ErrRefreshRejected: the refresh endpoint did not issue a token.
	ErrRefreshRejected = api.ErrRefreshRejected
	// ErrMalformedResponse: a 2xx body lacked a required field.
	ErrMalformedResponse = api.ErrMalformedResponse

	// ErrStoreUnavailable: the credential store could not be read or written.
	ErrStoreUnavailable = session.ErrStoreUnavailable
	// ErrSessionCorrupt: persisted credentials could not be decoded.
	ErrSessionCorrupt = session.ErrSessionCorrupt

	// ErrNotAuthenticated is returned by protected calls in StateAnonymous.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned when the refresh token was rejected and the
	// session was torn down.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionEnded is returned when the session was logged out (or replaced)
	// while the operation was in flight.
	ErrSessionEnded = errors.New("session ended")
	// ErrCredentialsRequired is returned for an empty username or password.
	ErrCredentialsRequired = errors.New("username and password are required")
	// ErrEngineNotReady is returned by a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// UserMessage maps an Engine error to the text a login form or dashboard
// shows. Server validation messages are returned verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *api.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrNetwork):
		return MessageNetworkFailure
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNotAuthenticated):
		return MessageSessionExpired
	case errors.Is(err, ErrCredentialsRequired):
		return "Please enter a username and password."
	default:
		return "Something went wrong. Please try again."
	}
}
