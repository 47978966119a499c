package api

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrValidation matches every [*ValidationError].
	ErrValidation = errors.New("validation rejected")
	// ErrNetwork matches every [*NetworkError].
	ErrNetwork = errors.New("cannot reach server")
	// ErrUnauthorized is returned when a protected call receives HTTP 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshRejected is returned when the refresh endpoint does not issue a
	// new access token.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrMalformedResponse is returned when a 2xx body lacks a required field.
	ErrMalformedResponse = errors.New("malformed response")
)

// ValidationError carries a server-side rejection of register or login input.
type ValidationError struct {
	Op      string
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("api: %s rejected (%d): %s", e.Op, e.Status, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NetworkError reports a request that produced no HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: %s: %v: %v", e.Op, ErrNetwork, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Timeout reports whether the failure was a request timeout.
func (e *NetworkError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// StatusError reports an unexpected non-2xx answer to a protected call.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s failed (%d): %s", e.Op, e.Status, e.Message)
}
