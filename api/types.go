package api

import "github.com/MrEthical07/goAuthClient/session"

// AuthResult is the outcome of register or login. Session is set only when
// Success is true and the server returned a complete token payload.
type AuthResult struct {
	Success bool
	Message string
	Session *session.Session
}

// RefreshResult is the outcome of a refresh call. NewAccessToken is set only
// when Success is true.
type RefreshResult struct {
	Success        bool
	NewAccessToken string
}

// ProfileResult is the body of a successful profile call.
type ProfileResult struct {
	Message string
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userPayload struct {
	Username string `json:"username"`
}

type authResponse struct {
	Message      string      `json:"message"`
	User         userPayload `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
