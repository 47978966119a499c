package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/session"
	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds every request when Config.Timeout is zero.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 1 << 20

	// maxTextMessage caps how much of a plain-text error body is surfaced.
	maxTextMessage = 512

	headerRequestID = "X-Request-ID"
)

// Operation names, used in errors, logs and latency observations.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpRefresh  = "refresh"
	OpProfile  = "profile"
	OpLogout   = "logout"
)

// Endpoints holds the API paths, relative to the base URL.
type Endpoints struct {
	Register string
	Login    string
	Refresh  string
	Profile  string
	Logout   string
}

// DefaultEndpoints returns the standard endpoint layout.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Register: "/register",
		Login:    "/login",
		Refresh:  "/refresh",
		Profile:  "/profile",
		Logout:   "/logout",
	}
}

// Config configures a [Client].
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Endpoints Endpoints

	// HTTPClient overrides the transport. Its Timeout is replaced by Timeout
	// when unset, so every request stays bounded.
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Observe, when set, receives the duration of every request that produced
	// an HTTP response.
	Observe func(op string, d time.Duration)
}

// Client issues requests to the authentication API. It is safe for
// concurrent use.
type Client struct {
	base      *url.URL
	http      *http.Client
	endpoints Endpoints
	userAgent string
	logger    *slog.Logger
	observe   func(op string, d time.Duration)
}

// New validates cfg and returns a [Client].
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("api: base url must be http or https")
	}
	if base.Host == "" {
		return nil, errors.New("api: base url must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var hc http.Client
	if cfg.HTTPClient != nil {
		hc = *cfg.HTTPClient
	}
	if hc.Timeout <= 0 {
		hc.Timeout = timeout
	}

	endpoints := cfg.Endpoints
	defaults := DefaultEndpoints()
	if endpoints.Register == "" {
		endpoints.Register = defaults.Register
	}
	if endpoints.Login == "" {
		endpoints.Login = defaults.Login
	}
	if endpoints.Refresh == "" {
		endpoints.Refresh = defaults.Refresh
	}
	if endpoints.Profile == "" {
		endpoints.Profile = defaults.Profile
	}
	if endpoints.Logout == "" {
		endpoints.Logout = defaults.Logout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		base:      base,
		http:      &hc,
		endpoints: endpoints,
		userAgent: cfg.UserAgent,
		logger:    logger,
		observe:   cfg.Observe,
	}, nil
}

// Register posts credentials to the registration endpoint.
//
// A non-2xx answer yields AuthResult{Success: false, Message: <server text>}
// together with a [*ValidationError]. A 2xx answer that also carries a token
// payload returns it as Session.
func (c *Client) Register(ctx context.Context, username, password string) (AuthResult, error) {
	status, body, err := c.do(ctx, OpRegister, http.MethodPost, c.endpoints.Register, "", credentialsRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	if !isSuccess(status) {
		msg := messageFrom(body, status)
		return AuthResult{Success: false, Message: msg}, &ValidationError{Op: OpRegister, Status: status, Message: msg}
	}

	var resp authResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return AuthResult{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, OpRegister, err)
		}
	}

	result := AuthResult{Success: true, Message: resp.Message}
	if resp.AccessToken != "" && resp.RefreshToken != "" {
		name := resp.User.Username
		if name == "" {
			name = username
		}
		result.Session = &session.Session{
			Username:     name,
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
		}
	}
	return result, nil
}

// Login posts credentials to the login endpoint. A 2xx answer must contain the
// username and both tokens, otherwise [ErrMalformedResponse] is returned.
func (c *Client) Login(ctx context.Context, username, password string) (AuthResult, error) {
	status, body, err := c.do(ctx, OpLogin, http.MethodPost, c.endpoints.Login, "", credentialsRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	if !isSuccess(status) {
		msg := messageFrom(body, status)
		return AuthResult{Success: false, Message: msg}, &ValidationError{Op: OpLogin, Status: status, Message: msg}
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return AuthResult{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, OpLogin, err)
	}
	sess := &session.Session{
		Username:     resp.User.Username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if !sess.Complete() {
		return AuthResult{}, fmt.Errorf("%w: %s: missing user or token pair", ErrMalformedResponse, OpLogin)
	}

	return AuthResult{Success: true, Message: resp.Message, Session: sess}, nil
}

// Refresh exchanges a refresh token for a new access token. Only a 2xx answer
// with a non-empty access_token succeeds; everything else that reached the
// server is reported as [ErrRefreshRejected].
func (c *Client) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	status, body, err := c.do(ctx, OpRefresh, http.MethodPost, c.endpoints.Refresh, "", refreshRequest{
		RefreshToken: refreshToken,
	})
	if err != nil {
		return RefreshResult{}, err
	}
	if !isSuccess(status) {
		return RefreshResult{}, fmt.Errorf("%w: status %d", ErrRefreshRejected, status)
	}

	var resp refreshResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.AccessToken == "" {
		return RefreshResult{}, fmt.Errorf("%w: no access token in response", ErrRefreshRejected)
	}

	return RefreshResult{Success: true, NewAccessToken: resp.AccessToken}, nil
}

// FetchProfile performs the authenticated profile GET. HTTP 401 is reported
// as [ErrUnauthorized] so the caller can refresh; other failures are
// [*StatusError] or [*NetworkError].
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (ProfileResult, error) {
	status, body, err := c.do(ctx, OpProfile, http.MethodGet, c.endpoints.Profile, accessToken, nil)
	if err != nil {
		return ProfileResult{}, err
	}
	if status == http.StatusUnauthorized {
		return ProfileResult{}, fmt.Errorf("%w: %s", ErrUnauthorized, OpProfile)
	}
	if !isSuccess(status) {
		return ProfileResult{}, &StatusError{Op: OpProfile, Status: status, Message: messageFrom(body, status)}
	}

	var resp messageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ProfileResult{}, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, OpProfile, err)
	}
	return ProfileResult{Message: resp.Message}, nil
}

// Logout notifies the server that the session ended. The server side is
// stateless, so callers treat failures as informational.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	status, body, err := c.do(ctx, OpLogout, http.MethodPost, c.endpoints.Logout, accessToken, nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &StatusError{Op: OpLogout, Status: status, Message: messageFrom(body, status)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, bearer string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("api: %s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("api: %s: build request: %w", op, err)
	}

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "api request failed",
			"op", op, "request_id", requestID, "error", err)
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Err: err}
	}

	elapsed := time.Since(start)
	if c.observe != nil {
		c.observe(op, elapsed)
	}
	c.logger.DebugContext(ctx, "api request",
		"op", op, "method", method, "path", path, "status", resp.StatusCode,
		"duration", elapsed, "request_id", requestID)

	return resp.StatusCode, body, nil
}

func (c *Client) resolve(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// messageFrom extracts the user-facing message from an error body: a JSON
// {message} (or {error}) object, else the plain-text body, else the status text.
func messageFrom(body []byte, status int) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var m messageResponse
		if err := json.Unmarshal(trimmed, &m); err == nil {
			if m.Message != "" {
				return m.Message
			}
			if m.Error != "" {
				return m.Error
			}
		}
		return http.StatusText(status)
	}
	if len(trimmed) > 0 && len(trimmed) <= maxTextMessage {
		return string(trimmed)
	}
	return http.StatusText(status)
}
