// Package apitest runs an in-process authentication API with the register,
// login, refresh, profile and logout endpoints, for tests, the CLI demo
// mode and the HTTP example.
//
// Access and refresh tokens are HS256 JWTs with username/exp/iat claims.
// Errors are written with http.Error (plain text) unless JSON errors are
// enabled. Knobs let tests expire access tokens, reject or hold refreshes,
// count calls and drop connections.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goAuthClient/jwt"
)

// Endpoint names accepted by [Server.Calls].
const (
	EndpointRegister = "register"
	EndpointLogin    = "login"
	EndpointRefresh  = "refresh"
	EndpointProfile  = "profile"
	EndpointLogout   = "logout"
)

// Options configures a [Server].
type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RegisterIssuesTokens makes /register answer with the login payload, as
	// the original signup handler does.
	RegisterIssuesTokens bool
}

// Server is a fake authentication API. All methods are safe for concurrent
// use.
type Server struct {
	srv *httptest.Server

	access  *jwt.Manager
	stale   *jwt.Manager
	refresh *jwt.Manager
	opts    Options

	mu     sync.Mutex
	users  map[string]string
	active map[string]struct{}
	gate   chan struct{}

	calls map[string]*atomic.Int64

	rejectRefresh atomic.Bool
	jsonErrors    atomic.Bool
	offline       atomic.Bool
	refreshDelay  atomic.Int64
}

// New starts a server. Call Close when done.
func New(opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 24 * time.Hour
	}

	access, err := jwt.NewManager(jwt.Config{
		TTL:           opts.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("apitest-access-secret"),
	})
	if err != nil {
		panic(fmt.Sprintf("apitest: access manager: %v", err))
	}
	stale, err := jwt.NewManager(jwt.Config{
		TTL:           opts.AccessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("apitest-access-secret"),
	})
	if err != nil {
		panic(fmt.Sprintf("apitest: access manager: %v", err))
	}
	stale.SetClock(func() time.Time { return time.Now().Add(-2 * opts.AccessTTL) })

	refresh, err := jwt.NewManager(jwt.Config{
		TTL:           opts.RefreshTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("apitest-refresh-secret"),
	})
	if err != nil {
		panic(fmt.Sprintf("apitest: refresh manager: %v", err))
	}

	s := &Server{
		access:  access,
		stale:   stale,
		refresh: refresh,
		opts:    opts,
		users:   make(map[string]string),
		active:  make(map[string]struct{}),
		calls:   make(map[string]*atomic.Int64),
	}
	for _, name := range []string{EndpointRegister, EndpointLogin, EndpointRefresh, EndpointProfile, EndpointLogout} {
		s.calls[name] = new(atomic.Int64)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /signup", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /profile", s.handleProfile)
	mux.HandleFunc("POST /logout", s.handleLogout)

	s.srv = httptest.NewServer(s.dropWhenOffline(mux))
	return s
}

// URL is the server's base URL.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// AddUser registers a user directly.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	s.users[username] = password
	s.mu.Unlock()
}

// Calls returns how many requests reached endpoint.
func (s *Server) Calls(endpoint string) int64 {
	c, ok := s.calls[endpoint]
	if !ok {
		return 0
	}
	return c.Load()
}

// ExpireAccessTokens invalidates every access token issued so far. The next
// protected call with one of them gets 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.active = make(map[string]struct{})
	s.mu.Unlock()
}

// IssueExpiredAccess returns a validly signed access token whose exp is in
// the past.
func (s *Server) IssueExpiredAccess(username string) (string, error) {
	return s.stale.Issue(username)
}

// IssueAccess returns a fresh access token accepted by /profile.
func (s *Server) IssueAccess(username string) (string, error) {
	tok, err := s.access.Issue(username)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.active[tok] = struct{}{}
	s.mu.Unlock()
	return tok, nil
}

// IssueRefresh returns a refresh token accepted by /refresh.
func (s *Server) IssueRefresh(username string) (string, error) {
	return s.refresh.Issue(username)
}

// RejectRefresh makes /refresh answer 401 while on is true.
func (s *Server) RejectRefresh(on bool) { s.rejectRefresh.Store(on) }

// SetRefreshDelay delays every /refresh answer by d.
func (s *Server) SetRefreshDelay(d time.Duration) { s.refreshDelay.Store(int64(d)) }

// SetJSONErrors switches error bodies from plain text to {"message": ...}.
func (s *Server) SetJSONErrors(on bool) { s.jsonErrors.Store(on) }

// SetOffline makes the server drop every connection without answering.
func (s *Server) SetOffline(on bool) { s.offline.Store(on) }

// HoldRefresh blocks every /refresh handler until the returned func is
// called. Requests still count in Calls while held.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) dropWhenOffline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.offline.Load() {
			next.ServeHTTP(w, r)
			return
		}
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "offline", http.StatusServiceUnavailable)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.calls[EndpointRegister].Add(1)

	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.Username == "" || body.Password == "" {
		s.fail(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, exists := s.users[body.Username]
	if !exists {
		s.users[body.Username] = body.Password
	}
	s.mu.Unlock()
	if exists {
		s.fail(w, "User already exists", http.StatusConflict)
		return
	}

	if !s.opts.RegisterIssuesTokens {
		writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
		return
	}
	s.writeTokens(w, body.Username, "User created successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.calls[EndpointLogin].Add(1)

	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	stored, ok := s.users[body.Username]
	s.mu.Unlock()
	if !ok || stored != body.Password {
		s.fail(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	s.writeTokens(w, body.Username, "Login successful")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.calls[EndpointRefresh].Add(1)

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.RefreshToken == "" {
		s.fail(w, "Missing refresh token", http.StatusBadRequest)
		return
	}
	if s.rejectRefresh.Load() {
		s.fail(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}
	claims, err := s.refresh.Verify(body.RefreshToken)
	if err != nil {
		s.fail(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	access, err := s.IssueAccess(claims.Username)
	if err != nil {
		s.fail(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         map[string]string{"username": claims.Username},
		"access_token": access,
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.calls[EndpointProfile].Add(1)

	header := r.Header.Get("Authorization")
	if header == "" {
		s.fail(w, "Missing Authorization header", http.StatusUnauthorized)
		return
	}
	tok := strings.TrimPrefix(header, "Bearer ")

	s.mu.Lock()
	_, active := s.active[tok]
	s.mu.Unlock()
	claims, err := s.access.Verify(tok)
	if err != nil || !active {
		s.fail(w, "Invalid or expired token", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome " + claims.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.calls[EndpointLogout].Add(1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) writeTokens(w http.ResponseWriter, username, message string) {
	access, err := s.IssueAccess(username)
	if err != nil {
		s.fail(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	refresh, err := s.IssueRefresh(username)
	if err != nil {
		s.fail(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       message,
		"user":          map[string]string{"username": username},
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *Server) fail(w http.ResponseWriter, msg string, status int) {
	if s.jsonErrors.Load() {
		writeJSON(w, status, map[string]string{"message": msg})
		return
	}
	http.Error(w, msg, status)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
