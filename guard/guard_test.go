package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/apitest"
	"github.com/MrEthical07/goAuthClient/session"
)

type fixedState struct {
	state goAuthClient.State
	err   error
	calls atomic.Int64
}

func (f *fixedState) AwaitState(context.Context) (goAuthClient.State, error) {
	f.calls.Add(1)
	return f.state, f.err
}

func TestEnter(t *testing.T) {
	tests := []struct {
		name       string
		state      goAuthClient.State
		err        error
		view       View
		wantAction Action
		wantTarget View
	}{
		{"home anonymous", goAuthClient.StateAnonymous, nil, ViewHome, Render, ViewHome},
		{"home authenticated", goAuthClient.StateAuthenticated, nil, ViewHome, Redirect, ViewDashboard},
		{"dashboard authenticated", goAuthClient.StateAuthenticated, nil, ViewDashboard, Render, ViewDashboard},
		{"dashboard anonymous", goAuthClient.StateAnonymous, nil, ViewDashboard, Redirect, ViewHome},
		{"dashboard expired", goAuthClient.StateExpired, nil, ViewDashboard, Redirect, ViewHome},
		{"dashboard wait cancelled", goAuthClient.StateRefreshing, context.Canceled, ViewDashboard, Redirect, ViewHome},
		{"home wait cancelled", goAuthClient.StateRefreshing, context.Canceled, ViewHome, Render, ViewHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(&fixedState{state: tt.state, err: tt.err})
			d := g.Enter(context.Background(), tt.view)
			if d.Action != tt.wantAction || d.Target != tt.wantTarget {
				t.Fatalf("expected %v %v, got %+v", tt.wantAction, tt.wantTarget, d)
			}
		})
	}
}

func TestEnterIsNeverCached(t *testing.T) {
	src := &fixedState{state: goAuthClient.StateAuthenticated}
	g := New(src)

	if d := g.Enter(context.Background(), ViewDashboard); d.Action != Render {
		t.Fatalf("expected render, got %+v", d)
	}
	src.state = goAuthClient.StateAnonymous
	if d := g.Enter(context.Background(), ViewDashboard); d.Action != Redirect {
		t.Fatalf("expected redirect after state change, got %+v", d)
	}
	if src.calls.Load() != 2 {
		t.Fatalf("expected one state read per entry, got %d", src.calls.Load())
	}
}

func TestNilGuardTreatsUserAsAnonymous(t *testing.T) {
	var g *Guard
	if d := g.Enter(context.Background(), ViewDashboard); d.Action != Redirect || d.Target != ViewHome {
		t.Fatalf("expected redirect home, got %+v", d)
	}
}

func TestMiddleware(t *testing.T) {
	src := &fixedState{state: goAuthClient.StateAnonymous}
	g := New(src)
	routes := Routes{Home: "/login", Dashboard: "/app"}

	var seen Decision
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = DecisionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	dashboard := Middleware(g, ViewDashboard, routes)(ok)
	home := Middleware(g, ViewHome, routes)(ok)

	rec := httptest.NewRecorder()
	dashboard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected 303 to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	src.state = goAuthClient.StateAuthenticated
	rec = httptest.NewRecorder()
	home.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/app" {
		t.Fatalf("expected 303 to /app, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	dashboard.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen.Action != Render || seen.State != goAuthClient.StateAuthenticated {
		t.Fatalf("decision not stored in context: %+v", seen)
	}
}

func TestRoutesDefaults(t *testing.T) {
	var r Routes
	if r.path(ViewHome) != "/" || r.path(ViewDashboard) != "/dashboard" {
		t.Fatalf("unexpected defaults %q %q", r.path(ViewHome), r.path(ViewDashboard))
	}
}

func newEngine(t *testing.T, srv *apitest.Server) *goAuthClient.Engine {
	t.Helper()
	cfg := goAuthClient.DefaultConfig()
	cfg.API.BaseURL = srv.URL()
	cfg.Session.RefreshTimeout = 2 * time.Second

	engine, err := goAuthClient.New().
		WithConfig(cfg).
		WithStore(session.NewMemoryStore()).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestGuardWithEngine(t *testing.T) {
	srv := apitest.New(apitest.Options{})
	defer srv.Close()
	srv.AddUser("alice", "pw-alice")

	engine := newEngine(t, srv)
	g := New(engine)

	if d := g.Enter(context.Background(), ViewDashboard); d.Action != Redirect {
		t.Fatalf("anonymous user must be sent home, got %+v", d)
	}
	if _, err := engine.Login(context.Background(), "alice", "pw-alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if d := g.Enter(context.Background(), ViewHome); d.Action != Redirect || d.Target != ViewDashboard {
		t.Fatalf("authenticated user must be sent to the dashboard, got %+v", d)
	}

	// A rejected refresh ends the session; the next dashboard entry goes home.
	srv.ExpireAccessTokens()
	srv.RejectRefresh(true)
	if _, err := engine.FetchProfile(context.Background()); err == nil {
		t.Fatalf("expected session expiry")
	}
	if d := g.Enter(context.Background(), ViewDashboard); d.Action != Redirect || d.Target != ViewHome {
		t.Fatalf("expired session must be sent home, got %+v", d)
	}
}

func TestGuardAwaitsRefresh(t *testing.T) {
	srv := apitest.New(apitest.Options{})
	defer srv.Close()
	srv.AddUser("alice", "pw-alice")

	engine := newEngine(t, srv)
	if _, err := engine.Login(context.Background(), "alice", "pw-alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	srv.ExpireAccessTokens()
	release := srv.HoldRefresh()

	go func() { _, _ = engine.FetchProfile(context.Background()) }()
	deadline := time.Now().Add(2 * time.Second)
	for engine.State() != goAuthClient.StateRefreshing {
		if time.Now().After(deadline) {
			t.Fatalf("refresh did not start")
		}
		time.Sleep(2 * time.Millisecond)
	}

	decided := make(chan Decision, 1)
	go func() { decided <- New(engine).Enter(context.Background(), ViewDashboard) }()

	select {
	case d := <-decided:
		t.Fatalf("decided before the refresh settled: %+v", d)
	case <-time.After(30 * time.Millisecond):
	}

	release()
	d := <-decided
	if d.Action != Render || d.State != goAuthClient.StateAuthenticated {
		t.Fatalf("expected render after refresh, got %+v", d)
	}
}
