package goAuthClient

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthClient/session"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	srv := newFakeAPI(t)
	sink := &countingSink{}

	cfg := engineTestConfig(srv.URL())
	b := New().WithConfig(cfg).WithStore(session.NewMemoryStore())
	b.auditSink = sink // sink set without enabling audit
	engine, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), testUser, testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_ = engine.Logout(context.Background())
	_ = engine.Close()

	if got := sink.Count(); got != 0 {
		t.Fatalf("expected no sink calls, got %d", got)
	}
	if engine.AuditDropped() != 0 {
		t.Fatalf("expected no drops")
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	srv := newFakeAPI(t)
	var buf syncBuffer

	cfg := engineTestConfig(srv.URL())
	cfg.Audit.DropIfFull = false
	engine, err := New().
		WithConfig(cfg).
		WithStore(session.NewMemoryStore()).
		WithAuditSink(NewJSONWriterSink(&buf)).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), testUser, testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	sess := engine.sess.Clone()

	srv.ExpireAccessTokens()
	if _, err := engine.FetchProfile(context.Background()); err != nil {
		t.Fatalf("profile failed: %v", err)
	}
	engine.mu.Lock()
	refreshed := engine.sess.AccessToken
	engine.mu.Unlock()

	_ = engine.Logout(context.Background())
	_ = engine.Close()

	if !buf.Contains(auditEventRefreshSuccess) {
		t.Fatalf("expected refresh event in audit log")
	}
	for _, needle := range []string{testPassword, sess.AccessToken, sess.RefreshToken, refreshed} {
		if buf.Contains(needle) {
			t.Fatalf("sensitive value leaked in audit log")
		}
	}
}

func TestAuditDropsWhenSinkIsSlow(t *testing.T) {
	srv := newFakeAPI(t)
	gate := make(chan struct{})
	sink := AuditSinkFunc(func(context.Context, AuditEvent) { <-gate })

	cfg := engineTestConfig(srv.URL())
	cfg.Audit.BufferSize = 1
	engine, err := New().
		WithConfig(cfg).
		WithStore(session.NewMemoryStore()).
		WithAuditSink(sink).
		Build(context.Background())
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer func() {
		close(gate)
		_ = engine.Close()
	}()

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, _ = engine.Login(context.Background(), testUser, "wrong")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("a slow sink must not block the engine when DropIfFull is set")
	}
	if engine.AuditDropped() == 0 {
		t.Fatalf("expected dropped events")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
