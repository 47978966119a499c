package goAuthClient

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigOnlyInfo(t *testing.T) {
	cfg := defaultConfig()
	ws := cfg.Lint()

	if containsCode(ws.Codes(), "store_not_durable") {
		t.Error("default store is durable and must not be reported")
	}
	if len(ws.BySeverity(LintWarn)) != 0 {
		t.Errorf("default config should only produce INFO findings, got %v", ws.Codes())
	}
}

func TestLint_MemoryStoreWarns(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Driver = StoreMemory
	ws := cfg.Lint()

	found := false
	for _, w := range ws.BySeverity(LintWarn) {
		if w.Code == "store_not_durable" {
			found = true
		}
	}
	if !found {
		t.Errorf("memory store should produce a WARN store_not_durable, got %v", ws.Codes())
	}
}

func TestLint_InsecureBaseURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://auth.example.com", true},
		{"http://10.0.0.4:8080", true},
		{"https://auth.example.com", false},
		{"http://localhost:8080", false},
		{"http://127.0.0.1:8080", false},
		{"http://[::1]:8080", false},
	}
	for _, tt := range tests {
		cfg := defaultConfig()
		cfg.API.BaseURL = tt.url
		if got := containsCode(cfg.Lint().Codes(), "insecure_base_url"); got != tt.want {
			t.Errorf("%s: insecure_base_url=%v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestLint_RedisWithoutTTL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Store.Driver = StoreRedis
	cfg.Store.RedisAddr = "localhost:6379"
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "redis_no_ttl") {
		t.Error("expected redis_no_ttl warning")
	}
	if containsCode(codes, "store_not_durable") {
		t.Error("redis is durable")
	}

	cfg.Store.RedisTTL = 30 * 24 * time.Hour
	if containsCode(cfg.Lint().Codes(), "redis_no_ttl") {
		t.Error("unexpected redis_no_ttl with a TTL set")
	}
}

func TestLint_RefreshTimeoutShorterThanRequest(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.RefreshTimeout = 5 * time.Second
	if !containsCode(cfg.Lint().Codes(), "refresh_timeout_short") {
		t.Error("expected refresh_timeout_short warning")
	}
}

func TestLint_LargePreemptiveSkew(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.PreemptiveRefreshSkew = 10 * time.Minute
	if !containsCode(cfg.Lint().Codes(), "preemptive_skew_large") {
		t.Error("expected preemptive_skew_large warning")
	}
}

func TestLint_BlockingAudit(t *testing.T) {
	cfg := defaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	if !containsCode(cfg.Lint().Codes(), "audit_blocking") {
		t.Error("expected audit_blocking warning")
	}
}

func TestLint_SeverityAssignment(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.BaseURL = "http://auth.example.com"
	for _, w := range cfg.Lint() {
		if w.Code == "insecure_base_url" && w.Severity != LintHigh {
			t.Errorf("insecure_base_url should be HIGH, got %s", w.Severity)
		}
	}
}

func TestLint_AsError(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("default config should not fail AsError(LintHigh): %v", err)
	}

	cfg.API.BaseURL = "http://auth.example.com"
	if err := cfg.Lint().AsError(LintHigh); err == nil {
		t.Error("expected AsError(LintHigh) to return error for plain http")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := defaultConfig()
	cfg.API.BaseURL = "http://auth.example.com"
	cfg.Session.PreemptiveRefreshSkew = 10 * time.Minute
	ws := cfg.Lint()

	high := ws.BySeverity(LintHigh)
	if len(high) != 1 {
		t.Fatalf("expected one HIGH warning, got %d", len(high))
	}
	if got := len(ws.BySeverity(LintWarn)); got != 2 {
		t.Errorf("expected HIGH and WARN findings at LintWarn, got %d", got)
	}
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
