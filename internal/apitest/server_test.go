package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestLoginRefreshProfile(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	s.AddUser("alice", "pw")

	resp := post(t, s.URL()+"/login", map[string]string{"username": "alice", "password": "pw"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode: %v", err)
	}

	profile := func(tok string) int {
		req, _ := http.NewRequest(http.MethodGet, s.URL()+"/profile", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		r, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("profile: %v", err)
		}
		r.Body.Close()
		return r.StatusCode
	}

	if got := profile(login.AccessToken); got != http.StatusOK {
		t.Fatalf("expected profile 200, got %d", got)
	}
	s.ExpireAccessTokens()
	if got := profile(login.AccessToken); got != http.StatusUnauthorized {
		t.Fatalf("expected profile 401 after expiry, got %d", got)
	}

	rr := post(t, s.URL()+"/refresh", map[string]string{"refresh_token": login.RefreshToken})
	defer rr.Body.Close()
	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&refreshed); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.AccessToken == login.AccessToken {
		t.Fatalf("expected a new access token")
	}
	if got := profile(refreshed.AccessToken); got != http.StatusOK {
		t.Fatalf("expected profile 200 with refreshed token, got %d", got)
	}
	if s.Calls(EndpointProfile) != 3 || s.Calls(EndpointRefresh) != 1 {
		t.Fatalf("unexpected call counts profile=%d refresh=%d", s.Calls(EndpointProfile), s.Calls(EndpointRefresh))
	}
}

func TestPlainTextAndJSONErrors(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	resp := post(t, s.URL()+"/login", map[string]string{"username": "ghost", "password": "x"})
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	resp.Body.Close()
	if strings.TrimSpace(buf.String()) != "Invalid username or password" {
		t.Fatalf("unexpected plain-text body %q", buf.String())
	}

	s.SetJSONErrors(true)
	resp = post(t, s.URL()+"/login", map[string]string{"username": "ghost", "password": "x"})
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["message"] != "Invalid username or password" {
		t.Fatalf("unexpected json body %v", body)
	}
}

func TestRejectAndHoldRefresh(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	refresh, err := s.IssueRefresh("alice")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	s.RejectRefresh(true)
	resp := post(t, s.URL()+"/refresh", map[string]string{"refresh_token": refresh})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	s.RejectRefresh(false)

	release := s.HoldRefresh()
	done := make(chan int, 1)
	go func() {
		r, err := http.Post(s.URL()+"/refresh", "application/json", strings.NewReader(`{"refresh_token":"`+refresh+`"}`))
		if err != nil {
			done <- 0
			return
		}
		r.Body.Close()
		done <- r.StatusCode
	}()

	select {
	case <-done:
		t.Fatalf("refresh answered while held")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	if got := <-done; got != http.StatusOK {
		t.Fatalf("expected 200 after release, got %d", got)
	}
}

func TestExpiredAccessRejected(t *testing.T) {
	s := New(Options{AccessTTL: time.Minute})
	defer s.Close()

	tok, err := s.IssueExpiredAccess("alice")
	if err != nil {
		t.Fatalf("IssueExpiredAccess: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, s.URL()+"/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestOfflineDropsConnections(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	s.SetOffline(true)
	if _, err := http.Post(s.URL()+"/login", "application/json", strings.NewReader(`{}`)); err == nil {
		t.Fatalf("expected transport error while offline")
	}
}
