package sessionkit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/entportal/sessionkit/idp"
)

func TestTransportAttachesBearerToken(t *testing.T) {
	pair := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return pair, nil },
	}
	manager, _ := newTestManager(t, provider, nil)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+pair.Access {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(manager, nil)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestTransportRenewsOnceOnUnauthorized(t *testing.T) {
	old := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	fresh := staticPair(t, "u-1", "alice", "student", "renew-2", time.Now().Add(2*time.Hour))
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return old, nil },
		refreshFn:  func(string) (idp.TokenPair, error) { return fresh, nil },
	}
	manager, _ := newTestManager(t, provider, nil)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// the server only honors the renewed token, as if the old one
		// had expired server-side despite the local clock disagreeing
		if r.Header.Get("Authorization") != "Bearer "+fresh.Access {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(manager, nil)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after reactive renewal, got %d", resp.StatusCode)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected original request plus one retry, got %d", got)
	}
	if provider.RefreshCalls() != 1 {
		t.Fatalf("expected one reactive renewal, got %d", provider.RefreshCalls())
	}
}

func TestTransportReturnsUnauthorizedWhenRenewalFails(t *testing.T) {
	old := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return old, nil },
		refreshFn: func(string) (idp.TokenPair, error) {
			return idp.TokenPair{}, idp.ErrGrantRejected
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(manager, nil)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the original 401 to surface, got %d", resp.StatusCode)
	}
	// the rejected renewal also forced the session out
	if manager.State() != StateLoggedOut {
		t.Fatalf("expected logged out state, got %v", manager.State())
	}
}

func TestTransportRequiresSession(t *testing.T) {
	manager, _ := newTestManager(t, &fakeProvider{}, nil)

	transport := NewTransport(manager, nil)
	req := httptest.NewRequest(http.MethodGet, "http://portal.example/api", nil)

	_, err := transport.RoundTrip(req)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestTransportRetriesWithReplayableBody(t *testing.T) {
	old := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	fresh := staticPair(t, "u-1", "alice", "student", "renew-2", time.Now().Add(2*time.Hour))
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return old, nil },
		refreshFn:  func(string) (idp.TokenPair, error) { return fresh, nil },
	}
	manager, _ := newTestManager(t, provider, nil)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+fresh.Access {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(manager, nil)}
	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("assignment-42"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d", resp.StatusCode)
	}
	echoed, _ := io.ReadAll(resp.Body)
	if string(echoed) != "assignment-42" {
		t.Fatalf("expected body replayed on retry, got %q", echoed)
	}
}
