package sessionkit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/entportal/sessionkit/idp"
)

func TestRenewConcurrentTriggersShareOneGrant(t *testing.T) {
	old := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	fresh := staticPair(t, "u-1", "alice", "student", "renew-2", time.Now().Add(2*time.Hour))

	release := make(chan struct{})
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return old, nil },
		refreshFn: func(string) (idp.TokenPair, error) {
			<-release
			return fresh, nil
		},
	}
	manager, _ := newTestManager(t, provider, nil)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			results <- manager.Renew(context.Background())
		}()
	}

	// let every goroutine reach the in-flight attempt before it resolves:
	// one owns the grant, the other n-1 must have joined it
	deadline := time.After(2 * time.Second)
	for manager.State() != StateRenewing || manager.Metrics().Value(MetricRenewCoalesced) != n-1 {
		select {
		case <-deadline:
			t.Fatal("expected one in-flight renewal with every other trigger joined")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)

	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("expected every trigger to share the successful outcome, got %v", err)
		}
	}
	if calls := provider.RefreshCalls(); calls != 1 {
		t.Fatalf("expected exactly one refresh grant, got %d", calls)
	}
	if current, ok := manager.Current(); !ok || current.RenewalToken != "renew-2" {
		t.Fatal("expected the shared renewal to land")
	}
}

func TestLogoutDiscardsInFlightRenewal(t *testing.T) {
	old := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	fresh := staticPair(t, "u-1", "alice", "student", "renew-2", time.Now().Add(2*time.Hour))

	release := make(chan struct{})
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return old, nil },
		refreshFn: func(string) (idp.TokenPair, error) {
			<-release
			return fresh, nil
		},
	}
	manager, mr := newTestManager(t, provider, nil)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	renewDone := make(chan error, 1)
	go func() { renewDone <- manager.Renew(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for manager.State() != StateRenewing {
		select {
		case <-deadline:
			t.Fatal("expected an in-flight renewal")
		case <-time.After(time.Millisecond):
		}
	}

	if err := manager.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	close(release)

	if err := <-renewDone; !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected discarded renewal to report ErrNotAuthenticated, got %v", err)
	}
	if manager.State() != StateLoggedOut {
		t.Fatalf("expected logged out state, got %v", manager.State())
	}
	if _, ok := manager.Current(); ok {
		t.Fatal("stale renewal result must never be applied after logout")
	}
	if mr.Exists("ps:access_token") || mr.Exists("ps:renewal_token") {
		t.Fatal("stale renewal result must never be persisted after logout")
	}
	if manager.Metrics().Value(MetricRenewDiscarded) != 1 {
		t.Fatal("expected discarded renewal metric")
	}
}
