package sessionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/entportal/sessionkit/idp"
)

func newEventedManager(t *testing.T, provider GrantProvider, sink EventSink) *Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := defaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.BufferSize = 64

	manager, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithProvider(provider).
		WithEventSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build manager: %v", err)
	}
	t.Cleanup(manager.Close)

	return manager
}

func waitForEvent(t *testing.T, sink *ChannelSink, eventType string) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func TestLifecycleEventsEmitted(t *testing.T) {
	pair := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return pair, nil },
	}
	sink := NewChannelSink(64)
	manager := newEventedManager(t, provider, sink)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	event := waitForEvent(t, sink, "login_success")
	if event.Username != "alice" || event.Subject != "u-1" {
		t.Fatalf("unexpected identity on event: %q / %q", event.Username, event.Subject)
	}
	if !event.Success {
		t.Fatal("expected success flag on login event")
	}
	if event.SessionID == "" {
		t.Fatal("expected a session id on login event")
	}
	if event.State != "authenticated" {
		t.Fatalf("expected authenticated state on event, got %q", event.State)
	}

	if err := manager.Logout(context.Background()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	logoutEvent := waitForEvent(t, sink, "logout")
	if logoutEvent.State != "logged_out" {
		t.Fatalf("expected logged_out state on event, got %q", logoutEvent.State)
	}
}

func TestFailureEventsCarryError(t *testing.T) {
	pair := staticPair(t, "u-1", "alice", "student", "renew-1", time.Now().Add(time.Hour))
	provider := &fakeProvider{
		passwordFn: func(string, string) (idp.TokenPair, error) { return pair, nil },
		refreshFn: func(string) (idp.TokenPair, error) {
			return idp.TokenPair{}, idp.ErrGrantRejected
		},
	}
	sink := NewChannelSink(64)
	manager := newEventedManager(t, provider, sink)

	if _, err := manager.Login(context.Background(), "alice", "correct-password-123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	_ = manager.Renew(context.Background())

	event := waitForEvent(t, sink, "forced_logout")
	if event.Success {
		t.Fatal("forced logout event must not be marked successful")
	}
	if event.Error == "" {
		t.Fatal("expected error detail on forced logout event")
	}
	if event.Metadata["reason"] != LogoutRenewalRejected.String() {
		t.Fatalf("expected rejection reason in metadata, got %q", event.Metadata["reason"])
	}
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Now(),
		EventType: "login_success",
		Username:  "alice",
		State:     "authenticated",
		Success:   true,
	})

	line := bytes.TrimSpace(buf.Bytes())
	var decoded Event
	if err := json.Unmarshal(line, &decoded); err != nil {
		t.Fatalf("expected one JSON object per line, got %q: %v", line, err)
	}
	if decoded.EventType != "login_success" || decoded.Username != "alice" {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

type blockingSink struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSink) Emit(_ context.Context, _ Event) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.release)
		d.Close()
	}()

	// first event occupies the sink, second fills the buffer
	d.Emit(context.Background(), Event{EventType: "a"})
	<-sink.started
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Emit(context.Background(), Event{EventType: "c"})

	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an event to be dropped under backpressure")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newEventDispatcher(EventsConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when events are disabled")
	}
	// nil receivers are safe no-ops
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected zero drops on nil dispatcher")
	}
}
