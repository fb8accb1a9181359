package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "ps"), mr
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	saved := Tokens{Access: "header.payload.sig", Renewal: "opaque-renewal"}
	if err := s.Save(ctx, saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, ok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !ok {
		t.Fatal("expected credential present")
	}
	if loaded != saved {
		t.Fatalf("loaded %+v, want %+v", loaded, saved)
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.Save(ctx, Tokens{Access: "a1", Renewal: "r1"}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := s.Save(ctx, Tokens{Access: "a2", Renewal: "r2"}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load failed: ok=%v err=%v", ok, err)
	}
	if loaded.Access != "a2" || loaded.Renewal != "r2" {
		t.Fatalf("loaded %+v, want replacement pair", loaded)
	}
}

func TestSaveRejectsEmptyCredential(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.Save(ctx, Tokens{Access: "a"}); err == nil {
		t.Fatal("expected error for missing renewal token")
	}
	if err := s.Save(ctx, Tokens{Renewal: "r"}); err == nil {
		t.Fatal("expected error for missing access token")
	}
}

func TestLoadAbsent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ok {
		t.Fatal("expected absent credential")
	}
}

func TestLoadPartialPairTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	// Only one of the two fixed keys present: corrupt, not a session.
	mr.Set("ps:access_token", "orphaned-access")

	_, ok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ok {
		t.Fatal("partial pair must be reported as absent")
	}

	// The corrupt entry is cleaned up on the way out.
	if mr.Exists("ps:access_token") {
		t.Fatal("expected orphaned entry to be cleared")
	}
}

func TestLoadEmptyValueTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	mr.Set("ps:access_token", "")
	mr.Set("ps:renewal_token", "r")

	_, ok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ok {
		t.Fatal("empty access token must be reported as absent")
	}
}

func TestClearIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.Save(ctx, Tokens{Access: "a", Renewal: "r"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second clear failed: %v", err)
	}

	_, ok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if ok {
		t.Fatal("expected absent credential after clear")
	}
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.Close()

	if err := s.Save(ctx, Tokens{Access: "a", Renewal: "r"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from save, got %v", err)
	}
	if _, _, err := s.Load(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from load, got %v", err)
	}
	if err := s.Clear(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from clear, got %v", err)
	}
}
