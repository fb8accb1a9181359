package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable is an exported constant or variable used by the session manager.
var ErrStoreUnavailable = errors.New("credential store unavailable")

const (
	accessTokenKey  = "access_token"
	renewalTokenKey = "renewal_token"
)

// Tokens is the raw persisted credential pair. Absence of either entry
// means "no session".
//
// Tokens instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Tokens struct {
	Access  string
	Renewal string
}

// Store is a Redis-backed credential store. It persists exactly two string
// entries under fixed key names and survives process restarts.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a credential [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(name string) string {
	return s.prefix + ":" + name
}

// Save overwrites any existing entry with the given token pair. The write
// is atomic from the caller's perspective: a concurrent Load observes
// either the previous pair or the new pair, never a mix.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Save(ctx context.Context, tokens Tokens) error {
	if tokens.Access == "" || tokens.Renewal == "" {
		return errors.New("refusing to persist empty credential")
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(accessTokenKey), tokens.Access, 0)
		pipe.Set(ctx, s.key(renewalTokenKey), tokens.Renewal, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Load returns the last saved token pair. The second result is false when
// no pair is present. A partially present or empty pair is treated as
// corrupt: it is reported as absent and cleared best-effort, never
// surfaced as an error.
//
// Load may return an error when input validation, dependency calls, or security checks fail.
// Load does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Load(ctx context.Context) (Tokens, bool, error) {
	values, err := s.redis.MGet(ctx, s.key(accessTokenKey), s.key(renewalTokenKey)).Result()
	if err != nil {
		return Tokens{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(values) != 2 {
		return Tokens{}, false, fmt.Errorf("%w: unexpected mget reply", ErrStoreUnavailable)
	}

	access, accessOK := values[0].(string)
	renewal, renewalOK := values[1].(string)

	if !accessOK && !renewalOK {
		return Tokens{}, false, nil
	}
	if !accessOK || !renewalOK || access == "" || renewal == "" {
		// Half a credential is corrupt state, not a session.
		_ = s.Clear(ctx)
		return Tokens{}, false, nil
	}

	return Tokens{Access: access, Renewal: renewal}, true, nil
}

// Clear removes both entries. It is idempotent: clearing an empty store
// succeeds.
//
// Clear may return an error when input validation, dependency calls, or security checks fail.
// Clear does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(accessTokenKey), s.key(renewalTokenKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time store availability check.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
