package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entportal/sessionkit/idp"
	"github.com/entportal/sessionkit/store"
	"github.com/entportal/sessionkit/token"
)

// renewFlight represents one in-flight refresh grant. Concurrent renewal
// triggers wait on done and share err instead of issuing their own grant.
type renewFlight struct {
	done chan struct{}
	err  error
}

// Manager defines a public type used by sessionkit APIs.
//
// Manager owns the session lifecycle: it is the only component that
// transitions state, touches the credential store, or talks to the identity
// provider. All transitions are serialized on an internal mutex; grant calls
// run outside the lock and their results are applied under it, guarded by a
// generation counter so results that arrive after a logout are discarded.
type Manager struct {
	config   Config
	provider GrantProvider
	store    *store.Store
	codec    *token.Codec
	events   *eventDispatcher
	metrics  *Metrics

	mu           sync.Mutex
	state        State
	credential   *Credential
	sessionID    string
	generation   uint64
	softFailures int
	flight       *renewFlight
	listeners    []func(LogoutReason)
	scheduler    *renewalScheduler
	closed       bool

	now func() time.Time
}

func newManager(cfg Config, provider GrantProvider, st *store.Store, events *eventDispatcher, metrics *Metrics) *Manager {
	return &Manager{
		config:   cfg,
		provider: provider,
		store:    st,
		codec:    token.NewCodec(),
		events:   events,
		metrics:  metrics,
		state:    StateLoggedOut,
		now:      time.Now,
	}
}

/*
====================================
LOGIN
====================================
*/

// Login describes the login operation and its observable behavior.
//
// Login exchanges the supplied credentials for a token pair, persists the pair,
// and transitions the manager into StateAuthenticated. A rejected grant maps to
// [ErrInvalidCredentials]; provider outages map to [ErrNetworkUnavailable].
// A failed login leaves the manager logged out without touching the store and
// without notifying logout listeners.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Login(ctx context.Context, username, password string) (Credential, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Credential{}, ErrManagerClosed
	}
	switch m.state {
	case StateAuthenticated, StateRenewing:
		m.mu.Unlock()
		return Credential{}, ErrAlreadyAuthenticated
	case StateAuthenticating:
		m.mu.Unlock()
		return Credential{}, ErrLoginInProgress
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	pair, err := m.provider.PasswordGrant(ctx, username, password)
	if err != nil {
		m.abortAuthenticating()
		mapped := mapGrantError(err, ErrInvalidCredentials)
		m.metrics.Inc(MetricLoginFailure)
		m.emit(ctx, "login_failure", "", username, false, mapped, nil)
		return Credential{}, mapped
	}

	cred, err := m.credentialFromPair(pair)
	if err != nil {
		m.abortAuthenticating()
		m.metrics.Inc(MetricLoginFailure)
		m.metrics.Inc(MetricCredentialCorrupt)
		m.emit(ctx, "login_failure", "", username, false, err, nil)
		return Credential{}, err
	}

	// persist-before-publish: the pair must be durable before the
	// credential becomes readable through Current.
	if err := m.store.Save(ctx, store.Tokens{Access: cred.AccessToken, Renewal: cred.RenewalToken}); err != nil {
		m.abortAuthenticating()
		m.metrics.Inc(MetricLoginFailure)
		m.metrics.Inc(MetricStorePersistFailure)
		m.emit(ctx, "login_failure", cred.Subject, username, false, err, nil)
		return Credential{}, err
	}

	m.mu.Lock()
	if m.closed || m.state != StateAuthenticating {
		m.mu.Unlock()
		return Credential{}, ErrManagerClosed
	}
	m.adoptSessionLocked(cred)
	m.mu.Unlock()

	m.metrics.Inc(MetricLoginSuccess)
	m.emit(ctx, "login_success", cred.Subject, cred.Username, true, nil, nil)
	return cred, nil
}

/*
====================================
RESUME
====================================
*/

// Resume describes the resume operation and its observable behavior.
//
// Resume loads any persisted token pair at process start. A fresh pair
// re-establishes the session without network traffic; a pair close to expiry
// gets exactly one renewal pass before the stored session is declared dead.
// Corrupt stored credentials are cleared and treated as no session rather
// than surfaced as a user-facing failure.
//
// Resume may return an error when input validation, dependency calls, or security checks fail.
// Resume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrManagerClosed
	}
	if m.state != StateLoggedOut {
		m.mu.Unlock()
		return false, ErrAlreadyAuthenticated
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	tokens, present, err := m.store.Load(ctx)
	if err != nil {
		m.abortAuthenticating()
		m.metrics.Inc(MetricResumeFailure)
		m.emit(ctx, "resume_failure", "", "", false, err, nil)
		return false, err
	}
	if !present {
		m.abortAuthenticating()
		m.metrics.Inc(MetricResumeAbsent)
		return false, nil
	}

	cred, err := m.credentialFromPair(idp.TokenPair{Access: tokens.Access, Renewal: tokens.Renewal})
	if err != nil {
		_ = m.store.Clear(ctx)
		m.abortAuthenticating()
		m.metrics.Inc(MetricResumeFailure)
		m.metrics.Inc(MetricCredentialCorrupt)
		m.emit(ctx, "credential_corrupt", "", "", false, err, nil)
		return false, nil
	}

	if !cred.NearExpiry(m.now(), m.config.Renewal.ExpiryMargin) {
		m.mu.Lock()
		if m.closed || m.state != StateAuthenticating {
			m.mu.Unlock()
			return false, ErrManagerClosed
		}
		m.adoptSessionLocked(cred)
		m.mu.Unlock()
		m.metrics.Inc(MetricResumeSuccess)
		m.emit(ctx, "resume_success", cred.Subject, cred.Username, true, nil, nil)
		return true, nil
	}

	// one renewal pass before declaring the stored session dead
	pair, grantErr := m.provider.RefreshGrant(ctx, cred.RenewalToken)
	if grantErr != nil {
		if errors.Is(grantErr, idp.ErrUnavailable) && m.now().Before(cred.ExpiresAt) {
			// provider outage while the stored token still has life in
			// it: come up authenticated and let the scheduler retry.
			m.mu.Lock()
			if m.closed || m.state != StateAuthenticating {
				m.mu.Unlock()
				return false, ErrManagerClosed
			}
			m.adoptSessionLocked(cred)
			m.softFailures = 1
			m.mu.Unlock()
			m.metrics.Inc(MetricResumeSuccess)
			m.metrics.Inc(MetricRenewSoftFailure)
			m.emit(ctx, "resume_success", cred.Subject, cred.Username, true, nil, map[string]string{"renewal": "deferred"})
			return true, nil
		}
		_ = m.store.Clear(ctx)
		m.abortAuthenticating()
		mapped := mapGrantError(grantErr, ErrRenewalTokenExpired)
		m.metrics.Inc(MetricResumeFailure)
		m.emit(ctx, "resume_failure", cred.Subject, cred.Username, false, mapped, nil)
		return false, nil
	}

	fresh, err := m.credentialFromPair(pair)
	if err != nil {
		_ = m.store.Clear(ctx)
		m.abortAuthenticating()
		m.metrics.Inc(MetricResumeFailure)
		m.metrics.Inc(MetricCredentialCorrupt)
		m.emit(ctx, "credential_corrupt", cred.Subject, cred.Username, false, err, nil)
		return false, err
	}

	if err := m.store.Save(ctx, store.Tokens{Access: fresh.AccessToken, Renewal: fresh.RenewalToken}); err != nil {
		m.abortAuthenticating()
		m.metrics.Inc(MetricResumeFailure)
		m.metrics.Inc(MetricStorePersistFailure)
		m.emit(ctx, "resume_failure", fresh.Subject, fresh.Username, false, err, nil)
		return false, err
	}

	m.mu.Lock()
	if m.closed || m.state != StateAuthenticating {
		m.mu.Unlock()
		return false, ErrManagerClosed
	}
	m.adoptSessionLocked(fresh)
	m.mu.Unlock()
	m.metrics.Inc(MetricResumeSuccess)
	m.metrics.Inc(MetricRenewSuccess)
	m.emit(ctx, "resume_success", fresh.Subject, fresh.Username, true, nil, map[string]string{"renewal": "eager"})
	return true, nil
}

/*
====================================
RENEWAL
====================================
*/

// Renew describes the renew operation and its observable behavior.
//
// Renew performs a single refresh-grant attempt. If a renewal is already in
// flight the call does not issue a second grant; it waits for the in-flight
// attempt and shares its outcome. A rejected renewal token forces a logout
// and maps to [ErrRenewalTokenExpired]; transient provider failures map to
// [ErrNetworkUnavailable] and leave the previous credential in place until
// the consecutive-failure budget is exhausted.
//
// Renew may return an error when input validation, dependency calls, or security checks fail.
// Renew does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Renew(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	switch m.state {
	case StateLoggedOut, StateAuthenticating:
		m.mu.Unlock()
		return ErrNotAuthenticated
	case StateRenewing:
		f := m.flight
		m.mu.Unlock()
		m.metrics.Inc(MetricRenewCoalesced)
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	gen := m.generation
	renewalToken := m.credential.RenewalToken
	f := &renewFlight{done: make(chan struct{})}
	m.flight = f
	m.state = StateRenewing
	m.mu.Unlock()

	start := m.now()
	pair, grantErr := m.provider.RefreshGrant(ctx, renewalToken)
	m.metrics.Observe(MetricRenewLatency, m.now().Sub(start))

	f.err = m.applyRenewal(ctx, gen, pair, grantErr)
	close(f.done)
	return f.err
}

// applyRenewal applies the outcome of one refresh grant under the lock. A
// generation mismatch means a logout or a new login happened while the grant
// was in flight, so the result is discarded untrusted.
func (m *Manager) applyRenewal(ctx context.Context, gen uint64, pair idp.TokenPair, grantErr error) error {
	m.mu.Lock()
	if m.closed || m.generation != gen || m.state != StateRenewing {
		m.mu.Unlock()
		m.metrics.Inc(MetricRenewDiscarded)
		return ErrNotAuthenticated
	}

	subject, username := "", ""
	if m.credential != nil {
		subject, username = m.credential.Subject, m.credential.Username
	}

	if grantErr != nil {
		if errors.Is(grantErr, idp.ErrGrantRejected) {
			m.logoutLocked(ctx, LogoutRenewalRejected)
			m.mu.Unlock()
			mapped := fmt.Errorf("%w: %v", ErrRenewalTokenExpired, grantErr)
			m.metrics.Inc(MetricRenewHardFailure)
			m.metrics.Inc(MetricForcedLogout)
			m.emit(ctx, "forced_logout", subject, username, false, mapped, map[string]string{"reason": LogoutRenewalRejected.String()})
			return mapped
		}

		m.softFailures++
		if m.softFailures >= m.config.Renewal.MaxSoftFailures {
			m.logoutLocked(ctx, LogoutRenewalExhausted)
			m.mu.Unlock()
			mapped := fmt.Errorf("%w: %v", ErrNetworkUnavailable, grantErr)
			m.metrics.Inc(MetricRenewHardFailure)
			m.metrics.Inc(MetricForcedLogout)
			m.emit(ctx, "forced_logout", subject, username, false, mapped, map[string]string{"reason": LogoutRenewalExhausted.String()})
			return mapped
		}

		m.state = StateAuthenticated
		m.flight = nil
		failures := m.softFailures
		m.mu.Unlock()
		mapped := fmt.Errorf("%w: %v", ErrNetworkUnavailable, grantErr)
		m.metrics.Inc(MetricRenewSoftFailure)
		m.emit(ctx, "renew_soft_failure", subject, username, false, mapped, map[string]string{"consecutive_failures": fmt.Sprintf("%d", failures)})
		return mapped
	}

	cred, err := m.credentialFromPair(pair)
	if err != nil {
		m.logoutLocked(ctx, LogoutCorruptCredential)
		m.mu.Unlock()
		m.metrics.Inc(MetricRenewHardFailure)
		m.metrics.Inc(MetricCredentialCorrupt)
		m.metrics.Inc(MetricForcedLogout)
		m.emit(ctx, "forced_logout", subject, username, false, err, map[string]string{"reason": LogoutCorruptCredential.String()})
		return err
	}

	// persist-before-publish. The old renewal token is already consumed
	// at this point, so on a persist failure the fresh pair still wins;
	// the next successful renewal re-persists it.
	if err := m.store.Save(ctx, store.Tokens{Access: cred.AccessToken, Renewal: cred.RenewalToken}); err != nil {
		m.metrics.Inc(MetricStorePersistFailure)
	}

	c := cred
	m.credential = &c
	m.state = StateAuthenticated
	m.softFailures = 0
	m.flight = nil
	m.mu.Unlock()

	m.metrics.Inc(MetricRenewSuccess)
	m.emit(ctx, "renew_success", cred.Subject, cred.Username, true, nil, nil)
	return nil
}

// renewalCheck is the scheduler tick. It is a no-op unless the session is
// authenticated and the access token sits inside the expiry margin.
func (m *Manager) renewalCheck() {
	m.mu.Lock()
	if m.closed || m.state != StateAuthenticated || m.credential == nil {
		m.mu.Unlock()
		return
	}
	due := m.credential.NearExpiry(m.now(), m.config.Renewal.ExpiryMargin)
	m.mu.Unlock()

	if !due {
		return
	}

	// failure handling lives inside Renew; a tick has nobody to report to
	_ = m.Renew(context.Background())
}

/*
====================================
LOGOUT / SHUTDOWN
====================================
*/

// Logout describes the logout operation and its observable behavior.
//
// Logout clears the persisted pair, transitions to StateLoggedOut, and
// notifies logout listeners. Calling Logout while already logged out is a
// no-op. An in-flight renewal keeps running but its result is discarded on
// arrival.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	switch m.state {
	case StateLoggedOut:
		m.mu.Unlock()
		return nil
	case StateAuthenticating:
		m.mu.Unlock()
		return ErrLoginInProgress
	}

	subject, username := "", ""
	if m.credential != nil {
		subject, username = m.credential.Subject, m.credential.Username
	}
	m.logoutLocked(ctx, LogoutUser)
	m.mu.Unlock()

	m.metrics.Inc(MetricLogout)
	m.emit(ctx, "logout", subject, username, true, nil, nil)
	return nil
}

// logoutLocked is the single transition into StateLoggedOut. Every logout
// path, voluntary or forced, funnels through here so listeners fire exactly
// once per transition and in-flight grant results are invalidated.
func (m *Manager) logoutLocked(ctx context.Context, reason LogoutReason) {
	m.generation++
	m.credential = nil
	m.sessionID = ""
	m.flight = nil
	m.softFailures = 0
	m.state = StateLoggedOut

	if m.scheduler != nil {
		m.scheduler.stop()
		m.scheduler = nil
	}

	_ = m.store.Clear(ctx)

	if len(m.listeners) > 0 {
		listeners := make([]func(LogoutReason), len(m.listeners))
		copy(listeners, m.listeners)
		go func() {
			for _, fn := range listeners {
				fn(reason)
			}
		}()
	}
}

// Close describes the close operation and its observable behavior.
//
// Close stops the renewal scheduler and the event dispatcher and makes every
// subsequent operation return [ErrManagerClosed]. It does NOT clear the
// persisted pair: a live session is expected to survive a process restart
// through [Manager.Resume].
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sched := m.scheduler
	m.scheduler = nil
	m.listeners = nil
	m.mu.Unlock()

	if sched != nil {
		sched.stop()
		sched.wait()
	}
	m.events.Close()
}

/*
====================================
READ SURFACE
====================================
*/

// Current describes the current operation and its observable behavior.
//
// Current returns the readable credential. It stays readable during a
// renewal: the previous credential is served until the fresh one lands.
//
// Current may return an error when input validation, dependency calls, or security checks fail.
// Current does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Current() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.credential == nil || (m.state != StateAuthenticated && m.state != StateRenewing) {
		return Credential{}, false
	}
	return *m.credential, true
}

// State describes the state operation and its observable behavior.
//
// State may return an error when input validation, dependency calls, or security checks fail.
// State does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Metrics describes the metrics operation and its observable behavior.
//
// Metrics may return an error when input validation, dependency calls, or security checks fail.
// Metrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// DroppedEvents describes the droppedevents operation and its observable behavior.
//
// DroppedEvents may return an error when input validation, dependency calls, or security checks fail.
// DroppedEvents does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) DroppedEvents() uint64 {
	return m.events.Dropped()
}

func (m *Manager) onLoggedOut(fn func(LogoutReason)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.listeners = append(m.listeners, fn)
}

/*
====================================
INTERNAL HELPERS
====================================
*/

// adoptSessionLocked publishes a credential as the active session and starts
// its renewal scheduler. Callers hold the lock.
func (m *Manager) adoptSessionLocked(cred Credential) {
	m.generation++
	m.sessionID = uuid.NewString()
	c := cred
	m.credential = &c
	m.state = StateAuthenticated
	m.softFailures = 0
	m.flight = nil

	if m.scheduler != nil {
		m.scheduler.stop()
	}
	m.scheduler = newRenewalScheduler(m.config.Renewal.CheckInterval, m.renewalCheck)
	m.scheduler.start()
}

// abortAuthenticating rolls a failed login or resume back to StateLoggedOut.
// No store mutation, no listener notification: nothing was established.
func (m *Manager) abortAuthenticating() {
	m.mu.Lock()
	if !m.closed && m.state == StateAuthenticating {
		m.state = StateLoggedOut
	}
	m.mu.Unlock()
}

func (m *Manager) credentialFromPair(pair idp.TokenPair) (Credential, error) {
	claims, err := m.codec.Decode(pair.Access)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		AccessToken:  pair.Access,
		RenewalToken: pair.Renewal,
		ExpiresAt:    claims.ExpiresAt,
		Subject:      claims.Subject,
		Username:     claims.Username,
		Role:         claims.Role,
	}, nil
}

func (m *Manager) emit(ctx context.Context, eventType, subject, username string, success bool, err error, metadata map[string]string) {
	if m.events == nil {
		return
	}

	m.mu.Lock()
	sessionID := m.sessionID
	state := m.state
	m.mu.Unlock()

	event := Event{
		Timestamp: m.now(),
		EventType: eventType,
		Subject:   subject,
		Username:  username,
		SessionID: sessionID,
		State:     state.String(),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = err.Error()
	}
	m.events.Emit(ctx, event)
}

func mapGrantError(err error, rejected error) error {
	if errors.Is(err, idp.ErrGrantRejected) {
		return fmt.Errorf("%w: %v", rejected, err)
	}
	return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
}
