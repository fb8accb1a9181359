package sessionkit

import (
	"context"
	"io"
	"time"

	"github.com/entportal/sessionkit/idp"
	"github.com/entportal/sessionkit/internal/events"
	"github.com/entportal/sessionkit/token"
)

// State describes where the session manager currently sits in its lifecycle.
type State uint8

const (
	// StateLoggedOut means no credential is held and no grant is in flight.
	StateLoggedOut State = iota
	// StateAuthenticating means a password grant or startup resume is in flight.
	StateAuthenticating
	// StateAuthenticated means a decoded credential is held and readable.
	StateAuthenticated
	// StateRenewing means a refresh grant is in flight; the previous
	// credential stays readable until the new one lands.
	StateRenewing
)

// String describes the string operation and its observable behavior.
func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRenewing:
		return "renewing"
	default:
		return "unknown"
	}
}

// LogoutReason describes why the manager transitioned into StateLoggedOut.
type LogoutReason uint8

const (
	// LogoutUser means the caller asked for the logout.
	LogoutUser LogoutReason = iota
	// LogoutRenewalRejected means the identity provider rejected the
	// renewal token, so the session could not be extended.
	LogoutRenewalRejected
	// LogoutRenewalExhausted means consecutive transient renewal failures
	// crossed the configured budget.
	LogoutRenewalExhausted
	// LogoutCorruptCredential means a stored or freshly issued credential
	// failed to decode.
	LogoutCorruptCredential
)

// String describes the string operation and its observable behavior.
func (r LogoutReason) String() string {
	switch r {
	case LogoutUser:
		return "user"
	case LogoutRenewalRejected:
		return "renewal_rejected"
	case LogoutRenewalExhausted:
		return "renewal_exhausted"
	case LogoutCorruptCredential:
		return "corrupt_credential"
	default:
		return "unknown"
	}
}

// Credential is the decoded, readable view of an authenticated session.
//
// ExpiresAt, Subject, Username and Role are always derived from the access
// token claims; they are never persisted or trusted from any other source.
//
// Credential instances are intended to be configured during initialization
// and then treated as immutable unless documented otherwise.
type Credential struct {
	AccessToken  string
	RenewalToken string
	ExpiresAt    time.Time
	Subject      string
	Username     string
	Role         token.Role
}

// NearExpiry describes the nearexpiry operation and its observable behavior.
//
// NearExpiry does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func (c Credential) NearExpiry(now time.Time, margin time.Duration) bool {
	return c.ExpiresAt.Sub(now) < margin
}

// GrantProvider is the identity-provider surface the manager depends on.
// idp.Client satisfies it; tests substitute in-memory fakes.
type GrantProvider interface {
	PasswordGrant(ctx context.Context, username, password string) (idp.TokenPair, error)
	RefreshGrant(ctx context.Context, renewalToken string) (idp.TokenPair, error)
}

// Event is a structured lifecycle record emitted by the manager.
type Event = events.Event

// EventSink receives [Event] values from the manager's event dispatcher.
type EventSink = events.Sink

// NoOpSink drops lifecycle events.
type NoOpSink = events.NoOpSink

// ChannelSink buffers lifecycle events into a channel for consumption.
type ChannelSink = events.ChannelSink

// JSONWriterSink writes lifecycle events as JSON lines to an [io.Writer].
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink describes the newchannelsink operation and its observable behavior.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink describes the newjsonwritersink operation and its observable behavior.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}
