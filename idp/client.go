package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ErrGrantRejected is an exported constant or variable used by the session manager.
var ErrGrantRejected = errors.New("grant rejected by identity provider")

// ErrUnavailable is an exported constant or variable used by the session manager.
var ErrUnavailable = errors.New("identity provider unavailable")

const defaultRequestTimeout = 10 * time.Second

// TokenPair is the raw result of a successful grant.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	Access  string
	Renewal string
}

// Config defines a public type used by sessionkit APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the identity provider root, e.g. http://keycloak:8080.
	BaseURL string
	// Realm selects the realm token endpoint under BaseURL.
	Realm string
	// ClientID is the public OAuth client identifier, e.g. ent-frontend.
	ClientID string
	// TokenURL overrides the derived realm token endpoint when set.
	TokenURL string
	// RequestTimeout bounds each grant call. Defaults to 10s.
	RequestTimeout time.Duration
	// HTTPClient overrides the transport, primarily for tests.
	HTTPClient *http.Client
}

// Client is the identity-provider token endpoint client.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Client struct {
	oauth   oauth2.Config
	timeout time.Duration
	http    *http.Client
}

// NewClient describes the newclient operation and its observable behavior.
//
// NewClient may return an error when input validation, dependency calls, or security checks fail.
// NewClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("idp ClientID is required")
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.BaseURL == "" || cfg.Realm == "" {
			return nil, errors.New("idp requires TokenURL or BaseURL+Realm")
		}
		tokenURL = strings.TrimRight(cfg.BaseURL, "/") +
			"/realms/" + cfg.Realm + "/protocol/openid-connect/token"
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		oauth: oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
				// Public client: client_id travels in the form body.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		timeout: timeout,
		http:    cfg.HTTPClient,
	}, nil
}

// PasswordGrant exchanges a username and password for a token pair.
//
// PasswordGrant may return an error when input validation, dependency calls, or security checks fail.
// PasswordGrant does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (TokenPair, error) {
	ctx, cancel := c.grantContext(ctx)
	defer cancel()

	tok, err := c.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return TokenPair{}, classifyGrantError(err)
	}

	return pairFromToken(tok)
}

// RefreshGrant exchanges a renewal token for a fresh token pair. When the
// provider does not rotate renewal tokens the previous one is carried
// forward unchanged.
//
// RefreshGrant may return an error when input validation, dependency calls, or security checks fail.
// RefreshGrant does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Client) RefreshGrant(ctx context.Context, renewalToken string) (TokenPair, error) {
	if renewalToken == "" {
		return TokenPair{}, fmt.Errorf("%w: empty renewal token", ErrGrantRejected)
	}

	ctx, cancel := c.grantContext(ctx)
	defer cancel()

	// A token source seeded with only the renewal token forces exactly one
	// refresh grant against the endpoint.
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: renewalToken})
	tok, err := src.Token()
	if err != nil {
		return TokenPair{}, classifyGrantError(err)
	}

	return pairFromToken(tok)
}

func (c *Client) grantContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func pairFromToken(tok *oauth2.Token) (TokenPair, error) {
	if tok.AccessToken == "" {
		return TokenPair{}, fmt.Errorf("%w: token response missing access_token", ErrUnavailable)
	}
	if tok.RefreshToken == "" {
		return TokenPair{}, fmt.Errorf("%w: token response missing refresh_token", ErrUnavailable)
	}
	return TokenPair{Access: tok.AccessToken, Renewal: tok.RefreshToken}, nil
}

// classifyGrantError splits provider failures into the two classes the
// session manager distinguishes: a definitive rejection from the endpoint
// (HTTP error response, e.g. invalid_grant) and everything transient
// (timeouts, refused connections, malformed responses).
func classifyGrantError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrUnavailable, retrieveErr.Response.Status)
		}
		code := retrieveErr.ErrorCode
		if code == "" && retrieveErr.Response != nil {
			code = retrieveErr.Response.Status
		}
		return fmt.Errorf("%w: %s", ErrGrantRejected, code)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
