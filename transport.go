package sessionkit

import (
	"net/http"
)

// Transport defines a public type used by sessionkit APIs.
//
// Transport is an [http.RoundTripper] that attaches the current access token
// as a bearer credential. On a 401 response it asks the manager for a single
// reactive renewal and retries the request once with the fresh token; this is
// the safety net for clock skew between client and identity provider.
//
// Transport instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Transport struct {
	manager *Manager
	base    http.RoundTripper
}

// NewTransport describes the newtransport operation and its observable behavior.
//
// NewTransport may return an error when input validation, dependency calls, or security checks fail.
// NewTransport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewTransport(m *Manager, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		manager: m,
		base:    base,
	}
}

// RoundTrip describes the roundtrip operation and its observable behavior.
//
// RoundTrip may return an error when input validation, dependency calls, or security checks fail.
// RoundTrip does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	cred, ok := t.manager.Current()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	resp, err := t.base.RoundTrip(withBearer(req, cred.AccessToken))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !replayable(req) {
		return resp, nil
	}

	if renewErr := t.manager.Renew(req.Context()); renewErr != nil {
		return resp, nil
	}
	fresh, ok := t.manager.Current()
	if !ok || fresh.AccessToken == cred.AccessToken {
		return resp, nil
	}

	resp.Body.Close()

	retry := withBearer(req, fresh.AccessToken)
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, bodyErr
		}
		retry.Body = body
	}
	return t.base.RoundTrip(retry)
}

// replayable reports whether the request can be safely re-sent after a
// renewal. Requests with a consumed one-shot body cannot.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func withBearer(req *http.Request, accessToken string) *http.Request {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+accessToken)
	return clone
}
