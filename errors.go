package sessionkit

import (
	"errors"

	"github.com/entportal/sessionkit/store"
	"github.com/entportal/sessionkit/token"
)

var (
	// ErrInvalidCredentials is an exported constant or variable used by the session manager.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedToken is an exported constant or variable used by the session manager.
	// It aliases the token package sentinel so errors.Is matches either one.
	ErrMalformedToken = token.ErrMalformed

	// ErrNetworkUnavailable is an exported constant or variable used by the session manager.
	ErrNetworkUnavailable = errors.New("identity provider unreachable")

	// ErrRenewalTokenExpired is an exported constant or variable used by the session manager.
	ErrRenewalTokenExpired = errors.New("renewal token rejected")

	// ErrNotAuthenticated is an exported constant or variable used by the session manager.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrLoginInProgress is an exported constant or variable used by the session manager.
	ErrLoginInProgress = errors.New("login already in progress")

	// ErrAlreadyAuthenticated is an exported constant or variable used by the session manager.
	ErrAlreadyAuthenticated = errors.New("session already established")

	// ErrManagerClosed is an exported constant or variable used by the session manager.
	ErrManagerClosed = errors.New("session manager closed")

	// ErrStoreUnavailable is an exported constant or variable used by the session manager.
	// It aliases the store package sentinel so errors.Is matches either one.
	ErrStoreUnavailable = store.ErrStoreUnavailable
)
