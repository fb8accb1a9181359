package sessionkit

// SessionContext defines a public type used by sessionkit APIs.
//
// SessionContext is the read-only facade handed to API collaborators. It can
// read the current credential and subscribe to logout notifications; it
// cannot log in, log out, or force a renewal. Mutation stays with [Manager].
//
// SessionContext instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionContext struct {
	manager *Manager
}

// Context describes the context operation and its observable behavior.
//
// Context may return an error when input validation, dependency calls, or security checks fail.
// Context does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Manager) Context() *SessionContext {
	return &SessionContext{manager: m}
}

// Current describes the current operation and its observable behavior.
//
// Current may return an error when input validation, dependency calls, or security checks fail.
// Current does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (sc *SessionContext) Current() (Credential, bool) {
	return sc.manager.Current()
}

// State describes the state operation and its observable behavior.
//
// State may return an error when input validation, dependency calls, or security checks fail.
// State does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (sc *SessionContext) State() State {
	return sc.manager.State()
}

// OnLoggedOut registers a listener invoked exactly once per transition into
// StateLoggedOut, voluntary or forced. Listeners run on a dedicated goroutine
// and may call back into the manager.
//
// OnLoggedOut may return an error when input validation, dependency calls, or security checks fail.
// OnLoggedOut does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (sc *SessionContext) OnLoggedOut(fn func(LogoutReason)) {
	sc.manager.onLoggedOut(fn)
}
