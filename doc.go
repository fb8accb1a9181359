// Package sessionkit provides the session and token lifecycle for course-portal
// clients: password login against a Keycloak realm, proactive refresh-token
// renewal ahead of access-token expiry, and a restart-safe credential store
// backed by Redis.
//
// The package is designed for concurrent client workloads: Manager methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Manager], [Builder], [Config],
// [SessionContext], and value types (Credential, Event, MetricsSnapshot, etc.).
// Identity-provider transport lives in idp, token decoding in token, durable
// persistence in store; event delivery lives under internal/ and is never
// exported directly.
//
// # What this package must NOT do
//
//   - Expose Redis clients, raw grant responses, or token-encoding details in
//     its public API.
//   - Hand mutation capability to API collaborators: [SessionContext] is
//     strictly read-plus-subscribe.
//   - Issue more than one concurrent refresh grant per session; concurrent
//     renewal triggers share one in-flight attempt.
//
// # Lifecycle contract
//
// Exactly one component transitions session state. A renewal result that
// arrives after a logout or a new login is discarded, never applied. The
// persisted token pair is written before a new credential becomes readable
// through [Manager.Current].
package sessionkit
