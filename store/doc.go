// Package store provides Redis-backed credential persistence for the session
// manager. The persisted state is deliberately minimal: two string entries
// under fixed key names — the access token and the renewal token. Everything
// else (expiry, subject, role) is re-derived from the access token on load,
// so the store can never disagree with the token's own claims.
//
// # Architecture boundaries
//
// This package owns the Redis key layout and atomic save/load/clear
// semantics. It does NOT decode tokens or decide session state — those
// responsibilities belong to the token codec and the Manager.
//
// # What this package must NOT do
//
//   - Import sessionkit, token, or idp (no upward imports).
//   - Contact the identity provider.
//   - Treat corrupt persisted data as a caller-visible error; corrupt
//     entries are reported as absent.
package store
