// Package idp implements the identity-provider token endpoint client: the
// password grant used for interactive login and the refresh grant used for
// credential renewal. Both are form-encoded POSTs against a Keycloak-style
// realm token endpoint with a bounded wait.
//
// # Architecture boundaries
//
// This package owns grant transport and provider error classification. It
// does NOT decode token claims, persist credentials, or decide session
// state — those responsibilities belong to token, store, and the Manager.
//
// # What this package must NOT do
//
//   - Retry failed grants; retry policy belongs to the Manager's renewal
//     cadence.
//   - Log or persist passwords or tokens.
package idp
