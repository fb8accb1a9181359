// Package token decodes the claim segment of identity-provider access tokens
// without signature verification. Verification is the provider's and the
// resource servers' responsibility; this client only needs the embedded
// expiry, subject, and role claims to drive the session lifecycle.
package token
