package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned for any structural parse failure: wrong segment
// count, undecodable payload, or a missing expiry claim.
var ErrMalformed = errors.New("malformed access token")

// Role is the portal role carried in the token's realm_access claim.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role string

const (
	// RoleStudent is an exported constant or variable used by the session manager.
	RoleStudent Role = "student"
	// RoleTeacher is an exported constant or variable used by the session manager.
	RoleTeacher Role = "teacher"
	// RoleAdmin is an exported constant or variable used by the session manager.
	RoleAdmin Role = "admin"
)

// Claims is the decoded claim set the session manager consumes.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	Subject   string
	Username  string
	Role      Role
	ExpiresAt time.Time
}

// NearExpiry reports whether the claim set expires within margin of now.
// It is deterministic for a fixed now and performs no I/O.
func (c *Claims) NearExpiry(now time.Time, margin time.Duration) bool {
	return c.ExpiresAt.Sub(now) < margin
}

type rawClaims struct {
	PreferredUsername string `json:"preferred_username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	jwt.RegisteredClaims
}

// Codec decodes access tokens issued by the identity provider.
//
// Codec instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Codec struct {
	parser *jwt.Parser
}

// NewCodec describes the newcodec operation and its observable behavior.
//
// NewCodec may return an error when input validation, dependency calls, or security checks fail.
// NewCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewCodec() *Codec {
	return &Codec{
		parser: jwt.NewParser(),
	}
}

// Decode parses the token's self-describing claim segment. It performs no
// signature verification and no network access, and is deterministic.
//
// Decode may return an error when input validation, dependency calls, or security checks fail.
// Decode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Codec) Decode(accessToken string) (*Claims, error) {
	if strings.Count(accessToken, ".") != 2 {
		return nil, ErrMalformed
	}

	raw := &rawClaims{}
	if _, _, err := c.parser.ParseUnverified(accessToken, raw); err != nil {
		return nil, ErrMalformed
	}
	if raw.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	return &Claims{
		Subject:   raw.Subject,
		Username:  raw.PreferredUsername,
		Role:      roleFromRealmAccess(raw.RealmAccess.Roles),
		ExpiresAt: raw.ExpiresAt.Time,
	}, nil
}

// roleFromRealmAccess collapses the realm role list into the single portal
// role, admin taking precedence over teacher. Unknown or absent roles map
// to student, matching how the portal services read the claim.
func roleFromRealmAccess(roles []string) Role {
	role := RoleStudent
	for _, r := range roles {
		switch r {
		case string(RoleAdmin):
			return RoleAdmin
		case string(RoleTeacher):
			role = RoleTeacher
		}
	}
	return role
}
