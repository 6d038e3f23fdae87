package session

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Role is the caller's privilege level carried in the session cookie.
type Role string

const (
	RoleUser       Role = "user"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

var knownRoles = map[Role]struct{}{
	RoleUser:       {},
	RoleAgent:      {},
	RoleAdmin:      {},
	RoleSuperAdmin: {},
}

// Roles returns the enumerated role set in ascending privilege order.
func Roles() []Role {
	return []Role{RoleUser, RoleAgent, RoleAdmin, RoleSuperAdmin}
}

// ParseRole maps a raw role name to a Role. Unknown names report false.
func ParseRole(raw string) (Role, bool) {
	r := Role(raw)
	if _, ok := knownRoles[r]; !ok {
		return "", false
	}
	return r, true
}

// Valid reports whether r belongs to the enumerated role set.
func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// Privileged reports whether r sees records regardless of ownership.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) String() string {
	return string(r)
}

// MaxCreatedAt is the last accepted CreatedAt, 9999-12-31T23:59:59Z. It stays below 2^53 so
// the JWT numeric date survives its float64 decoding exactly.
const MaxCreatedAt int64 = 253402300799

// Session is the identity and role claim attached to a request via cookie.
//
// Sessions are never persisted server-side; one is decoded from the cookie on every request.
type Session struct {
	UserID    string
	Role      Role
	SessionID string
	// CreatedAt is Unix seconds.
	CreatedAt int64
}

// New returns a session for userID with a fresh random session identifier.
func New(userID string, role Role, now time.Time) *Session {
	return &Session{
		UserID:    userID,
		Role:      role,
		SessionID: uuid.NewString(),
		CreatedAt: now.Unix(),
	}
}

// Validate checks required fields, the role set, and that the session survives both codecs
// unchanged: identifiers must be valid UTF-8 and CreatedAt must not exceed MaxCreatedAt.
func (s *Session) Validate() error {
	if s == nil {
		return ErrInvalidSession
	}
	if s.UserID == "" || s.SessionID == "" {
		return ErrInvalidSession
	}
	if !utf8.ValidString(s.UserID) || !utf8.ValidString(s.SessionID) {
		return ErrInvalidSession
	}
	if s.CreatedAt <= 0 || s.CreatedAt > MaxCreatedAt {
		return ErrInvalidSession
	}
	if !s.Role.Valid() {
		return ErrInvalidSession
	}
	return nil
}

// Created returns CreatedAt as a time in UTC.
func (s *Session) Created() time.Time {
	return time.Unix(s.CreatedAt, 0).UTC()
}
