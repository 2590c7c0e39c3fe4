package session

import "strings"

// Role constants
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleMember, RoleGuest}

// Session is the acting identity for one page load.
// An empty Identifier or SecretCode means unauthenticated.
type Session struct {
	Identifier string
	SecretCode string
	Role       string
	Locale     string
}

// IsAuthenticated returns true only when both halves of the credential are set.
// INVARIANT: Session fields are not mutated
func (s Session) IsAuthenticated() bool {
	return s.Identifier != "" && s.SecretCode != ""
}

// IsAdmin returns true if the session is authenticated with the admin role.
// INVARIANT: Session fields are not mutated
func (s Session) IsAdmin() bool {
	return s.IsAuthenticated() && s.Role == RoleAdmin
}

// Normalized returns the session as every consumer must see it: a half-set
// session collapses to the zero identity, keeping only the locale.
// POST: result.IsAuthenticated() or result has empty Identifier, SecretCode and Role
func (s Session) Normalized() Session {
	if s.IsAuthenticated() {
		return s
	}
	return Session{Locale: s.Locale}
}

// PendingAction is a deferred operation requested through a deep link.
type PendingAction struct {
	Type       string
	ObjectUUID string
	Payload    string
}

// IsPresent returns true if the action carries a type.
// INVARIANT: PendingAction fields are not mutated
func (a PendingAction) IsPresent() bool {
	return a.Type != ""
}

// Credentials is a candidate identifier and secret code pair read from one source.
type Credentials struct {
	Identifier string
	Code       string
}

// Complete returns true if both halves are non-blank.
// A pair with a single half never matches a source.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Identifier) != "" && strings.TrimSpace(c.Code) != ""
}

// IsValidRole reports whether role is one of ValidRoles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
