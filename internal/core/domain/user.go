package domain

import (
	"strings"
	"time"
)

// Role is a coarse-grained permission label attached to an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultRoles is the role set used when configuration does not override it.
var DefaultRoles = []Role{RoleUser, RoleAdmin}

// Identity models a registered principal.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	// PasswordHash is only populated when the store is asked for it explicitly.
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthContext is the per-request record attached by the authorization gate.
type AuthContext struct {
	IdentityID string
	Username   string
	Email      string
	// Role is read from the store on every request, never from the token.
	Role Role
	// TokenRole is the role claim captured when the token was issued.
	TokenRole Role
	ExpiresAt time.Time
}

// HasRole reports whether the resolved identity holds one of the given roles.
func (a *AuthContext) HasRole(roles ...Role) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RoleSet is a lookup of the roles accepted by the deployment.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r belongs to the set.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}
