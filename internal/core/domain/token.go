package domain

import "time"

// Token is a signed, self-contained bearer credential.
type Token struct {
	Value     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenClaims is the verified content of a Token.
type TokenClaims struct {
	ID         string
	IdentityID string
	Role       Role
	IssuedAt   time.Time
	ExpiresAt  time.Time
}
