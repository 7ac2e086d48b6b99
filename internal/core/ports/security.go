package ports

import (
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// PasswordHasher produces salted one-way digests and verifies plaintexts
// against them. Verify returns false, never an error, for malformed digests.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// TokenIssuer creates signed, time-bounded session tokens.
type TokenIssuer interface {
	// Issue signs a token with the configured default lifetime.
	Issue(identityID string, role domain.Role) (domain.Token, error)
	// IssueWithTTL signs a token valid for ttl; ttl <= 0 yields an expired token.
	IssueWithTTL(identityID string, role domain.Role, ttl time.Duration) (domain.Token, error)
}

// TokenVerifier checks signature then expiry. Errors match
// domain.ErrInvalidSignature, domain.ErrTokenExpired or domain.ErrTokenMalformed.
type TokenVerifier interface {
	Verify(token string) (*domain.TokenClaims, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
