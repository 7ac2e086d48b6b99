package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// ErrMissingSecret is returned when a JWTIssuer is built without a signing secret.
var ErrMissingSecret = errors.New("jwt: signing secret is required")

// JWTConfig configures a JWTIssuer. Each issuer owns its secret; nothing is
// read from process-global state.
type JWTConfig struct {
	Secret     []byte
	Issuer     string
	DefaultTTL time.Duration
	Clock      ports.Clock
}

// JWTIssuer issues and verifies HS256 session tokens.
type JWTIssuer struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
	clock      ports.Clock
	parser     *jwt.Parser
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

// NewJWTIssuer validates cfg and returns a ready issuer.
func NewJWTIssuer(cfg JWTConfig) (*JWTIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.Clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &JWTIssuer{
		secret:     secret,
		issuer:     cfg.Issuer,
		defaultTTL: cfg.DefaultTTL,
		clock:      cfg.Clock,
		parser:     jwt.NewParser(opts...),
	}, nil
}

func (j *JWTIssuer) Issue(identityID string, role domain.Role) (domain.Token, error) {
	return j.IssueWithTTL(identityID, role, j.defaultTTL)
}

func (j *JWTIssuer) IssueWithTTL(identityID string, role domain.Role, ttl time.Duration) (domain.Token, error) {
	now := j.clock.Now()
	expiresAt := expiry(now, ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return domain.Token{}, fmt.Errorf("signing session token: %w", err)
	}

	return domain.Token{
		Value:     signed,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// expiry works at the whole-second precision of the exp claim. A positive ttl
// rounds up so the token is valid at issuance; ttl <= 0 never rounds up.
func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return now.Truncate(time.Second)
	}
	exp := now.Add(ttl)
	if trunc := exp.Truncate(time.Second); !trunc.Equal(exp) {
		return trunc.Add(time.Second)
	}
	return exp
}

// Verify checks the signature before any time-based claim; the parser only
// validates claims once the signature has been accepted.
func (j *JWTIssuer) Verify(token string) (*domain.TokenClaims, error) {
	claims := &sessionClaims{}
	_, err := j.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && undecodableSignature(token) {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
		}
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrTokenMalformed)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", domain.ErrTokenMalformed)
	}

	out := &domain.TokenClaims{
		ID:         claims.ID,
		IdentityID: claims.Subject,
		Role:       claims.Role,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// undecodableSignature reports a token whose header and payload decode but
// whose signature segment does not. Strict decoding rejects non-zero padding
// bits, so an edit to the last signature character lands here.
func undecodableSignature(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	enc := base64.RawURLEncoding.Strict()
	for _, seg := range parts[:2] {
		if _, err := enc.DecodeString(seg); err != nil {
			return false
		}
	}
	_, err := enc.DecodeString(parts[2])
	return err != nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", domain.ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrTokenMalformed, err)
	}
}
