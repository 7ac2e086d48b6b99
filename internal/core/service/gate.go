package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	headerAuthorization = "Authorization"
	bearerScheme        = "bearer"
)

// Gate is the two-stage request filter: Authenticate resolves the caller,
// Authorize enforces a role requirement on the resolved identity.
type Gate struct {
	tokens ports.TokenVerifier
	store  ports.CredentialStore
	roles  domain.RoleSet
	log    zerolog.Logger
}

func NewGate(tokens ports.TokenVerifier, store ports.CredentialStore, roles domain.RoleSet, log zerolog.Logger) *Gate {
	if len(roles) == 0 {
		roles = domain.NewRoleSet(domain.DefaultRoles...)
	}
	return &Gate{tokens: tokens, store: store, roles: roles, log: log}
}

// Authenticate walks NoToken → TokenPresent → Verified → Authenticated.
// Every expected failure is an ErrUnauthenticated AuthError; only store
// outages come back as plain errors.
func (g *Gate) Authenticate(ctx context.Context, headers ports.HeaderSource) (*domain.AuthContext, error) {
	raw, ok := bearerToken(headers)
	if !ok {
		return nil, domain.Unauthenticated(domain.ReasonNoToken, nil)
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.Unauthenticated(domain.ReasonTokenExpired, err)
		}
		return nil, domain.Unauthenticated(domain.ReasonInvalidToken, err)
	}

	// The role claim is only a first filter; the stored role decides below.
	if !g.roles.Contains(claims.Role) {
		return nil, domain.Unauthenticated(domain.ReasonInvalidToken, fmt.Errorf("%w: unknown role claim %q", domain.ErrTokenMalformed, claims.Role))
	}

	identity, err := g.store.FindByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.Unauthenticated(domain.ReasonIdentityNotFound, err)
		}
		return nil, fmt.Errorf("authenticate: resolve identity: %w", err)
	}

	if identity.Role != claims.Role {
		g.log.Debug().
			Str("identity_id", identity.ID).
			Str("token_role", string(claims.Role)).
			Str("current_role", string(identity.Role)).
			Msg("role changed since token issuance")
	}

	return &domain.AuthContext{
		IdentityID: identity.ID,
		Username:   identity.Username,
		Email:      identity.Email,
		Role:       identity.Role,
		TokenRole:  claims.Role,
		ExpiresAt:  claims.ExpiresAt,
	}, nil
}

// Authorize passes when the resolved identity holds one of allowed.
// With no roles given it only requires an authenticated context.
func (g *Gate) Authorize(ac *domain.AuthContext, allowed ...domain.Role) error {
	if ac == nil {
		return domain.Unauthenticated(domain.ReasonNoToken, nil)
	}
	if len(allowed) == 0 || ac.HasRole(allowed...) {
		return nil
	}
	return domain.Forbidden(fmt.Sprintf("role %q is not permitted", ac.Role))
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(headers ports.HeaderSource) (string, bool) {
	if headers == nil {
		return "", false
	}
	header := strings.TrimSpace(headers.Get(headerAuthorization))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
