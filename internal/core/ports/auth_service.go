package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RegisterInput carries the fields accepted by registration.
type RegisterInput struct {
	Username string `validate:"required,min=3,max=30"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,max=72"`
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

// AuthResult is returned by successful registration and login.
type AuthResult struct {
	Identity *domain.Identity
	Token    domain.Token
}

// AuthService orchestrates registration, login and credential updates.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Me(ctx context.Context, ac *domain.AuthContext) (*domain.Identity, error)
	ChangePassword(ctx context.Context, identityID, current, next string) error
	SetRole(ctx context.Context, actor *domain.AuthContext, targetID string, role domain.Role) (*domain.Identity, error)
}

// HeaderSource is the only request capability the gate needs.
// http.Header satisfies it.
type HeaderSource interface {
	Get(name string) string
}

// Gate authenticates requests and enforces role requirements.
type Gate interface {
	Authenticate(ctx context.Context, headers HeaderSource) (*domain.AuthContext, error)
	Authorize(ac *domain.AuthContext, allowed ...domain.Role) error
}
