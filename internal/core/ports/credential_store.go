package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// FindOptions controls which fields a store read returns.
type FindOptions struct {
	IncludePasswordHash bool
}

// FindOption mutates FindOptions.
type FindOption func(*FindOptions)

// WithPasswordHash opts a read into returning the password hash. Only login
// and password change should need it.
func WithPasswordHash() FindOption {
	return func(o *FindOptions) { o.IncludePasswordHash = true }
}

// ApplyFindOptions folds opts into a FindOptions value.
func ApplyFindOptions(opts ...FindOption) FindOptions {
	var o FindOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// CredentialUpdate lists the fields to change; nil fields are left untouched.
type CredentialUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *domain.Role
}

// IsEmpty reports whether the update changes nothing.
func (u CredentialUpdate) IsEmpty() bool {
	return u.Username == nil && u.Email == nil && u.PasswordHash == nil && u.Role == nil
}

// CredentialStore owns the durable mapping from identity to password hash and role.
//
// Lookups return domain.ErrIdentityNotFound when no record matches. Create and
// UpdateCredentials return an error matching domain.ErrConflict when username
// or email is already taken; the check is backed by a unique constraint so
// concurrent writers cannot both succeed.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string, opts ...FindOption) (*domain.Identity, error)
	FindByID(ctx context.Context, id string, opts ...FindOption) (*domain.Identity, error)
	Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	UpdateCredentials(ctx context.Context, id string, update CredentialUpdate) (*domain.Identity, error)
}
