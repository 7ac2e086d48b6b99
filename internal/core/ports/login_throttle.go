package ports

import "context"

// LoginThrottle counts failed logins per email.
type LoginThrottle interface {
	// Blocked reports whether further attempts for key are currently refused.
	Blocked(ctx context.Context, key string) (bool, error)
	// Fail records one failed attempt.
	Fail(ctx context.Context, key string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, key string) error
}
