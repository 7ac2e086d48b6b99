package domain

import (
	"errors"
	"strings"
)

// Failure kinds callers are expected to handle.
var (
	ErrConflict           = errors.New("identity already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("access forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
)

// Token verification failures. The gate folds all of them into ErrUnauthenticated.
var (
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("token malformed")
)

// ErrIdentityNotFound is returned by the credential store when no record matches.
var ErrIdentityNotFound = errors.New("identity not found")

// Reasons attached to ErrUnauthenticated. They are kept for logs and metrics only.
const (
	ReasonNoToken          = "no token"
	ReasonInvalidToken     = "invalid token"
	ReasonTokenExpired     = "token expired"
	ReasonIdentityNotFound = "identity not found"
)

// AuthError is a typed, expected failure. Kind is one of the taxonomy
// sentinels; Reason is an internal diagnostic and must not reach clients for
// ErrUnauthenticated.
type AuthError struct {
	Kind   error
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newAuthError(kind error, reason string, cause error) *AuthError {
	return &AuthError{Kind: kind, Reason: reason, Err: cause}
}

// Conflict reports a uniqueness violation.
func Conflict(reason string) error {
	return newAuthError(ErrConflict, reason, nil)
}

// InvalidCredentials is deliberately reason-free so that unknown emails and
// wrong passwords produce identical values.
func InvalidCredentials() error {
	return newAuthError(ErrInvalidCredentials, "", nil)
}

// Unauthenticated wraps a token or identity resolution failure.
func Unauthenticated(reason string, cause error) error {
	return newAuthError(ErrUnauthenticated, reason, cause)
}

// Forbidden reports an authenticated caller lacking the required role.
func Forbidden(reason string) error {
	return newAuthError(ErrForbidden, reason, nil)
}

// Validation reports malformed input detected before any store access.
func Validation(reason string) error {
	return newAuthError(ErrValidation, reason, nil)
}

// TooManyAttempts reports a throttled login.
func TooManyAttempts() error {
	return newAuthError(ErrTooManyAttempts, "", nil)
}

// ReasonOf returns the diagnostic reason of an AuthError, or "" for anything else.
func ReasonOf(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}
