package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// AuthService implements registration, login and credential updates.
type AuthService struct {
	store    ports.CredentialStore
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	clock    ports.Clock
	roles    domain.RoleSet
	throttle ports.LoginThrottle
	audit    ports.AuditRecorder
	validate *validator.Validate
	log      zerolog.Logger

	// dummyDigest is verified against when the email is unknown so both
	// login failure paths cost one hash comparison.
	dummyDigest string
}

// Option customises an AuthService.
type Option func(*AuthService)

// WithThrottle enables failed-login throttling.
func WithThrottle(t ports.LoginThrottle) Option {
	return func(s *AuthService) { s.throttle = t }
}

// WithAudit sends audit events to r.
func WithAudit(r ports.AuditRecorder) Option {
	return func(s *AuthService) { s.audit = r }
}

// WithRoles overrides the accepted role set.
func WithRoles(roles ...domain.Role) Option {
	return func(s *AuthService) { s.roles = domain.NewRoleSet(roles...) }
}

// WithClock overrides the clock used for audit timestamps and created_at.
func WithClock(c ports.Clock) Option {
	return func(s *AuthService) { s.clock = c }
}

func NewAuthService(store ports.CredentialStore, hasher ports.PasswordHasher, tokens ports.TokenIssuer, log zerolog.Logger, opts ...Option) (*AuthService, error) {
	s := &AuthService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		clock:    ports.SystemClock{},
		roles:    domain.NewRoleSet(domain.DefaultRoles...),
		audit:    ports.NopAuditRecorder{},
		validate: validator.New(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}

	digest, err := hasher.Hash("identity-service-timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("auth service: prepare dummy digest: %w", err)
	}
	s.dummyDigest = digest
	return s, nil
}

// Register creates an identity with role user and issues its first token.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	// Pre-check for a clear error; the store's unique index closes the race.
	if _, err := s.store.FindByEmail(ctx, in.Email); err == nil {
		s.record(domain.AuditEvent{Action: domain.AuditRegister, Outcome: domain.OutcomeFailure, Email: in.Email, Detail: "email taken"})
		return nil, domain.Conflict("email already registered")
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("register: lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.clock.Now()
	created, err := s.store.Create(ctx, &domain.Identity{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.record(domain.AuditEvent{Action: domain.AuditRegister, Outcome: domain.OutcomeFailure, Email: in.Email, Detail: "duplicate"})
			return nil, err
		}
		return nil, fmt.Errorf("register: create identity: %w", err)
	}
	created.PasswordHash = ""

	token, err := s.tokens.Issue(created.ID, created.Role)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.record(domain.AuditEvent{Action: domain.AuditRegister, Outcome: domain.OutcomeSuccess, IdentityID: created.ID, Email: created.Email})
	s.log.Info().Str("identity_id", created.ID).Str("username", created.Username).Msg("identity registered")

	return &ports.AuthResult{Identity: created, Token: token}, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords return the same error value.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	if s.throttled(ctx, in.Email) {
		s.record(domain.AuditEvent{Action: domain.AuditLogin, Outcome: domain.OutcomeFailure, Email: in.Email, Detail: "throttled"})
		return nil, domain.TooManyAttempts()
	}

	identity, err := s.store.FindByEmail(ctx, in.Email, ports.WithPasswordHash())
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound):
		s.hasher.Verify(in.Password, s.dummyDigest)
		s.loginFailed(ctx, in.Email, "")
		return nil, domain.InvalidCredentials()
	case err != nil:
		return nil, fmt.Errorf("login: lookup email: %w", err)
	}

	if !s.hasher.Verify(in.Password, identity.PasswordHash) {
		s.loginFailed(ctx, in.Email, identity.ID)
		return nil, domain.InvalidCredentials()
	}
	identity.PasswordHash = ""

	token, err := s.tokens.Issue(identity.ID, identity.Role)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, in.Email); err != nil {
			s.log.Warn().Err(err).Msg("failed to reset login throttle")
		}
	}
	s.record(domain.AuditEvent{Action: domain.AuditLogin, Outcome: domain.OutcomeSuccess, IdentityID: identity.ID, Email: identity.Email})

	return &ports.AuthResult{Identity: identity, Token: token}, nil
}

// Me returns the identity behind an authenticated context.
func (s *AuthService) Me(ctx context.Context, ac *domain.AuthContext) (*domain.Identity, error) {
	if ac == nil {
		return nil, domain.Unauthenticated(domain.ReasonNoToken, nil)
	}
	identity, err := s.store.FindByID(ctx, ac.IdentityID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.Unauthenticated(domain.ReasonIdentityNotFound, err)
		}
		return nil, fmt.Errorf("me: %w", err)
	}
	return identity, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, identityID, current, next string) error {
	if current == "" || next == "" {
		return domain.Validation("current and new password are required")
	}
	if err := checkPasswordLength(next); err != nil {
		return err
	}

	identity, err := s.store.FindByID(ctx, identityID, ports.WithPasswordHash())
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return domain.Unauthenticated(domain.ReasonIdentityNotFound, err)
		}
		return fmt.Errorf("change password: %w", err)
	}

	if !s.hasher.Verify(current, identity.PasswordHash) {
		s.record(domain.AuditEvent{Action: domain.AuditPasswordChange, Outcome: domain.OutcomeFailure, IdentityID: identityID})
		return domain.InvalidCredentials()
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if _, err := s.store.UpdateCredentials(ctx, identityID, ports.CredentialUpdate{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.record(domain.AuditEvent{Action: domain.AuditPasswordChange, Outcome: domain.OutcomeSuccess, IdentityID: identityID})
	return nil
}

// SetRole changes another identity's role. Only admins may call it; the change
// applies to the target's next request even though its tokens carry the old claim.
func (s *AuthService) SetRole(ctx context.Context, actor *domain.AuthContext, targetID string, role domain.Role) (*domain.Identity, error) {
	if actor == nil {
		return nil, domain.Unauthenticated(domain.ReasonNoToken, nil)
	}
	if !actor.HasRole(domain.RoleAdmin) {
		return nil, domain.Forbidden("admin role required")
	}
	if !s.roles.Contains(role) {
		return nil, domain.Validation(fmt.Sprintf("unknown role %q", role))
	}

	updated, err := s.store.UpdateCredentials(ctx, targetID, ports.CredentialUpdate{Role: &role})
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			err = fmt.Errorf("set role: %w", err)
		}
		return nil, err
	}

	s.record(domain.AuditEvent{
		Action:     domain.AuditRoleChange,
		Outcome:    domain.OutcomeSuccess,
		IdentityID: targetID,
		ActorID:    actor.IdentityID,
		Detail:     string(role),
	})
	s.log.Info().Str("identity_id", targetID).Str("actor_id", actor.IdentityID).Str("role", string(role)).Msg("role changed")
	return updated, nil
}

// SeedAdmin creates an admin identity unless the email is already registered.
func (s *AuthService) SeedAdmin(ctx context.Context, in ports.RegisterInput) (*domain.Identity, bool, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.validateInput(in); err != nil {
		return nil, false, err
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, false, err
	}

	existing, err := s.store.FindByEmail(ctx, in.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, false, fmt.Errorf("seed admin: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, false, fmt.Errorf("seed admin: %w", err)
	}
	now := s.clock.Now()
	created, err := s.store.Create(ctx, &domain.Identity{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			err = fmt.Errorf("seed admin: %w", err)
		}
		return nil, false, err
	}
	created.PasswordHash = ""

	s.record(domain.AuditEvent{Action: domain.AuditSeedAdmin, Outcome: domain.OutcomeSuccess, IdentityID: created.ID, Email: created.Email})
	return created, true, nil
}

func checkPasswordLength(password string) error {
	if len(password) > maxPasswordBytes {
		return domain.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

func (s *AuthService) validateInput(in any) error {
	if err := s.validate.Struct(in); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return domain.Validation(strings.Join(msgs, "; "))
		}
		return domain.Validation(err.Error())
	}
	return nil
}

func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// throttled fails open: a throttle outage must not lock everyone out.
func (s *AuthService) throttled(ctx context.Context, email string) bool {
	if s.throttle == nil {
		return false
	}
	blocked, err := s.throttle.Blocked(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Msg("login throttle check failed, allowing attempt")
		return false
	}
	return blocked
}

func (s *AuthService) loginFailed(ctx context.Context, email, identityID string) {
	if s.throttle != nil {
		if err := s.throttle.Fail(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("failed to record login failure")
		}
	}
	s.record(domain.AuditEvent{Action: domain.AuditLogin, Outcome: domain.OutcomeFailure, IdentityID: identityID, Email: email})
}

func (s *AuthService) record(ev domain.AuditEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.clock.Now()
	}
	s.audit.Record(ev)
}
