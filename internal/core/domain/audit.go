package domain

import "time"

// AuditAction identifies the operation an AuditEvent describes.
type AuditAction string

const (
	AuditRegister       AuditAction = "register"
	AuditLogin          AuditAction = "login"
	AuditPasswordChange AuditAction = "password_change"
	AuditRoleChange     AuditAction = "role_change"
	AuditSeedAdmin      AuditAction = "seed_admin"
)

// AuditOutcome is the result recorded for an audited operation.
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
)

// AuditEvent is a security-relevant record of an authentication operation.
type AuditEvent struct {
	Action     AuditAction
	Outcome    AuditOutcome
	IdentityID string // empty when the principal could not be resolved
	Email      string
	ActorID    string // set for administrator-initiated changes
	Detail     string
	Timestamp  time.Time
}

// Subject returns the key used to keep one principal's events ordered.
func (e AuditEvent) Subject() string {
	if e.IdentityID != "" {
		return e.IdentityID
	}
	return e.Email
}
