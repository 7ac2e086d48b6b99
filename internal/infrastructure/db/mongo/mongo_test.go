package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

func TestReadProjection(t *testing.T) {
	hidden := readProjection()
	proj, ok := hidden.Projection.(bson.M)
	if !ok || proj["password_hash"] != 0 {
		t.Fatalf("default read should exclude password_hash, got %#v", hidden.Projection)
	}

	withHash := readProjection(ports.WithPasswordHash())
	if withHash.Projection != nil {
		t.Fatalf("opt-in read should not project, got %#v", withHash.Projection)
	}
}

func TestUpdateSet(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	role := domain.RoleAdmin
	email := " New@Example.COM"

	set := updateSet(ports.CredentialUpdate{Role: &role, Email: &email}, now)

	if set["role"] != "admin" {
		t.Errorf("role = %v", set["role"])
	}
	if set["email"] != "new@example.com" {
		t.Errorf("email not normalized: %v", set["email"])
	}
	if _, ok := set["password_hash"]; ok {
		t.Error("password_hash must not be set when not requested")
	}
	if _, ok := set["username"]; ok {
		t.Error("username must not be set when not requested")
	}
	if set["updated_at"] != now {
		t.Errorf("updated_at = %v", set["updated_at"])
	}
}

func TestIdentityDoc_ToDomain(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := identityDoc{
		ID:        oid,
		Username:  "alice",
		Email:     "alice@x.com",
		Role:      "user",
		CreatedAt: created,
		UpdatedAt: created,
	}.toDomain()

	if got.ID != oid.Hex() || got.Role != domain.RoleUser || got.PasswordHash != "" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestAuditDoc_OmitsEmptyFields(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := auditDoc(domain.AuditEvent{
		Action:    domain.AuditLogin,
		Outcome:   domain.OutcomeFailure,
		Email:     "ghost@x.com",
		Timestamp: ts,
	}, ts)

	if doc["action"] != "login" || doc["outcome"] != "failure" || doc["email"] != "ghost@x.com" {
		t.Fatalf("unexpected doc: %#v", doc)
	}
	for _, k := range []string{"identity_id", "actor_id", "detail"} {
		if _, ok := doc[k]; ok {
			t.Errorf("%s should be omitted", k)
		}
	}
}
