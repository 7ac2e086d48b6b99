package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/identity-service/internal/core/domain"
)

const auditCollection = "auth_events"

// AuditRepository persists audit events to the auth_events collection.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

func auditDoc(ev domain.AuditEvent, processedAt time.Time) bson.M {
	doc := bson.M{
		"action":       string(ev.Action),
		"outcome":      string(ev.Outcome),
		"timestamp":    ev.Timestamp.UTC(),
		"processed_at": processedAt.UTC(),
	}
	if ev.IdentityID != "" {
		doc["identity_id"] = ev.IdentityID
	}
	if ev.Email != "" {
		doc["email"] = ev.Email
	}
	if ev.ActorID != "" {
		doc["actor_id"] = ev.ActorID
	}
	if ev.Detail != "" {
		doc["detail"] = ev.Detail
	}
	return doc
}

// InsertAuditEvent writes a single event.
func (r *AuditRepository) InsertAuditEvent(ctx context.Context, ev domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, auditDoc(ev, time.Now())); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// EnsureIndexes supports per-identity history lookups.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "identity_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "email", Value: 1}, {Key: "timestamp", Value: -1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("ensure audit indexes: %w", err)
	}
	return nil
}
