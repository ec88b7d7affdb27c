package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opsdeck/session-gateway/internal/core/domain"
	"github.com/opsdeck/session-gateway/internal/core/ports"
)

const auditCollection = "session_audit"

// AuditRepository stores the session audit trail consumed by the console's
// login history screen.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

type auditDoc struct {
	Event   string `bson:"event"`
	Role    string `bson:"role,omitempty"`
	Email   string `bson:"email,omitempty"`
	Outcome string `bson:"outcome"`
	At      int64  `bson:"at"`
}

func (r *AuditRepository) Record(ctx context.Context, entry ports.AuditEntry) error {
	doc := auditDoc{
		Event:   entry.Event,
		Role:    string(entry.Role),
		Email:   entry.Email,
		Outcome: entry.Outcome,
		At:      entry.At.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]ports.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}
	defer cur.Close(ctx)

	var entries []ports.AuditEntry
	for cur.Next(ctx) {
		var doc auditDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entries = append(entries, ports.AuditEntry{
			Event:   doc.Event,
			Role:    roleKey(doc.Role),
			Email:   doc.Email,
			Outcome: doc.Outcome,
			At:      time.Unix(doc.At, 0).UTC(),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func roleKey(s string) domain.RoleKey {
	if r, ok := domain.NormalizeRole(s); ok {
		return r
	}
	return ""
}
