// internal/app/store/invoiceseq/invoiceseqstore.go
package invoiceseqstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openrsvp/backstage/internal/domain/models"
)

// Store manages per-organization billing sequence counters.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("invoice_sequences")}
}

// EnsureIndexes creates the uniqueness index on (organization_id, kind).
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "kind", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_invoiceseq_org_kind"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// InitForOrganization seeds the invoice and credit-note counters for a
// new organization and returns how many documents were inserted. Callers
// treat any count other than 2 as a failed organization creation.
func (s *Store) InitForOrganization(ctx context.Context, orgID primitive.ObjectID) (int, error) {
	now := time.Now().UTC()
	docs := []any{
		models.InvoiceSequence{
			ID:             primitive.NewObjectID(),
			OrganizationID: orgID,
			Kind:           models.SequenceInvoice,
			Value:          0,
			CreatedAt:      now,
		},
		models.InvoiceSequence{
			ID:             primitive.NewObjectID(),
			OrganizationID: orgID,
			Kind:           models.SequenceCreditNote,
			Value:          0,
			CreatedAt:      now,
		},
	}
	res, err := s.c.InsertMany(ctx, docs)
	if err != nil {
		inserted := 0
		if res != nil {
			inserted = len(res.InsertedIDs)
		}
		return inserted, err
	}
	return len(res.InsertedIDs), nil
}

// Next atomically increments one counter and returns the new value.
func (s *Store) Next(ctx context.Context, orgID primitive.ObjectID, kind models.InvoiceSequenceKind) (int64, error) {
	var seq models.InvoiceSequence
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"organization_id": orgID, "kind": kind},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Value, nil
}

// Current reads one counter without incrementing it.
func (s *Store) Current(ctx context.Context, orgID primitive.ObjectID, kind models.InvoiceSequenceKind) (int64, error) {
	var seq models.InvoiceSequence
	err := s.c.FindOne(ctx, bson.M{"organization_id": orgID, "kind": kind}).Decode(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Value, nil
}

// DeleteForOrganization removes both counters, used when organization
// creation is rolled back.
func (s *Store) DeleteForOrganization(ctx context.Context, orgID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"organization_id": orgID})
	return err
}
