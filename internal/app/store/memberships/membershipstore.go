// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openrsvp/backstage/internal/domain/models"
)

// Store manages the user-to-organization membership edges.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("user_organizations")}
}

// EnsureIndexes creates the uniqueness and lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "organization_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_memberships_user_org"),
		},
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}},
			Options: options.Index().SetName("idx_memberships_org"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Add links a user to an organization. Adding an existing link fails on
// the unique index.
func (s *Store) Add(ctx context.Context, userID, orgID primitive.ObjectID) error {
	edge := models.UserOrganization{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		OrganizationID: orgID,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.c.InsertOne(ctx, edge)
	return err
}

// ReplaceForUser rewrites a user's memberships to exactly orgIDs.
// Callers needing atomicity run this inside txn.Run.
func (s *Store) ReplaceForUser(ctx context.Context, userID primitive.ObjectID, orgIDs []primitive.ObjectID) error {
	if _, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return err
	}
	if len(orgIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		docs = append(docs, models.UserOrganization{
			ID:             primitive.NewObjectID(),
			UserID:         userID,
			OrganizationID: orgID,
			CreatedAt:      now,
		})
	}
	_, err := s.c.InsertMany(ctx, docs)
	return err
}

// RemoveAllForUser deletes every membership edge for the user.
func (s *Store) RemoveAllForUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// IsMember reports whether the user belongs to the organization.
func (s *Store) IsMember(ctx context.Context, userID, orgID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"user_id":         userID,
		"organization_id": orgID,
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OrganizationIDsForUser returns the organizations the user belongs to.
func (s *Store) OrganizationIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var edges []models.UserOrganization
	if err := cur.All(ctx, &edges); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.OrganizationID)
	}
	return ids, nil
}

// UserIDsForOrganization returns the members of one organization.
func (s *Store) UserIDsForOrganization(ctx context.Context, orgID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var edges []models.UserOrganization
	if err := cur.All(ctx, &edges); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.UserID)
	}
	return ids, nil
}
