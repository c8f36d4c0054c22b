// internal/app/store/authorities/authoritystore.go
package authoritystore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openrsvp/backstage/internal/domain/models"
)

// Store manages granted roles. Grants are keyed by username so they
// survive user-id churn the same way the credential tables do.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("authorities")}
}

// EnsureIndexes creates the uniqueness index on (username, role).
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "username", Value: 1},
				{Key: "role", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_authorities_username_role"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Grant adds one role to a username.
func (s *Store) Grant(ctx context.Context, username, role string) error {
	a := models.Authority{
		ID:        primitive.NewObjectID(),
		Username:  username,
		Role:      role,
		GrantedAt: time.Now().UTC(),
	}
	_, err := s.c.InsertOne(ctx, a)
	return err
}

// GrantedRoles returns the roles granted to a username.
func (s *Store) GrantedRoles(ctx context.Context, username string) ([]string, error) {
	cur, err := s.c.Find(ctx, bson.M{"username": username})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var grants []models.Authority
	if err := cur.All(ctx, &grants); err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(grants))
	for _, g := range grants {
		roles = append(roles, g.Role)
	}
	return roles, nil
}

// ReplaceAll revokes every grant for the username and writes the new
// set. Role changes run this inside txn.Run so a failure between the
// delete and the insert cannot leave the account roleless.
func (s *Store) ReplaceAll(ctx context.Context, username string, roles []string) error {
	if _, err := s.c.DeleteMany(ctx, bson.M{"username": username}); err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]any, 0, len(roles))
	for _, role := range roles {
		docs = append(docs, models.Authority{
			ID:        primitive.NewObjectID(),
			Username:  username,
			Role:      role,
			GrantedAt: now,
		})
	}
	_, err := s.c.InsertMany(ctx, docs)
	return err
}

// RevokeAll removes every grant for the username.
func (s *Store) RevokeAll(ctx context.Context, username string) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"username": username})
	return err
}
