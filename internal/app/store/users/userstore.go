// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openrsvp/backstage/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateUsername = errors.New("a user with this username already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// EnsureIndexes creates the uniqueness and lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_users_username_ci"),
		},
		{
			Keys: bson.D{{Key: "openid_subject", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).
				SetName("idx_users_openid_subject"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}},
			Options: options.Index().SetName("idx_users_type"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.UsernameCI = text.Fold(u.Username)
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateUsername
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByUsername looks up a user by case-insensitive username.
func (s *Store) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"username_ci": text.Fold(username)}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByOpenIDSubject looks up a federated account by provider subject.
func (s *Store) GetByOpenIDSubject(ctx context.Context, subject string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"openid_subject": subject}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// ExistsByUsernameCI reports whether any user holds the username,
// case-insensitively, excluding excludeID when non-zero.
func (s *Store) ExistsByUsernameCI(ctx context.Context, username string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"username_ci": text.Fold(username)}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	err := s.c.FindOne(ctx, filter).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateProfile modifies the editable profile fields and refreshes
// UpdatedAt. The password and the enabled flag have dedicated setters.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, u models.User) error {
	set := bson.M{
		"updated_at":  time.Now().UTC(),
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"email":       u.Email,
		"description": u.Description,
	}
	if u.Username != "" {
		set["username"] = u.Username
		set["username_ci"] = text.Fold(u.Username)
	}
	if u.ValidTo != nil {
		set["valid_to"] = u.ValidTo
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// UpdatePassword replaces the stored credential hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password":   hash,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// SetEnabled flips the account's enabled flag.
func (s *Store) SetEnabled(ctx context.Context, id primitive.ObjectID, enabled bool) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"enabled":    enabled,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// Delete removes a user. Returns the number of documents deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// FindByIDs loads multiple users.
func (s *Store) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// FindAll returns every user.
func (s *Store) FindAll(ctx context.Context) ([]models.User, error) {
	return s.Find(ctx, bson.M{})
}

// Find returns users matching the given filter. The caller builds the
// filter and options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
