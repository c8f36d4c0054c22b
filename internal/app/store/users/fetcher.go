// internal/app/store/users/fetcher.go
package userstore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// Fetcher implements auth.UserFetcher. Reloading the user and their
// grants on each request means a role change or a disable takes effect
// on the very next request, not at next login.
type Fetcher struct {
	users       *mongo.Collection
	authorities *mongo.Collection
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database) *Fetcher {
	return &Fetcher{
		users:       db.Collection("users"),
		authorities: db.Collection("authorities"),
	}
}

// FetchUser retrieves a user by ID. It returns nil when the user is
// missing, disabled, past their validity window, or on any error, which
// auth treats as an unusable session.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var u models.User
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		return nil
	}
	if !u.Enabled || u.Expired(time.Now()) {
		return nil
	}

	cur, err := f.authorities.Find(ctx, bson.M{"username": u.Username})
	if err != nil {
		return nil
	}
	var grants []models.Authority
	if err := cur.All(ctx, &grants); err != nil {
		return nil
	}

	roles := make([]authz.Role, 0, len(grants))
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		if role, ok := authz.Parse(g.Role); ok {
			roles = append(roles, role)
			names = append(names, string(role))
		}
	}

	return &auth.SessionUser{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Name:     strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email:    u.Email,
		Role:     string(authz.MostPrivileged(roles)),
		Roles:    names,
	}
}
