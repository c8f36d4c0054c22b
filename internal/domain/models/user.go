// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserType distinguishes interactive accounts from machine identities.
type UserType string

const (
	UserTypeStandard UserType = "STANDARD" // interactive back-office user
	UserTypeAPIKey   UserType = "API_KEY"  // machine identity, owner-equivalent
	UserTypePublic   UserType = "PUBLIC"   // self-registered attendee account
)

// AdminUsername is the reserved system account. Its organization links are
// never rewritten by user edits.
const AdminUsername = "admin"

// User represents a back-office identity. Passwords are stored hashed; the
// plaintext never leaves the password encoder.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username    string             `bson:"username" json:"username"`
	UsernameCI  string             `bson:"username_ci" json:"-"` // lowercase, for the unique index
	Password    string             `bson:"password" json:"-"`
	FirstName   string             `bson:"first_name" json:"first_name"`
	LastName    string             `bson:"last_name" json:"last_name"`
	Email       string             `bson:"email" json:"email"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Type        UserType           `bson:"type" json:"type"`
	Enabled     bool               `bson:"enabled" json:"enabled"`
	ValidTo     *time.Time         `bson:"valid_to,omitempty" json:"valid_to,omitempty"`

	// Subject identifier assigned by the external identity provider, set
	// the first time a federated login succeeds for this user.
	OpenIDSubject string `bson:"openid_subject,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the account is past its validity window.
func (u User) Expired(now time.Time) bool {
	return u.ValidTo != nil && now.After(*u.ValidTo)
}

// Authority is a (username, role) grant. A user may hold several.
type Authority struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string             `bson:"username" json:"username"`
	Role     string             `bson:"role" json:"role"`

	GrantedAt time.Time `bson:"granted_at" json:"granted_at"`
}

// UserOrganization is the membership edge linking a user to a tenant.
// Membership is the unit of scoping for every non-admin role.
type UserOrganization struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
