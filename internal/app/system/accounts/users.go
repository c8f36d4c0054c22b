// internal/app/system/accounts/users.go
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/store/audit"
	"github.com/openrsvp/backstage/internal/app/system/apperr"
	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/password"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// APIKeyFirstName is the placeholder profile name for API-key accounts.
const APIKeyFirstName = "apikey"

// UserInput carries the caller-supplied fields for creating or editing
// a user.
type UserInput struct {
	Username       string
	FirstName      string
	LastName       string
	Email          string
	Description    string
	Type           models.UserType
	Role           authz.Role
	OrganizationID primitive.ObjectID
	ValidTo        *time.Time
}

// ValidateUser checks the input against the field requirements and the
// username uniqueness constraint. excludeID skips the record being
// edited.
func (m *Manager) ValidateUser(ctx context.Context, in UserInput, excludeID primitive.ObjectID) error {
	var fields []apperr.FieldError
	if in.Type != models.UserTypeAPIKey {
		if strings.TrimSpace(in.Username) == "" {
			fields = append(fields, apperr.FieldError{Field: "username", Message: "username is required"})
		}
		if strings.TrimSpace(in.FirstName) == "" {
			fields = append(fields, apperr.FieldError{Field: "firstName", Message: "first name is required"})
		}
		if strings.TrimSpace(in.LastName) == "" {
			fields = append(fields, apperr.FieldError{Field: "lastName", Message: "last name is required"})
		}
		if strings.TrimSpace(in.Email) == "" {
			fields = append(fields, apperr.FieldError{Field: "email", Message: "email is required"})
		}
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields...)
	}
	if in.Username != "" {
		taken, err := m.users.ExistsByUsernameCI(ctx, in.Username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("username", apperr.CodeDuplicateUsername)
		}
	}
	return nil
}

// requireAssignable verifies the actor may hand out the requested role.
func (m *Manager) requireAssignable(ctx context.Context, actorUsername string, role authz.Role) error {
	available, err := m.AvailableRoles(ctx, actorUsername)
	if err != nil {
		return err
	}
	for _, r := range available {
		if r == role {
			return nil
		}
	}
	return apperr.Authorization("role " + string(role) + " is not assignable by " + actorUsername)
}

func (m *Manager) requireOrgAdmin(ctx context.Context, actorUsername string, orgID primitive.ObjectID) error {
	ok, err := m.IsOwnerOfOrganization(ctx, actorUsername, orgID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization(actorUsername + " does not administer the target organization")
	}
	return nil
}

// InsertUser creates a user, grants its role and links it to the
// organization. API-key accounts get a generated uuid username and
// placeholder names regardless of input. Returns the created user and
// the generated clear-text password, which is never stored.
func (m *Manager) InsertUser(ctx context.Context, actorUsername string, in UserInput) (models.User, string, error) {
	if err := m.requireOrgAdmin(ctx, actorUsername, in.OrganizationID); err != nil {
		return models.User{}, "", err
	}
	if err := m.requireAssignable(ctx, actorUsername, in.Role); err != nil {
		return models.User{}, "", err
	}

	if in.Type == models.UserTypeAPIKey {
		in.Username = uuid.NewString()
		in.FirstName = APIKeyFirstName
		in.LastName = ""
	}
	if err := m.ValidateUser(ctx, in, primitive.NilObjectID); err != nil {
		return models.User{}, "", err
	}

	clear, err := password.Generate()
	if err != nil {
		return models.User{}, "", err
	}
	hash, err := m.encoder.Hash(clear)
	if err != nil {
		return models.User{}, "", err
	}

	var created models.User
	err = m.runTxn(ctx, func(ctx context.Context) error {
		var err error
		created, err = m.users.Create(ctx, models.User{
			Username:    in.Username,
			Password:    hash,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			Email:       in.Email,
			Description: in.Description,
			Type:        in.Type,
			Enabled:     true,
			ValidTo:     in.ValidTo,
		})
		if err != nil {
			return err
		}
		if err := m.authorities.Grant(ctx, created.Username, string(in.Role)); err != nil {
			return err
		}
		return m.memberships.Add(ctx, created.ID, in.OrganizationID)
	})
	if err != nil {
		return models.User{}, "", err
	}

	actor, _ := m.actor(ctx, actorUsername)
	m.audit.UserCreated(ctx, actor, created.Username, string(in.Role))
	return created, clear, nil
}

// BulkInsertAPIKeys creates one API-key account per description, all
// with the same role and organization.
func (m *Manager) BulkInsertAPIKeys(ctx context.Context, actorUsername string, orgID primitive.ObjectID, role authz.Role, descriptions []string) ([]models.User, error) {
	created := make([]models.User, 0, len(descriptions))
	for _, desc := range descriptions {
		u, _, err := m.InsertUser(ctx, actorUsername, UserInput{
			Description:    desc,
			Type:           models.UserTypeAPIKey,
			Role:           role,
			OrganizationID: orgID,
		})
		if err != nil {
			return created, err
		}
		created = append(created, u)
	}

	usernames := make([]string, 0, len(created))
	for _, u := range created {
		usernames = append(usernames, u.Username)
	}
	actor, _ := m.actor(ctx, actorUsername)
	m.audit.APIKeysCreated(ctx, actor, usernames, string(role))
	return created, nil
}

// EditUser updates a user's profile and, for unprotected accounts,
// rewrites its role and membership. The built-in admin identity keeps
// its grants no matter what the caller sends.
func (m *Manager) EditUser(ctx context.Context, actorUsername string, targetID primitive.ObjectID, in UserInput) error {
	target, err := m.users.GetByID(ctx, targetID)
	if err != nil {
		return m.mapNotFound(err)
	}

	protected, err := m.isProtectedAdmin(ctx, target)
	if err != nil {
		return err
	}

	if !protected {
		if err := m.requireOrgAdmin(ctx, actorUsername, in.OrganizationID); err != nil {
			return err
		}
		if err := m.requireAssignable(ctx, actorUsername, in.Role); err != nil {
			return err
		}
	}

	in.Username = target.Username // usernames are immutable after creation
	in.Type = target.Type
	if err := m.ValidateUser(ctx, in, targetID); err != nil {
		return err
	}

	var previousRole authz.Role
	if !protected {
		previousRole, err = m.MostPrivilegedRole(ctx, target.Username)
		if err != nil {
			return err
		}
	}

	err = m.runTxn(ctx, func(ctx context.Context) error {
		if err := m.users.UpdateProfile(ctx, targetID, models.User{
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			Email:       in.Email,
			Description: in.Description,
			ValidTo:     in.ValidTo,
		}); err != nil {
			return err
		}
		if protected {
			return nil
		}
		if err := m.authorities.ReplaceAll(ctx, target.Username, []string{string(in.Role)}); err != nil {
			return err
		}
		return m.memberships.ReplaceForUser(ctx, targetID, []primitive.ObjectID{in.OrganizationID})
	})
	if err != nil {
		return err
	}

	actor, _ := m.actor(ctx, actorUsername)
	m.audit.UserUpdated(ctx, actor, target.Username, nil)
	if !protected && previousRole != in.Role {
		m.audit.RoleChanged(ctx, actor, target.Username, string(previousRole), string(in.Role))
	}
	return nil
}

// DeleteUser removes a user with its grants and memberships. Deleting
// your own account is refused for every role.
func (m *Manager) DeleteUser(ctx context.Context, actorUsername string, targetID primitive.ObjectID) error {
	target, err := m.users.GetByID(ctx, targetID)
	if err != nil {
		return m.mapNotFound(err)
	}
	if strings.EqualFold(target.Username, actorUsername) {
		return apperr.ErrSelfOperation
	}

	err = m.runTxn(ctx, func(ctx context.Context) error {
		if err := m.authorities.RevokeAll(ctx, target.Username); err != nil {
			return err
		}
		if err := m.memberships.RemoveAllForUser(ctx, targetID); err != nil {
			return err
		}
		_, err := m.users.Delete(ctx, targetID)
		return err
	})
	if err != nil {
		return err
	}

	actor, _ := m.actor(ctx, actorUsername)
	m.audit.UserDeleted(ctx, actor, target.Username)
	return nil
}

// SetEnabled enables or disables an account. Disabling your own account
// is refused for every role.
func (m *Manager) SetEnabled(ctx context.Context, actorUsername string, targetID primitive.ObjectID, enabled bool) error {
	target, err := m.users.GetByID(ctx, targetID)
	if err != nil {
		return m.mapNotFound(err)
	}
	if strings.EqualFold(target.Username, actorUsername) {
		return apperr.ErrSelfOperation
	}
	if err := m.users.SetEnabled(ctx, targetID, enabled); err != nil {
		return err
	}

	actor, _ := m.actor(ctx, actorUsername)
	m.audit.UserEnabledChanged(ctx, actor, target.Username, enabled)
	return nil
}

// ResetPassword sets a fresh generated password on the target account
// and returns it in clear text exactly once.
func (m *Manager) ResetPassword(ctx context.Context, actorUsername string, targetID primitive.ObjectID) (string, error) {
	target, err := m.users.GetByID(ctx, targetID)
	if err != nil {
		return "", m.mapNotFound(err)
	}

	clear, err := password.Generate()
	if err != nil {
		return "", err
	}
	hash, err := m.encoder.Hash(clear)
	if err != nil {
		return "", err
	}
	if err := m.users.UpdatePassword(ctx, targetID, hash); err != nil {
		return "", err
	}

	actor, _ := m.actor(ctx, actorUsername)
	m.audit.PasswordReset(ctx, actor, target.Username)
	return clear, nil
}

// ValidateNewPassword checks a self-service password change: the old
// password must match, the new one must meet the strength policy and
// the confirmation must equal the new password.
func (m *Manager) ValidateNewPassword(ctx context.Context, username, oldPassword, newPassword, confirm string) error {
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return m.mapNotFound(err)
	}
	if !m.encoder.Matches(oldPassword, u.Password) {
		return apperr.Validation("oldPassword", "the current password is incorrect")
	}
	if !password.IsValid(newPassword) {
		return apperr.Validation("newPassword", "the new password does not meet the strength requirements")
	}
	if newPassword != confirm {
		return apperr.ConfirmationMismatch()
	}
	return nil
}

// UpdatePassword stores a new password for the username after checking
// the strength policy.
func (m *Manager) UpdatePassword(ctx context.Context, username, newPassword string) error {
	if !password.IsValid(newPassword) {
		return apperr.Validation("newPassword", "the new password does not meet the strength requirements")
	}
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return m.mapNotFound(err)
	}
	hash, err := m.encoder.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := m.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}

	m.audit.PasswordChanged(ctx, &u)
	return nil
}

// CreatePublicUserIfNotExists provisions a public account for a
// federated identity. Repeated calls with the same subject return the
// existing account; a concurrent create is resolved by re-reading.
func (m *Manager) CreatePublicUserIfNotExists(ctx context.Context, subject, email, firstName, lastName string) (models.User, error) {
	existing, err := m.users.GetByOpenIDSubject(ctx, subject)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, err
	}

	created, err := m.users.Create(ctx, models.User{
		Username:      uuid.NewString(),
		FirstName:     firstName,
		LastName:      lastName,
		Email:         email,
		Type:          models.UserTypePublic,
		Enabled:       true,
		OpenIDSubject: subject,
	})
	if err != nil {
		// Lost the race against another callback for the same subject.
		if u, lookupErr := m.users.GetByOpenIDSubject(ctx, subject); lookupErr == nil {
			return u, nil
		}
		return models.User{}, err
	}

	m.audit.PublicUserCreated(ctx, created.Username)
	return created, nil
}

// UpdateContactInfo changes a user's own contact fields and audits the
// differences.
func (m *Manager) UpdateContactInfo(ctx context.Context, username, firstName, lastName, email string) error {
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return m.mapNotFound(err)
	}

	var mods []audit.Modification
	if u.FirstName != firstName {
		mods = append(mods, audit.Modification{Field: "first_name", Previous: u.FirstName, New: firstName})
	}
	if u.LastName != lastName {
		mods = append(mods, audit.Modification{Field: "last_name", Previous: u.LastName, New: lastName})
	}
	if u.Email != email {
		mods = append(mods, audit.Modification{Field: "email", Previous: u.Email, New: email})
	}
	if len(mods) == 0 {
		return nil
	}

	if err := m.users.UpdateProfile(ctx, u.ID, models.User{
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		Description: u.Description,
		ValidTo:     u.ValidTo,
	}); err != nil {
		return err
	}

	m.audit.ContactUpdated(ctx, &u, mods)
	return nil
}

// FindUserOrganizations returns the organizations visible to the
// username: everything for admins, memberships for everyone else.
func (m *Manager) FindUserOrganizations(ctx context.Context, username string) ([]models.Organization, error) {
	admin, err := m.IsAdmin(ctx, username)
	if err != nil {
		return nil, err
	}
	if admin {
		return m.orgs.FindAll(ctx)
	}
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, m.mapNotFound(err)
	}
	ids, err := m.memberships.OrganizationIDsForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return m.orgs.GetByIDs(ctx, ids)
}

// FindAllUsers returns the users the actor may see: everyone for
// admins, otherwise the members of the actor's organizations.
func (m *Manager) FindAllUsers(ctx context.Context, actorUsername string) ([]models.User, error) {
	admin, err := m.IsAdmin(ctx, actorUsername)
	if err != nil {
		return nil, err
	}
	if admin {
		return m.users.FindAll(ctx)
	}

	orgs, err := m.FindUserOrganizations(ctx, actorUsername)
	if err != nil {
		return nil, err
	}
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, org := range orgs {
		members, err := m.memberships.UserIDsForOrganization(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		for _, id := range members {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return m.users.FindByIDs(ctx, ids)
}

// isProtectedAdmin reports whether the target is the built-in admin
// identity, whose role and membership are never rewritten.
func (m *Manager) isProtectedAdmin(ctx context.Context, target models.User) (bool, error) {
	if target.Username != models.AdminUsername {
		return false, nil
	}
	roles, err := m.GrantedRoles(ctx, target.Username)
	if err != nil {
		return false, err
	}
	return authz.ContainsAny(roles, authz.RoleAdmin), nil
}

func (m *Manager) mapNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.ErrNotFound
	}
	return err
}

// actor loads the acting user for audit snapshots. Missing actors only
// degrade the snapshot, never the operation.
func (m *Manager) actor(ctx context.Context, username string) (*models.User, error) {
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		m.log.Debug("actor lookup failed for audit snapshot",
			zap.String("username", username), zap.Error(err))
		return &models.User{Username: username}, err
	}
	return &u, nil
}
