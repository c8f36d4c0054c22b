// internal/app/system/accounts/manager.go

// Package accounts is the mutation boundary for users, roles,
// memberships and organizations. Handlers never write those collections
// directly; every privileged change flows through the Manager so the
// role checks, self-operation guards and audit records cannot be
// bypassed.
package accounts

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/auditlog"
	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/password"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// UserStore is the user persistence surface the Manager needs.
type UserStore interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByOpenIDSubject(ctx context.Context, subject string) (models.User, error)
	ExistsByUsernameCI(ctx context.Context, username string, excludeID primitive.ObjectID) (bool, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, u models.User) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	SetEnabled(ctx context.Context, id primitive.ObjectID, enabled bool) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	FindAll(ctx context.Context) ([]models.User, error)
}

// AuthorityStore persists granted roles keyed by username.
type AuthorityStore interface {
	Grant(ctx context.Context, username, role string) error
	GrantedRoles(ctx context.Context, username string) ([]string, error)
	ReplaceAll(ctx context.Context, username string, roles []string) error
	RevokeAll(ctx context.Context, username string) error
}

// MembershipStore persists the user-to-organization edges.
type MembershipStore interface {
	Add(ctx context.Context, userID, orgID primitive.ObjectID) error
	ReplaceForUser(ctx context.Context, userID primitive.ObjectID, orgIDs []primitive.ObjectID) error
	RemoveAllForUser(ctx context.Context, userID primitive.ObjectID) error
	IsMember(ctx context.Context, userID, orgID primitive.ObjectID) (bool, error)
	OrganizationIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	UserIDsForOrganization(ctx context.Context, orgID primitive.ObjectID) ([]primitive.ObjectID, error)
}

// OrganizationStore is the organization persistence surface.
type OrganizationStore interface {
	Create(ctx context.Context, org models.Organization) (models.Organization, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Organization, error)
	Update(ctx context.Context, id primitive.ObjectID, org models.Organization) error
	ExistsByNameCI(ctx context.Context, name string) (bool, error)
	SlugExistsForOther(ctx context.Context, slug string, excludeID primitive.ObjectID) (bool, error)
	FindAll(ctx context.Context) ([]models.Organization, error)
}

// SequenceStore seeds billing counters alongside organization creation.
type SequenceStore interface {
	InitForOrganization(ctx context.Context, orgID primitive.ObjectID) (int, error)
}

// TxnRunner executes fn atomically. Production wires txn.Run; tests can
// pass nil, which runs fn directly.
type TxnRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Deps carries the Manager's collaborators.
type Deps struct {
	Users       UserStore
	Authorities AuthorityStore
	Memberships MembershipStore
	Orgs        OrganizationStore
	Sequences   SequenceStore
	Encoder     password.Encoder
	Audit       *auditlog.Logger
	Txn         TxnRunner
	Log         *zap.Logger
}

// Manager implements the account and organization operations.
type Manager struct {
	users       UserStore
	authorities AuthorityStore
	memberships MembershipStore
	orgs        OrganizationStore
	sequences   SequenceStore
	encoder     password.Encoder
	audit       *auditlog.Logger
	runTxn      TxnRunner
	log         *zap.Logger
}

// New builds a Manager.
func New(d Deps) *Manager {
	run := d.Txn
	if run == nil {
		run = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		users:       d.Users,
		authorities: d.Authorities,
		memberships: d.Memberships,
		orgs:        d.Orgs,
		sequences:   d.Sequences,
		encoder:     d.Encoder,
		audit:       d.Audit,
		runTxn:      run,
		log:         log,
	}
}

// GrantedRoles returns the parsed roles granted to a username.
func (m *Manager) GrantedRoles(ctx context.Context, username string) ([]authz.Role, error) {
	names, err := m.authorities.GrantedRoles(ctx, username)
	if err != nil {
		return nil, err
	}
	roles := make([]authz.Role, 0, len(names))
	for _, n := range names {
		if role, ok := authz.Parse(n); ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// MostPrivilegedRole reduces a user's grants to their single strongest
// role. Users without grants are treated as operators.
func (m *Manager) MostPrivilegedRole(ctx context.Context, username string) (authz.Role, error) {
	roles, err := m.GrantedRoles(ctx, username)
	if err != nil {
		return "", err
	}
	return authz.MostPrivileged(roles), nil
}

// IsAdmin reports whether the username holds the ADMIN role.
func (m *Manager) IsAdmin(ctx context.Context, username string) (bool, error) {
	roles, err := m.GrantedRoles(ctx, username)
	if err != nil {
		return false, err
	}
	return authz.ContainsAny(roles, authz.RoleAdmin), nil
}

// IsOwner reports whether the username holds owner-level privileges.
// API consumers count as owners for read scoping.
func (m *Manager) IsOwner(ctx context.Context, username string) (bool, error) {
	roles, err := m.GrantedRoles(ctx, username)
	if err != nil {
		return false, err
	}
	return authz.ContainsAny(roles, authz.RoleAdmin, authz.RoleOwner, authz.RoleAPIConsumer), nil
}

// IsOwnerOfOrganization reports whether the username may administer the
// given organization: admins always, owners only through membership.
func (m *Manager) IsOwnerOfOrganization(ctx context.Context, username string, orgID primitive.ObjectID) (bool, error) {
	admin, err := m.IsAdmin(ctx, username)
	if err != nil {
		return false, err
	}
	if admin {
		return true, nil
	}
	owner, err := m.IsOwner(ctx, username)
	if err != nil {
		return false, err
	}
	if !owner {
		return false, nil
	}
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return m.memberships.IsMember(ctx, u.ID, orgID)
}

// AvailableRoles returns the roles the username may assign to others.
// Admins and owners get the assignable set; everyone else, including
// API-key identities, gets nothing.
func (m *Manager) AvailableRoles(ctx context.Context, username string) ([]authz.Role, error) {
	u, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u.Type == models.UserTypeAPIKey {
		return nil, nil
	}
	owner, err := m.IsOwner(ctx, username)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, nil
	}
	return authz.AssignableRoles(), nil
}
