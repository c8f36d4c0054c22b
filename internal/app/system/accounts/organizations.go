// internal/app/system/accounts/organizations.go
package accounts

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/openrsvp/backstage/internal/app/store/audit"
	"github.com/openrsvp/backstage/internal/app/system/apperr"
	"github.com/openrsvp/backstage/internal/app/system/htmlsanitize"
	"github.com/openrsvp/backstage/internal/domain/models"
)

var slugPattern = regexp.MustCompile(`^[A-Za-z-_0-9]+$`)

// OrganizationInput carries the caller-supplied organization fields.
type OrganizationInput struct {
	Name        string
	Email       string
	Description string
	Slug        string
	ExternalID  string
}

// ValidateSlug checks a candidate slug. Only admins may manage slugs; a
// blank or malformed value is a validation failure and a taken value is
// a conflict. excludeOrgID skips the organization being edited.
func (m *Manager) ValidateSlug(ctx context.Context, actorUsername, slug string, excludeOrgID primitive.ObjectID) error {
	admin, err := m.IsAdmin(ctx, actorUsername)
	if err != nil {
		return err
	}
	if !admin {
		return apperr.Authorization("only admins manage organization slugs")
	}
	if strings.TrimSpace(slug) == "" {
		return apperr.Validation("slug", "slug is required")
	}
	if !slugPattern.MatchString(slug) {
		return apperr.Validation("slug", "slug may only contain letters, digits, dash and underscore")
	}
	taken, err := m.orgs.SlugExistsForOther(ctx, slug, excludeOrgID)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict("slug", apperr.CodeValueAlreadyInUse)
	}
	return nil
}

// CreateOrganization creates an organization with its billing counters.
// The two writes are atomic: an organization never exists without
// exactly two seeded sequences.
func (m *Manager) CreateOrganization(ctx context.Context, actorUsername string, in OrganizationInput) (models.Organization, error) {
	admin, err := m.IsAdmin(ctx, actorUsername)
	if err != nil {
		return models.Organization{}, err
	}
	if !admin {
		return models.Organization{}, apperr.Authorization("only admins create organizations")
	}
	if strings.TrimSpace(in.Name) == "" {
		return models.Organization{}, apperr.Validation("name", "name is required")
	}
	taken, err := m.orgs.ExistsByNameCI(ctx, in.Name)
	if err != nil {
		return models.Organization{}, err
	}
	if taken {
		return models.Organization{}, apperr.Conflict("name", apperr.CodeDuplicateName)
	}
	if in.Slug != "" {
		if err := m.ValidateSlug(ctx, actorUsername, in.Slug, primitive.NilObjectID); err != nil {
			return models.Organization{}, err
		}
	}

	var created models.Organization
	err = m.runTxn(ctx, func(ctx context.Context) error {
		var err error
		created, err = m.orgs.Create(ctx, models.Organization{
			Name:        in.Name,
			Email:       in.Email,
			Description: htmlsanitize.Sanitize(in.Description),
			Slug:        in.Slug,
			ExternalID:  in.ExternalID,
		})
		if err != nil {
			return err
		}
		n, err := m.sequences.InitForOrganization(ctx, created.ID)
		if err != nil {
			return err
		}
		if n != 2 {
			return fmt.Errorf("billing sequence init wrote %d counters, want 2", n)
		}
		return nil
	})
	if err != nil {
		return models.Organization{}, err
	}

	actor, _ := m.actor(ctx, actorUsername)
	m.audit.OrgCreated(ctx, actor, created.Name, created.Slug)
	return created, nil
}

// UpdateOrganization edits an organization. Non-admin owners may change
// the descriptive fields but never the slug or the external id.
func (m *Manager) UpdateOrganization(ctx context.Context, actorUsername string, orgID primitive.ObjectID, in OrganizationInput) error {
	if err := m.requireOrgAdmin(ctx, actorUsername, orgID); err != nil {
		return err
	}
	current, err := m.orgs.GetByID(ctx, orgID)
	if err != nil {
		return m.mapNotFound(err)
	}

	admin, err := m.IsAdmin(ctx, actorUsername)
	if err != nil {
		return err
	}
	if !admin {
		if in.Slug != "" && in.Slug != current.Slug {
			return apperr.Authorization("only admins change organization slugs")
		}
		if in.ExternalID != "" && in.ExternalID != current.ExternalID {
			return apperr.Authorization("only admins change external ids")
		}
		in.Slug = ""
		in.ExternalID = ""
	} else if in.Slug != "" && in.Slug != current.Slug {
		if err := m.ValidateSlug(ctx, actorUsername, in.Slug, orgID); err != nil {
			return err
		}
	}

	var mods []audit.Modification
	if in.Name != "" && in.Name != current.Name {
		mods = append(mods, audit.Modification{Field: "name", Previous: current.Name, New: in.Name})
	}
	if in.Email != current.Email {
		mods = append(mods, audit.Modification{Field: "email", Previous: current.Email, New: in.Email})
	}
	if in.Slug != "" && in.Slug != current.Slug {
		mods = append(mods, audit.Modification{Field: "slug", Previous: current.Slug, New: in.Slug})
	}

	if err := m.orgs.Update(ctx, orgID, models.Organization{
		Name:        in.Name,
		Email:       in.Email,
		Description: htmlsanitize.Sanitize(in.Description),
		Slug:        in.Slug,
		ExternalID:  in.ExternalID,
	}); err != nil {
		return err
	}

	actor, _ := m.actor(ctx, actorUsername)
	name := in.Name
	if name == "" {
		name = current.Name
	}
	m.audit.OrgUpdated(ctx, actor, name, mods)
	return nil
}
