// Package ownership decides whether the authenticated user administers
// the organization a request targets. The rule table consults it for
// the GET endpoints that expose per-organization exports, invoices and
// audit data.
package ownership

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/secrules"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// Resolver maps a request to the owning organization. ok is false when
// the request carries no resolvable organization reference.
type Resolver interface {
	OrganizationFor(r *http.Request) (primitive.ObjectID, bool, error)
}

// OrgChecker is the membership check the predicate delegates to.
type OrgChecker interface {
	IsOwnerOfOrganization(ctx context.Context, username string, orgID primitive.ObjectID) (bool, error)
}

// Checker builds the rule-table predicate. An unresolvable organization
// denies access; resolver errors propagate so the caller can 500.
func Checker(res Resolver, accts OrgChecker, log *zap.Logger) secrules.OwnershipChecker {
	return func(r *http.Request, username string) (bool, error) {
		orgID, ok, err := res.OrganizationFor(r)
		if err != nil {
			return false, err
		}
		if !ok {
			log.Debug("ownership check found no organization reference",
				zap.String("path", r.URL.Path),
				zap.String("username", username))
			return false, nil
		}
		return accts.IsOwnerOfOrganization(r.Context(), username, orgID)
	}
}

// OrgLookup resolves organization slugs to records.
type OrgLookup interface {
	GetBySlug(ctx context.Context, slug string) (models.Organization, error)
}

// RequestResolver is the production Resolver. It reads the organization
// from the organizationId query parameter, falling back to the
// organization slug parameter.
type RequestResolver struct {
	orgs OrgLookup
}

func NewRequestResolver(orgs OrgLookup) *RequestResolver {
	return &RequestResolver{orgs: orgs}
}

func (rr *RequestResolver) OrganizationFor(r *http.Request) (primitive.ObjectID, bool, error) {
	if raw := query.Get(r, "organizationId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return primitive.NilObjectID, false, nil
		}
		return id, true, nil
	}
	if slug := query.Get(r, "organization"); slug != "" {
		org, err := rr.orgs.GetBySlug(r.Context(), slug)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return primitive.NilObjectID, false, nil
		}
		if err != nil {
			return primitive.NilObjectID, false, err
		}
		return org.ID, true, nil
	}
	return primitive.NilObjectID, false, nil
}
