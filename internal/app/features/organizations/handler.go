// internal/app/features/organizations/handler.go

// Package organizations serves the tenant administration API under
// /admin/api/organizations.
package organizations

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/features/shared/respond"
	organizationstore "github.com/openrsvp/backstage/internal/app/store/organizations"
	"github.com/openrsvp/backstage/internal/app/system/accounts"
	"github.com/openrsvp/backstage/internal/app/system/apperr"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
)

type Handler struct {
	Log      *zap.Logger
	Accounts *accounts.Manager
	Orgs     *organizationstore.Store
}

func NewHandler(accts *accounts.Manager, orgs *organizationstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, Accounts: accts, Orgs: orgs}
}

type orgPayload struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Description string `json:"description"`
	Slug        string `json:"slug,omitempty"`
	ExternalID  string `json:"externalId,omitempty"`
}

func (p orgPayload) toInput() accounts.OrganizationInput {
	return accounts.OrganizationInput{
		Name:        p.Name,
		Email:       p.Email,
		Description: p.Description,
		Slug:        p.Slug,
		ExternalID:  p.ExternalID,
	}
}

// List handles GET /admin/api/organizations: the caller's organizations,
// or every organization for an admin.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Accounts.FindUserOrganizations(ctx, u.Username)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// Get handles GET /admin/api/organizations/{id}. Visibility follows
// membership, not role: a non-admin only sees organizations they belong
// to.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	id, err := pathID(r)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	allowed, err := h.Accounts.IsOwnerOfOrganization(ctx, u.Username, id)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	if !allowed {
		respond.Err(w, r, h.Log, apperr.Authorization("organization is not visible to this user"))
		return
	}

	org, err := h.Orgs.GetByID(ctx, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.Err(w, r, h.Log, apperr.ErrNotFound)
		return
	}
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, org)
}

// Create handles POST /admin/api/organizations/new. Admin only; the
// manager enforces it.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p orgPayload
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	org, err := h.Accounts.CreateOrganization(ctx, u.Username, p.toInput())
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, org)
}

// Update handles POST /admin/api/organizations/update.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p orgPayload
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		respond.Err(w, r, h.Log, apperr.Validation("id", "malformed id"))
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.UpdateOrganization(ctx, u.Username, id, p.toInput()); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// ValidateSlug handles POST /admin/api/organizations/validate-slug.
func (h *Handler) ValidateSlug(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p struct {
		Slug string `json:"slug"`
		ID   string `json:"id,omitempty"`
	}
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	excludeID := primitive.NilObjectID
	if p.ID != "" {
		var err error
		if excludeID, err = primitive.ObjectIDFromHex(p.ID); err != nil {
			respond.Err(w, r, h.Log, apperr.Validation("id", "malformed id"))
			return
		}
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.ValidateSlug(ctx, u.Username, p.Slug, excludeID); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeouts.Short())
}

func pathID(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("id", "malformed id")
	}
	return id, nil
}
