// internal/app/features/users/handler.go

// Package users serves the back-office user administration API under
// /admin/api/users.
package users

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/features/shared/respond"
	"github.com/openrsvp/backstage/internal/app/system/accounts"
	"github.com/openrsvp/backstage/internal/app/system/apperr"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
	"github.com/openrsvp/backstage/internal/domain/models"
)

type Handler struct {
	Log      *zap.Logger
	Accounts *accounts.Manager
}

func NewHandler(accts *accounts.Manager, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, Accounts: accts}
}

// userPayload is the wire shape for create and edit requests.
type userPayload struct {
	ID             string `json:"id,omitempty"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Description    string `json:"description,omitempty"`
	Type           string `json:"type"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId"`
	ValidTo        string `json:"validTo,omitempty"` // RFC 3339
}

func (p userPayload) toInput() (accounts.UserInput, error) {
	in := accounts.UserInput{
		Username:    p.Username,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		Description: p.Description,
		Type:        models.UserType(p.Type),
	}
	if in.Type == "" {
		in.Type = models.UserTypeStandard
	}
	role, ok := authz.Parse(p.Role)
	if !ok {
		return in, apperr.Validation("role", "unknown role")
	}
	in.Role = role

	orgID, err := primitive.ObjectIDFromHex(p.OrganizationID)
	if err != nil {
		return in, apperr.Validation("organizationId", "malformed organization id")
	}
	in.OrganizationID = orgID

	if p.ValidTo != "" {
		t, err := time.Parse(time.RFC3339, p.ValidTo)
		if err != nil {
			return in, apperr.Validation("validTo", "expected RFC 3339 timestamp")
		}
		in.ValidTo = &t
	}
	return in, nil
}

// Current handles GET /admin/api/users/current.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	isAdmin, err := h.Accounts.IsAdmin(ctx, u.Username)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	isOwner, err := h.Accounts.IsOwner(ctx, u.Username)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"username": u.Username,
		"name":     u.Name,
		"email":    u.Email,
		"role":     u.Role,
		"roles":    u.Roles,
		"isAdmin":  isAdmin,
		"isOwner":  isOwner,
	})
}

// Check handles POST /admin/api/users/check: form validation without a
// write, used by the client before submitting a create or edit.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var p userPayload
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	in, err := p.toInput()
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	excludeID := primitive.NilObjectID
	if p.ID != "" {
		if excludeID, err = primitive.ObjectIDFromHex(p.ID); err != nil {
			respond.Err(w, r, h.Log, apperr.Validation("id", "malformed id"))
			return
		}
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.ValidateUser(ctx, in, excludeID); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// EditCurrent handles POST /admin/api/users/current/edit: contact info
// only, never role or organization.
func (h *Handler) EditCurrent(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	}
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.UpdateContactInfo(ctx, u.Username, p.FirstName, p.LastName, p.Email); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// UpdateCurrentPassword handles POST /admin/api/users/current/update-password.
func (h *Handler) UpdateCurrentPassword(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p struct {
		OldPassword        string `json:"oldPassword"`
		NewPassword        string `json:"newPassword"`
		NewPasswordConfirm string `json:"newPasswordConfirm"`
	}
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.ValidateNewPassword(ctx, u.Username, p.OldPassword, p.NewPassword, p.NewPasswordConfirm); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	if err := h.Accounts.UpdatePassword(ctx, u.Username, p.NewPassword); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// List handles GET /admin/api/users, scoped to the caller's organizations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	list, err := h.Accounts.FindAllUsers(ctx, u.Username)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

// Create handles POST /admin/api/users. The response carries the
// generated password once; it is never retrievable again.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p userPayload
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	in, err := p.toInput()
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	created, clearPassword, err := h.Accounts.InsertUser(ctx, u.Username, in)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{
		"user":     created,
		"password": clearPassword,
	})
}

// Update handles POST /admin/api/users/edit.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p userPayload
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	targetID, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		respond.Err(w, r, h.Log, apperr.Validation("id", "malformed id"))
		return
	}
	in, err := p.toInput()
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.EditUser(ctx, u.Username, targetID, in); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// SetEnabled handles POST /admin/api/users/{id}/enable/{enable}.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	targetID, err := pathID(r)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	enable := chi.URLParam(r, "enable") == "true"

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.SetEnabled(ctx, u.Username, targetID, enable); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"enabled": enable})
}

// Delete handles DELETE /admin/api/users/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	targetID, err := pathID(r)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.Accounts.DeleteUser(ctx, u.Username, targetID); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ResetPassword handles PUT /admin/api/users/{id}/reset-password. Like
// Create, the new password appears exactly once in the response.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	targetID, err := pathID(r)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	newPassword, err := h.Accounts.ResetPassword(ctx, u.Username, targetID)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"password": newPassword})
}

// BulkAPIKeys handles POST /admin/api/api-keys/bulk: one API-key identity
// per description, all in one organization with one role.
func (h *Handler) BulkAPIKeys(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}
	var p struct {
		OrganizationID string   `json:"organizationId"`
		Role           string   `json:"role"`
		Descriptions   []string `json:"descriptions"`
	}
	if err := respond.Decode(w, r, &p); err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	orgID, err := primitive.ObjectIDFromHex(p.OrganizationID)
	if err != nil {
		respond.Err(w, r, h.Log, apperr.Validation("organizationId", "malformed organization id"))
		return
	}
	role, ok := authz.Parse(p.Role)
	if !ok {
		respond.Err(w, r, h.Log, apperr.Validation("role", "unknown role"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	created, err := h.Accounts.BulkInsertAPIKeys(ctx, u.Username, orgID, role, p.Descriptions)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{
		"created": len(created),
		"users":   created,
	})
}

// AvailableRoles handles GET /admin/api/users/roles: the set the caller
// may assign.
func (h *Handler) AvailableRoles(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		auth.RejectUnauthenticated(w, r)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	roles, err := h.Accounts.AvailableRoles(ctx, u.Username)
	if err != nil {
		respond.Err(w, r, h.Log, err)
		return
	}
	respond.JSON(w, http.StatusOK, roles)
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
