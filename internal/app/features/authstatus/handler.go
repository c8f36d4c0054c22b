// internal/app/features/authstatus/handler.go

// Package authstatus serves the lightweight status probe that clients
// poll to detect session expiry. The path doubles as a CSRF token
// refresh point for anonymous visitors.
package authstatus

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/features/shared/respond"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/csrf"
)

// Path is the fixed probe endpoint.
const Path = csrf.AuthenticationStatusPath

type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

type status struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

// Serve handles GET /authentication-status for both anonymous and
// authenticated callers.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	var s status
	if u, ok := auth.CurrentUser(r); ok {
		s = status{Authenticated: true, Username: u.Username, Roles: u.Roles}
	}
	respond.JSON(w, http.StatusOK, s)
}
