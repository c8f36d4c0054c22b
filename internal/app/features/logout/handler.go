// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/auditlog"
	"github.com/openrsvp/backstage/internal/app/system/auth"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, SessionMgr: sessionMgr, AuditLog: audit}
}

// Serve destroys the session and sends the caller back to the sign-in
// page. Logging out is always permitted, authenticated or not.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.Username)
	}
	if err := h.SessionMgr.Destroy(w, r); err != nil {
		h.Log.Warn("session destroy failed", zap.Error(err))
	}
	http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
}
