// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	userstore "github.com/openrsvp/backstage/internal/app/store/users"
	"github.com/openrsvp/backstage/internal/app/system/accounts"
	"github.com/openrsvp/backstage/internal/app/system/auditlog"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/password"
	"github.com/openrsvp/backstage/internal/app/system/ratelimit"
	"github.com/openrsvp/backstage/internal/app/system/recaptcha"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// DefaultLandingPath is where a successful login goes without an
// explicit return URL.
const DefaultLandingPath = "/admin"

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Users      *userstore.Store
	Accounts   *accounts.Manager
	Encoder    password.Encoder
	Recaptcha  recaptcha.Verifier
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter

	// Demo enables just-in-time provisioning of unknown usernames. Only
	// the demo profile wires it true; live builds never set it.
	Demo bool

	OpenIDEnabled bool
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	users *userstore.Store,
	accts *accounts.Manager,
	encoder password.Encoder,
	verifier recaptcha.Verifier,
	audit *auditlog.Logger,
	demo bool,
	openIDEnabled bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:           logger,
		SessionMgr:    sessionMgr,
		Users:         users,
		Accounts:      accts,
		Encoder:       encoder,
		Recaptcha:     verifier,
		AuditLog:      audit,
		Limiter:       ratelimit.NewLoginLimiter(),
		Demo:          demo,
		OpenIDEnabled: openIDEnabled,
	}
}

var loginPage = template.Must(template.New("login").Parse(`<!doctype html>
<html><head><title>Sign in</title></head><body>
<h1>Sign in</h1>
{{if .Failed}}<p>Sign-in failed. Check your username and password.</p>{{end}}
{{if .ChallengeFailed}}<p>The verification challenge could not be completed. Try again.</p>{{end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="return" value="{{.ReturnURL}}">
<label>Username <input name="username" autocomplete="username"></label>
<label>Password <input type="password" name="password" autocomplete="current-password"></label>
<button type="submit">Sign in</button>
</form>
{{if .OpenIDEnabled}}<p><a href="/openid/authentication">Sign in with your identity provider</a></p>{{end}}
</body></html>`))

type loginPageData struct {
	Action          string
	ReturnURL       string
	Failed          bool
	ChallengeFailed bool
	OpenIDEnabled   bool
}

// ServeLogin handles GET /authentication.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	_, failed := q["failed"]
	_, challengeFailed := q["recaptchaFailed"]

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := loginPage.Execute(w, loginPageData{
		Action:          auth.LoginProcessingPath,
		ReturnURL:       q.Get("return"),
		Failed:          failed,
		ChallengeFailed: challengeFailed,
		OpenIDEnabled:   h.OpenIDEnabled,
	})
	if err != nil {
		h.Log.Error("render login page", zap.Error(err))
	}
}

// HandleAuthenticate handles POST /authenticate. The bot challenge runs
// before any credential work so a failed challenge reveals nothing
// about the account.
func (h *Handler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !h.Recaptcha.Verify(ctx, r.FormValue("g-recaptcha-response"), ratelimit.ClientIP(r)) {
		http.Redirect(w, r, auth.ChallengeFailedPath, http.StatusSeeOther)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	pass := r.FormValue("password")

	if allowed, reason := h.Limiter.Check(r, username); !allowed {
		h.AuditLog.LoginFailed(ctx, r, username, reason)
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	if username == "" || pass == "" {
		h.AuditLog.LoginFailed(ctx, r, username, "missing credentials")
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	u, err := h.Users.GetByUsername(ctx, username)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if h.Demo {
			h.provisionDemoUser(ctx, w, r, username, pass)
			return
		}
		h.AuditLog.LoginFailed(ctx, r, username, "user not found")
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.Log.Error("login lookup failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	if !u.Enabled || u.Expired(time.Now()) {
		h.AuditLog.LoginFailed(ctx, r, username, "account disabled or expired")
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}
	if !h.Encoder.Matches(pass, u.Password) {
		h.AuditLog.LoginFailed(ctx, r, username, "wrong password")
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	h.Limiter.ResetUsername(username)
	h.establish(ctx, w, r, u)
}

// provisionDemoUser creates an operator account on first login.
func (h *Handler) provisionDemoUser(ctx context.Context, w http.ResponseWriter, r *http.Request, username, pass string) {
	hash, err := h.Encoder.Hash(pass)
	if err != nil {
		h.Log.Error("demo provision hash failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}
	u, err := h.Users.Create(ctx, models.User{
		Username:  username,
		Password:  hash,
		FirstName: username,
		Type:      models.UserTypeStandard,
		Enabled:   true,
	})
	if err != nil {
		h.Log.Error("demo provision failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}
	h.Log.Info("demo user provisioned", zap.String("username", username))
	h.establish(ctx, w, r, u)
}

func (h *Handler) establish(ctx context.Context, w http.ResponseWriter, r *http.Request, u models.User) {
	roles, err := h.Accounts.GrantedRoles(ctx, u.Username)
	if err != nil {
		h.Log.Error("granted roles lookup failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	su := auth.SessionUser{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Name:     strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email:    u.Email,
		Role:     string(authz.MostPrivileged(roles)),
		Roles:    roleNames(roles),
	}
	if err := h.SessionMgr.Establish(w, r, &su); err != nil {
		h.Log.Error("session establish failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, &u)
	ret := urlutil.SafeReturn(r.FormValue("return"), "", DefaultLandingPath)
	http.Redirect(w, r, ret, http.StatusSeeOther)
}

func roleNames(roles []authz.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
