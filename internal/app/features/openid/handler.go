// internal/app/features/openid/handler.go
package openid

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/openrsvp/backstage/internal/app/store/oauthstate"
	"github.com/openrsvp/backstage/internal/app/system/accounts"
	"github.com/openrsvp/backstage/internal/app/system/auditlog"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/authz"
	"github.com/openrsvp/backstage/internal/app/system/timeouts"
	"github.com/openrsvp/backstage/internal/domain/models"
)

// Config holds the identity-provider settings from the app config.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether federated login is configured at all.
func (c Config) Enabled() bool {
	return c.IssuerURL != "" && c.ClientID != ""
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Accounts   *accounts.Manager
	States     *oauthstate.Store
	AuditLog   *auditlog.Logger

	issuer   string
	verifier *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
}

// NewHandler discovers the provider's endpoints from its issuer URL. The
// discovery round trip happens once at startup; a dead provider fails the
// boot rather than every login.
func NewHandler(
	ctx context.Context,
	cfg Config,
	sessionMgr *auth.SessionManager,
	accts *accounts.Manager,
	states *oauthstate.Store,
	audit *auditlog.Logger,
	logger *zap.Logger,
) (*Handler, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("openid discovery for %s: %w", cfg.IssuerURL, err)
	}

	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Accounts:   accts,
		States:     states,
		AuditLog:   audit,
		issuer:     cfg.IssuerURL,
		verifier:   provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

// BeginAuth starts the handoff to the identity provider. Any pending
// reservation context already stashed in the session survives the round
// trip untouched.
func (h *Handler) BeginAuth(w http.ResponseWriter, r *http.Request) {
	state := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.States.Save(ctx, state, r.URL.Query().Get("return"), time.Now().Add(oauthstate.TTL)); err != nil {
		h.Log.Error("oauth state save failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, h.oauth2.AuthCodeURL(state), http.StatusFound)
}

// claims is the subset of ID-token claims the account layer needs.
type claims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Callback finishes the handoff. Every failure path lands on the sign-in
// page without touching any account.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		h.Log.Warn("identity provider returned error",
			zap.String("error", errCode),
			zap.String("description", q.Get("error_description")))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	returnURL, valid, err := h.States.Consume(ctx, q.Get("state"))
	if err != nil {
		h.Log.Error("oauth state lookup failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("oauth state mismatch or replay", zap.String("ip", r.RemoteAddr))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	token, err := h.oauth2.Exchange(ctx, q.Get("code"))
	if err != nil {
		h.Log.Warn("code exchange failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		h.Log.Warn("token response missing id_token")
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}
	idToken, err := h.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		h.Log.Warn("id token verification failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	var cl claims
	if err := idToken.Claims(&cl); err != nil {
		h.Log.Warn("id token claims unreadable", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	u, err := h.Accounts.CreatePublicUserIfNotExists(ctx, idToken.Subject, cl.Email, cl.GivenName, cl.FamilyName)
	if err != nil {
		h.Log.Error("public user provisioning failed", zap.Error(err))
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}

	if err := h.establish(ctx, w, r, u); err != nil {
		http.Redirect(w, r, auth.LoginFailedPath, http.StatusSeeOther)
		return
	}
	h.AuditLog.OpenIDLoginSuccess(ctx, r, &u, h.issuer)

	http.Redirect(w, r, h.continuation(w, r, returnURL), http.StatusSeeOther)
}

func (h *Handler) establish(ctx context.Context, w http.ResponseWriter, r *http.Request, u models.User) error {
	roles, err := h.Accounts.GrantedRoles(ctx, u.Username)
	if err != nil {
		h.Log.Error("granted roles lookup failed", zap.Error(err))
		return err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	su := auth.SessionUser{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Name:     strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email:    u.Email,
		Role:     string(authz.MostPrivileged(roles)),
		Roles:    names,
	}
	if err := h.SessionMgr.Establish(w, r, &su); err != nil {
		h.Log.Error("session establish failed", zap.Error(err))
		return err
	}
	return nil
}

// continuation picks the post-login destination. A pending reservation
// wins over everything; the stored return URL comes next; the site root
// is the fallback. The pending context is cleared either way.
func (h *Handler) continuation(w http.ResponseWriter, r *http.Request, returnURL string) string {
	pc, pending, err := h.SessionMgr.ConsumePending(w, r)
	if err != nil {
		h.Log.Warn("pending context consume failed", zap.Error(err))
	}
	if pending {
		return pc.ContinuationPath()
	}
	if returnURL != "" && strings.HasPrefix(returnURL, "/") && !strings.HasPrefix(returnURL, "//") {
		return returnURL
	}
	return "/"
}
