// internal/app/system/auth/auth.go

// Package auth owns the cookie session layer: establishing and destroying
// authenticated sessions, loading the current user into the request
// context, and the 401-versus-redirect split between programmatic callers
// and browser navigations.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Fixed paths and header constants shared with the front end.
const (
	LoginPath           = "/authentication"
	LoginProcessingPath = "/authenticate"
	LoginFailedPath     = "/authentication?failed"
	ChallengeFailedPath = "/authentication?recaptchaFailed"
	SessionExpiredPath  = "/session-expired"

	// Programmatic (AJAX-style) callers identify themselves with this
	// header; they get machine-readable statuses instead of redirects.
	XRequestedWith = "X-Requested-With"
	XMLHttpRequest = "XMLHttpRequest"
)

// Session value keys.
const (
	isAuthKey   = "is_authenticated"
	userIDKey   = "user_id"
	usernameKey = "user_name"
	userRoleKey = "user_role"
)

// SessionUser is the identity snapshot cached in the session and injected
// into r.Context(). Role holds the most privileged role name; Roles holds
// every granted role (authorization rules are set checks, not rank
// checks). Only the user id round-trips through the cookie when a
// UserFetcher is installed.
type SessionUser struct {
	ID       string
	Username string
	Name     string
	Email    string
	Role     string
	Roles    []string
}

// UserFetcher loads fresh user data on each request so role changes and
// disabled accounts take effect immediately. Returning nil means the
// session no longer maps to a usable account.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// SessionManager wraps the gorilla cookie store with the app's session
// conventions.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	log     *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager builds a SessionManager. The secure flag controls the
// cookie Secure attribute and SameSite mode; it must be on in the live
// profile.
func NewSessionManager(sessionKey, name, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteStrictMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetUserFetcher installs the per-request user loader.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// Store exposes the underlying cookie store (logout needs its options).
func (sm *SessionManager) Store() *sessions.CookieStore { return sm.store }

// GetSession returns the request's session, creating one if absent.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// Establish marks the session authenticated for the given user and saves
// the cookie. Existing session values (including a pending federated-login
// context) are preserved.
func (sm *SessionManager) Establish(w http.ResponseWriter, r *http.Request, u *SessionUser) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		// Decode failures fall through to a fresh session.
		sm.log.Warn("session decode failed, using fresh session", zap.Error(err))
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[usernameKey] = u.Username
	sess.Values[userRoleKey] = u.Role
	return sess.Save(r, w)
}

// Destroy invalidates the session unconditionally.
func (sm *SessionManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.log.Warn("session decode failed during logout", zap.Error(err))
	}
	if opts := sm.store.Options; opts != nil {
		sess.Options.Domain = opts.Domain
		sess.Options.Path = opts.Path
		sess.Options.Secure = opts.Secure
		sess.Options.HttpOnly = opts.HttpOnly
		sess.Options.SameSite = opts.SameSite
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the user into context if the session is
// authenticated. With a fetcher installed, the user record is re-read so
// that role edits and disabling apply to in-flight sessions.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.GetSession(r)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			var u *SessionUser
			id := getString(sess, userIDKey)
			if sm.fetcher != nil {
				u = sm.fetcher.FetchUser(r.Context(), id)
			} else {
				u = &SessionUser{
					ID:       id,
					Username: getString(sess, usernameKey),
					Role:     getString(sess, userRoleKey),
				}
			}
			if u != nil {
				r = withUser(r, u)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CurrentUser returns the authenticated user from context, if any.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithUser returns a request carrying u in its context. Exported for
// handler tests.
func WithUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// IsProgrammatic reports whether the caller declared itself an AJAX-style
// client via the X-Requested-With marker header.
func IsProgrammatic(r *http.Request) bool {
	return r.Header.Get(XRequestedWith) == XMLHttpRequest
}

// RejectUnauthenticated ends the request with 401 for programmatic
// callers, or a redirect to the login page preserving the return URI for
// browser navigations.
func RejectUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if IsProgrammatic(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ret := url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, LoginPath+"?return="+ret, http.StatusSeeOther)
}

// RejectForbidden ends the request with 403. Browser navigations get the
// session-expired view in the 403 body so the user sees an explanation
// rather than a blank error.
func RejectForbidden(w http.ResponseWriter, r *http.Request) {
	if IsProgrammatic(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	fmt.Fprintf(w, `<html><body><p>Your session has expired or you are not allowed to view this page. <a href=%q>Sign in again</a>.</p></body></html>`, LoginPath)
}

// RequireSignedIn ensures a user is present in context (set by
// LoadSessionUser) before the wrapped handler runs.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			RejectUnauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
