// internal/app/system/csrf/csrf.go

// Package csrf implements the anti-forgery token layer: a per-session
// unpredictable token required on state-changing requests, an exemption
// predicate for webhooks and the CSP report endpoint, and eager token
// exposure for API clients.
package csrf

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/secrules"
)

// TokenName is the shared constant between pipeline and front end: it is
// the response header carrying a fresh token and the name of the legacy
// mirror cookie.
const TokenName = "XSRF-TOKEN"

// RequestHeader is where clients echo the token on mutating calls.
const RequestHeader = "X-XSRF-TOKEN"

// FormField is the fallback for classic form posts.
const FormField = "_csrf"

// AuthenticationStatusPath also receives eager tokens so the front end
// can bootstrap before any API call.
const AuthenticationStatusPath = "/authentication-status"

const sessionTokenKey = "csrf_token"

var safeMethod = regexp.MustCompile(`^(GET|HEAD|TRACE|OPTIONS)$`)

// Exempt reproduces the exemption predicate exactly: safe methods,
// inbound webhook namespaces, and the CSP violation report endpoint.
// Broadening it is a security regression; narrowing it breaks webhooks.
func Exempt(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/webhook/") ||
		strings.HasPrefix(r.URL.Path, "/api/payment/webhook/") {
		return true
	}
	if safeMethod.MatchString(r.Method) {
		return true
	}
	return r.URL.Path == "/report-csp-violation"
}

// Guard issues and verifies session-bound tokens.
type Guard struct {
	sm     *auth.SessionManager
	secure bool // live profile: Secure + SameSite=Strict mirror cookie
	log    *zap.Logger
}

// NewGuard builds a Guard. secure should be true only in the live
// profile.
func NewGuard(sm *auth.SessionManager, secure bool, logger *zap.Logger) *Guard {
	return &Guard{sm: sm, secure: secure, log: logger}
}

// token returns the session's token, generating and persisting one if the
// session has none yet.
func (g *Guard) token(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := g.sm.GetSession(r)
	if err != nil {
		g.log.Warn("session decode failed while loading csrf token", zap.Error(err))
	}
	if tok, ok := sess.Values[sessionTokenKey].(string); ok && tok != "" {
		return tok, nil
	}
	tok := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	sess.Values[sessionTokenKey] = tok
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return tok, nil
}

// Protect rejects state-changing requests without a valid token. Failures
// are authentication-class: 401 for programmatic callers, a login
// redirect for browsers.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Exempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := g.sm.GetSession(r)
		if err != nil {
			g.log.Warn("session decode failed during csrf check", zap.Error(err))
		}
		want, _ := sess.Values[sessionTokenKey].(string)

		got := r.Header.Get(RequestHeader)
		if got == "" {
			got = r.PostFormValue(FormField)
		}

		if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
			g.log.Info("csrf token rejected",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			auth.RejectUnauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Expose eagerly issues (or reuses) the session token on GET requests to
// the API namespaces and mirrors it into the response header, so front
// ends can echo it on subsequent mutating calls. Admin namespaces also
// get the legacy cookie mirror.
func (g *Guard) Expose(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && exposedPath(r.URL.Path) {
			tok, err := g.token(w, r)
			if err != nil {
				g.log.Error("csrf token issue failed", zap.Error(err))
			} else {
				w.Header().Set(TokenName, tok)
				if !strings.HasPrefix(r.URL.Path, secrules.APIV2Public+"/") {
					// Legacy admin front end still reads the cookie.
					g.addCookie(w, tok)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func exposedPath(path string) bool {
	return strings.HasPrefix(path, secrules.APIV2Public+"/") ||
		strings.HasPrefix(path, secrules.AdminAPI+"/") ||
		strings.HasPrefix(path, secrules.APIV2Admin+"/") ||
		path == AuthenticationStatusPath
}

func (g *Guard) addCookie(w http.ResponseWriter, tok string) {
	c := &http.Cookie{
		Name:   TokenName,
		Value:  tok,
		Path:   "/",
		Secure: g.secure,
	}
	if g.secure {
		c.SameSite = http.SameSiteStrictMode
	}
	http.SetCookie(w, c)
}
