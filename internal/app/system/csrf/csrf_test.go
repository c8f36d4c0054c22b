package csrf_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/csrf"
)

func newGuard(t *testing.T) *csrf.Guard {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-0123456789abcdef", "test-session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return csrf.NewGuard(sm, false, zap.NewNop())
}

func TestExempt(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   bool
	}{
		{"GET is safe", "GET", "/admin/api/events", true},
		{"HEAD is safe", "HEAD", "/", true},
		{"OPTIONS is safe", "OPTIONS", "/admin/api/users", true},
		{"TRACE is safe", "TRACE", "/", true},
		{"POST is protected", "POST", "/admin/api/users", false},
		{"PUT is protected", "PUT", "/admin/api/users/1/reset-password", false},
		{"DELETE is protected", "DELETE", "/admin/api/users/1", false},
		{"payment webhook exempt", "POST", "/api/payment/webhook/stripe", true},
		{"generic webhook exempt", "POST", "/api/webhook/mailer", true},
		{"csp report exempt", "POST", "/report-csp-violation", true},
		{"lookalike webhook path protected", "POST", "/api/webhooks/evil", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if got := csrf.Exempt(r); got != tt.want {
				t.Errorf("Exempt(%s %s): got %v, want %v", tt.method, tt.path, got, tt.want)
			}
		})
	}
}

func TestProtect_RejectsMissingToken(t *testing.T) {
	g := newGuard(t)
	protected := g.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a token")
	}))

	req := httptest.NewRequest("POST", "/admin/api/users", nil)
	req.Header.Set(auth.XRequestedWith, auth.XMLHttpRequest)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestProtect_RejectsWrongToken(t *testing.T) {
	g := newGuard(t)
	protected := g.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with a forged token")
	}))

	req := httptest.NewRequest("POST", "/admin/api/users", nil)
	req.Header.Set(auth.XRequestedWith, auth.XMLHttpRequest)
	req.Header.Set(csrf.RequestHeader, "forged-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// Full round trip: a GET to an exposed path issues the token, which a
// subsequent POST echoes in the request header.
func TestExposeThenProtect_RoundTrip(t *testing.T) {
	g := newGuard(t)
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	get := httptest.NewRequest("GET", "/admin/api/events", nil)
	getRec := httptest.NewRecorder()
	g.Expose(noop).ServeHTTP(getRec, get)

	token := getRec.Header().Get(csrf.TokenName)
	if token == "" {
		t.Fatal("exposed GET should carry a token header")
	}

	var sessionCookie *http.Cookie
	mirrored := false
	for _, c := range getRec.Result().Cookies() {
		switch c.Name {
		case "test-session":
			sessionCookie = c
		case csrf.TokenName:
			mirrored = true
			if c.Value != token {
				t.Errorf("mirror cookie: got %q, want %q", c.Value, token)
			}
		}
	}
	if sessionCookie == nil {
		t.Fatal("token issuance must persist the session cookie")
	}
	if !mirrored {
		t.Error("admin namespace should get the legacy mirror cookie")
	}

	handled := false
	protected := g.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
	}))

	post := httptest.NewRequest("POST", "/admin/api/users", nil)
	post.AddCookie(sessionCookie)
	post.Header.Set(csrf.RequestHeader, token)
	postRec := httptest.NewRecorder()
	protected.ServeHTTP(postRec, post)

	if !handled {
		t.Fatalf("valid token must pass, got status %d", postRec.Code)
	}
}

func TestExpose_StableTokenPerSession(t *testing.T) {
	g := newGuard(t)
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	first := httptest.NewRequest("GET", "/admin/api/events", nil)
	firstRec := httptest.NewRecorder()
	g.Expose(noop).ServeHTTP(firstRec, first)
	token := firstRec.Header().Get(csrf.TokenName)

	var sessionCookie *http.Cookie
	for _, c := range firstRec.Result().Cookies() {
		if c.Name == "test-session" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("missing session cookie")
	}

	second := httptest.NewRequest("GET", "/admin/api/users", nil)
	second.AddCookie(sessionCookie)
	secondRec := httptest.NewRecorder()
	g.Expose(noop).ServeHTTP(secondRec, second)

	if got := secondRec.Header().Get(csrf.TokenName); got != token {
		t.Errorf("token changed across requests in the same session: %q vs %q", token, got)
	}
}

func TestExpose_OnlyAPIAndStatusPaths(t *testing.T) {
	g := newGuard(t)
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		path string
		want bool
	}{
		{"/admin/api/events", true},
		{"/api/v2/public/event/summer", true},
		{"/api/v2/admin/events", true},
		{csrf.AuthenticationStatusPath, true},
		{"/event/summer-fest", false},
		{"/authentication", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		rec := httptest.NewRecorder()
		g.Expose(noop).ServeHTTP(rec, req)

		got := rec.Header().Get(csrf.TokenName) != ""
		if got != tt.want {
			t.Errorf("token exposure on %s: got %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestExpose_PublicAPISkipsMirrorCookie(t *testing.T) {
	g := newGuard(t)
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/api/v2/public/event/summer", nil)
	rec := httptest.NewRecorder()
	g.Expose(noop).ServeHTTP(rec, req)

	if rec.Header().Get(csrf.TokenName) == "" {
		t.Fatal("public API GET should expose the token header")
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrf.TokenName {
			t.Error("public API namespace must not receive the legacy mirror cookie")
		}
	}
}

func TestProtect_ExemptWebhookSkipsCheck(t *testing.T) {
	g := newGuard(t)
	handled := false
	protected := g.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
	}))

	req := httptest.NewRequest("POST", "/api/payment/webhook/stripe", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if !handled {
		t.Errorf("webhook POST must bypass the token check, got status %d", rec.Code)
	}
}
