package login_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/features/login"
	"github.com/openrsvp/backstage/internal/app/system/auth"
	"github.com/openrsvp/backstage/internal/app/system/password"
	"github.com/openrsvp/backstage/internal/app/system/recaptcha"
)

type failChallenge struct{}

func (failChallenge) Verify(context.Context, string, string) bool { return false }

func newTestHandler(t *testing.T, verifier recaptcha.Verifier) *login.Handler {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-0123456789abcdef", "test-session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	// Stores stay nil: these tests only exercise the paths that never
	// reach persistence.
	return login.NewHandler(sm, nil, nil, password.NewBcrypt(), verifier, nil, false, false, zap.NewNop())
}

func TestServeLogin(t *testing.T) {
	h := newTestHandler(t, recaptcha.Disabled{})

	t.Run("plain page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeLogin(rec, httptest.NewRequest("GET", auth.LoginPath, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `action="`+auth.LoginProcessingPath+`"`) {
			t.Error("form should post to the processing path")
		}
		if strings.Contains(body, "Sign-in failed") {
			t.Error("failure banner must not show without the marker")
		}
		if strings.Contains(body, "/openid/authentication") {
			t.Error("federated link must not show when OpenID is off")
		}
	})

	t.Run("failed banner", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeLogin(rec, httptest.NewRequest("GET", auth.LoginFailedPath, nil))
		if !strings.Contains(rec.Body.String(), "Sign-in failed") {
			t.Error("failed marker should render the failure banner")
		}
	})

	t.Run("challenge banner", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeLogin(rec, httptest.NewRequest("GET", auth.ChallengeFailedPath, nil))
		if !strings.Contains(rec.Body.String(), "verification challenge") {
			t.Error("recaptchaFailed marker should render the challenge banner")
		}
	})

	t.Run("return url carried into the form", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeLogin(rec, httptest.NewRequest("GET", auth.LoginPath+"?return=%2Fadmin%2Fapi%2Fevents", nil))
		if !strings.Contains(rec.Body.String(), `value="/admin/api/events"`) {
			t.Error("return URL should round-trip through the hidden field")
		}
	})

	t.Run("openid link when enabled", func(t *testing.T) {
		h2 := newTestHandler(t, recaptcha.Disabled{})
		h2.OpenIDEnabled = true
		rec := httptest.NewRecorder()
		h2.ServeLogin(rec, httptest.NewRequest("GET", auth.LoginPath, nil))
		if !strings.Contains(rec.Body.String(), "/openid/authentication") {
			t.Error("federated link should show when OpenID is on")
		}
	})
}

func postLogin(h *login.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", auth.LoginProcessingPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.HandleAuthenticate(rec, req)
	return rec
}

func TestHandleAuthenticate_ChallengeFailure(t *testing.T) {
	h := newTestHandler(t, failChallenge{})

	rec := postLogin(h, url.Values{"username": {"clara"}, "password": {"secret"}})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != auth.ChallengeFailedPath {
		t.Errorf("location: got %q, want %q", loc, auth.ChallengeFailedPath)
	}
}

func TestHandleAuthenticate_BlankCredentials(t *testing.T) {
	h := newTestHandler(t, recaptcha.Disabled{})

	tests := []url.Values{
		{"username": {""}, "password": {"secret"}},
		{"username": {"clara"}, "password": {""}},
		{"username": {"   "}, "password": {"secret"}},
	}
	for _, form := range tests {
		rec := postLogin(h, form)
		if loc := rec.Header().Get("Location"); loc != auth.LoginFailedPath {
			t.Errorf("form %v: location %q, want %q", form, loc, auth.LoginFailedPath)
		}
	}
}

func TestHandleAuthenticate_RateLimited(t *testing.T) {
	h := newTestHandler(t, recaptcha.Disabled{})

	// Exhaust the per-account bucket; the next attempt is blocked before
	// any credential lookup, which is why nil stores suffice here.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", auth.LoginProcessingPath, nil)
		req.Header.Set("X-Forwarded-For", "198.51.100."+string(rune('1'+i)))
		h.Limiter.Check(req, "clara")
	}

	rec := postLogin(h, url.Values{"username": {"clara"}, "password": {"secret"}})

	if loc := rec.Header().Get("Location"); loc != auth.LoginFailedPath {
		t.Errorf("location: got %q, want %q", loc, auth.LoginFailedPath)
	}
}
