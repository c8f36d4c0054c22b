package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/auth"
)

func newManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-0123456789abcdef", "test-session", "", false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sm
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestNewSessionManager_RejectsEmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "s", "", false, zap.NewNop()); err == nil {
		t.Error("empty session key must be rejected")
	}
}

func TestEstablishThenLoad(t *testing.T) {
	sm := newManager(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", auth.LoginProcessingPath, nil)
	u := &auth.SessionUser{ID: "abc123", Username: "clara", Role: "OWNER"}
	if err := sm.Establish(rec, req, u); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	next := httptest.NewRequest("GET", "/admin/api/users/current", nil)
	next.AddCookie(sessionCookie(t, rec))

	var got *auth.SessionUser
	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	})).ServeHTTP(httptest.NewRecorder(), next)

	if got == nil {
		t.Fatal("expected a user in context after establish")
	}
	if got.ID != "abc123" || got.Username != "clara" || got.Role != "OWNER" {
		t.Errorf("loaded user: got %+v", got)
	}
}

type staticFetcher struct{ u *auth.SessionUser }

func (f staticFetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser { return f.u }

func TestLoadSessionUser_FetcherRefreshesIdentity(t *testing.T) {
	sm := newManager(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", auth.LoginProcessingPath, nil)
	if err := sm.Establish(rec, req, &auth.SessionUser{ID: "abc123", Username: "clara", Role: "OWNER"}); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	// The stored role changed after login; the fetcher result wins.
	sm.SetUserFetcher(staticFetcher{u: &auth.SessionUser{ID: "abc123", Username: "clara", Role: "OPERATOR", Roles: []string{"OPERATOR"}}})

	next := httptest.NewRequest("GET", "/admin/api/users/current", nil)
	next.AddCookie(sessionCookie(t, rec))

	var got *auth.SessionUser
	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	})).ServeHTTP(httptest.NewRecorder(), next)

	if got == nil || got.Role != "OPERATOR" {
		t.Errorf("fetcher role should apply to in-flight sessions, got %+v", got)
	}
}

func TestLoadSessionUser_FetcherNilMeansAnonymous(t *testing.T) {
	sm := newManager(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", auth.LoginProcessingPath, nil)
	if err := sm.Establish(rec, req, &auth.SessionUser{ID: "abc123", Username: "clara", Role: "OWNER"}); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	// Account was disabled after login.
	sm.SetUserFetcher(staticFetcher{u: nil})

	next := httptest.NewRequest("GET", "/admin/api/users/current", nil)
	next.AddCookie(sessionCookie(t, rec))

	sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.CurrentUser(r); ok {
			t.Error("disabled account must not resolve to a session user")
		}
	})).ServeHTTP(httptest.NewRecorder(), next)
}

func TestDestroy_ExpiresCookie(t *testing.T) {
	sm := newManager(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/logout", nil)
	if err := sm.Destroy(rec, req); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if c := sessionCookie(t, rec); c.MaxAge != -1 {
		t.Errorf("cookie MaxAge: got %d, want -1", c.MaxAge)
	}
}

func TestConsumePending_OneShot(t *testing.T) {
	sm := newManager(t)

	stashRec := httptest.NewRecorder()
	stashReq := httptest.NewRequest("GET", "/event/summer-fest", nil)
	pc := auth.PendingContext{ContextType: "event", ContextID: "summer-fest", ReservationID: "res-42"}
	if err := sm.StashPending(stashRec, stashReq, pc); err != nil {
		t.Fatalf("StashPending: %v", err)
	}

	first := httptest.NewRequest("GET", "/callback", nil)
	first.AddCookie(sessionCookie(t, stashRec))
	firstRec := httptest.NewRecorder()
	got, pending, err := sm.ConsumePending(firstRec, first)
	if err != nil {
		t.Fatalf("ConsumePending: %v", err)
	}
	if !pending {
		t.Fatal("first consume should find the pending reservation")
	}
	if got != pc {
		t.Errorf("pending context: got %+v, want %+v", got, pc)
	}
	if want := "/event/summer-fest/reservation/res-42/book"; got.ContinuationPath() != want {
		t.Errorf("continuation path: got %q, want %q", got.ContinuationPath(), want)
	}

	// The consume cleared the slot; replaying the updated cookie finds
	// nothing.
	second := httptest.NewRequest("GET", "/callback", nil)
	second.AddCookie(sessionCookie(t, firstRec))
	_, pending, err = sm.ConsumePending(httptest.NewRecorder(), second)
	if err != nil {
		t.Fatalf("second ConsumePending: %v", err)
	}
	if pending {
		t.Error("second consume must find nothing")
	}
}

func TestConsumePending_NoReservation(t *testing.T) {
	sm := newManager(t)

	req := httptest.NewRequest("GET", "/callback", nil)
	_, pending, err := sm.ConsumePending(httptest.NewRecorder(), req)
	if err != nil {
		t.Fatalf("ConsumePending: %v", err)
	}
	if pending {
		t.Error("fresh session must have no pending reservation")
	}
}

func TestRejectUnauthenticated(t *testing.T) {
	t.Run("browser gets login redirect with return", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/api/events?page=2", nil)
		rec := httptest.NewRecorder()
		auth.RejectUnauthenticated(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
		}
		want := auth.LoginPath + "?return=%2Fadmin%2Fapi%2Fevents%3Fpage%3D2"
		if loc := rec.Header().Get("Location"); loc != want {
			t.Errorf("location: got %q, want %q", loc, want)
		}
	})

	t.Run("programmatic caller gets 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/api/events", nil)
		req.Header.Set(auth.XRequestedWith, auth.XMLHttpRequest)
		rec := httptest.NewRecorder()
		auth.RejectUnauthenticated(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestRejectForbidden(t *testing.T) {
	req := httptest.NewRequest("GET", "/admin/api/events", nil)
	req.Header.Set(auth.XRequestedWith, auth.XMLHttpRequest)
	rec := httptest.NewRecorder()
	auth.RejectForbidden(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}
