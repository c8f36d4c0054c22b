package pipeline_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/openrsvp/backstage/internal/app/system/pipeline"
)

func tag(name string, order *[]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*order = append(*order, name)
			next.ServeHTTP(w, r)
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	c := pipeline.New(
		tag("channel", &order),
		tag("recovery", &order),
		tag("protect", &order),
		tag("authorize", &order),
		tag("expose", &order),
	)

	want := []string{"channel-security", "panic-recovery", "csrf-protect", "authorize", "csrf-expose"}
	stages := c.Stages()
	if len(stages) != len(want) {
		t.Fatalf("stage count: got %d, want %d", len(stages), len(want))
	}
	for i, s := range stages {
		if s.Name != want[i] {
			t.Errorf("stage[%d]: got %q, want %q", i, s.Name, want[i])
		}
	}

	rec := httptest.NewRecorder()
	c.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	})).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	wantExec := []string{"channel", "recovery", "protect", "authorize", "expose", "handler"}
	if len(order) != len(wantExec) {
		t.Fatalf("execution order: got %v, want %v", order, wantExec)
	}
	for i := range wantExec {
		if order[i] != wantExec[i] {
			t.Fatalf("execution order: got %v, want %v", order, wantExec)
		}
	}
}

func TestChannelSecurity(t *testing.T) {
	tests := []struct {
		name       string
		requireTLS bool
		path       string
		tls        bool
		proto      string
		wantPass   bool
	}{
		{"tls not required", false, "/admin/api/events", false, "", true},
		{"plain http rejected", true, "/admin/api/events", false, "", false},
		{"direct tls accepted", true, "/admin/api/events", true, "", true},
		{"forwarded https accepted", true, "/admin/api/events", false, "https", true},
		{"forwarded http rejected", true, "/admin/api/events", false, "http", false},
		{"health probe always plaintext", true, "/healthz", false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := pipeline.ChannelSecurity(tt.requireTLS, zap.NewNop())
			passed := false
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				passed = true
			}))

			req := httptest.NewRequest("GET", "https://backstage.example.com"+tt.path, nil)
			if !tt.tls {
				req.TLS = nil
				req = httptest.NewRequest("GET", "http://backstage.example.com"+tt.path, nil)
			}
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if passed != tt.wantPass {
				t.Errorf("passed: got %v, want %v (status %d)", passed, tt.wantPass, rec.Code)
			}
			if !tt.wantPass {
				if rec.Code != http.StatusPermanentRedirect {
					t.Errorf("status: got %d, want %d", rec.Code, http.StatusPermanentRedirect)
				}
				loc := rec.Header().Get("Location")
				if loc != "https://backstage.example.com"+tt.path {
					t.Errorf("redirect target: got %q", loc)
				}
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	mw := pipeline.Recovery(zap.NewNop())
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
