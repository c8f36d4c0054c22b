package secrules

import (
	"testing"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/api/**", "/admin/api/users", true},
		{"/admin/api/**", "/admin/api/events/123/export", true},
		{"/admin/api/**", "/admin/api", true},
		{"/admin/api/**", "/admin/apix", false},
		{"/admin/api/events/*/export", "/admin/api/events/summer-fest/export", true},
		{"/admin/api/events/*/export", "/admin/api/events/a/b/export", false},
		{"/admin/**/export/**", "/admin/api/events/1/export/csv", true},
		{"/admin/**/export/**", "/admin/api/events/1/export", true},
		{"/admin/**/export/**", "/admin/api/events/1/import", false},
		{"/admin/api/reservation/*/*/*/audit", "/admin/api/reservation/event/summer/res-1/audit", true},
		{"/admin/api/reservation/*/*/*/audit", "/admin/api/reservation/event/res-1/audit", false},
		{"/callback", "/callback", true},
		{"/callback", "/callback/x", false},
		{"/**", "/", true},
		{"/**", "/anything/at/all", true},
		{"/api/v1/admin/**", "/api/v1/admin/reservations", true},
		{"/admin/api/users/*", "/admin/api/users/current", true},
	}
	for _, tt := range tests {
		if got := MatchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("MatchPattern(%q, %q): got %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestMatchSegmentWildcards(t *testing.T) {
	tests := []struct {
		pat  string
		seg  string
		want bool
	}{
		{"*", "anything", true},
		{"event-*", "event-123", true},
		{"event-*", "events", false},
		{"*.csv", "export.csv", true},
		{"*.csv", "export.pdf", false},
		{"a*b*c", "aXbYc", true},
		{"a*b*c", "abc", true},
		{"a*b*c", "acb", false},
	}
	for _, tt := range tests {
		if got := matchSegment(tt.pat, tt.seg); got != tt.want {
			t.Errorf("matchSegment(%q, %q): got %v, want %v", tt.pat, tt.seg, got, tt.want)
		}
	}
}

func TestRuleMatchesMethod(t *testing.T) {
	ru := Rule{Method: "GET", Patterns: []string{"/admin/api/**"}}
	if !ru.Matches("GET", "/admin/api/users") {
		t.Error("GET rule should match GET request")
	}
	if !ru.Matches("get", "/admin/api/users") {
		t.Error("method match must be case-insensitive")
	}
	if ru.Matches("POST", "/admin/api/users") {
		t.Error("GET rule must not match POST request")
	}

	any := Rule{Patterns: []string{"/admin/api/**"}}
	for _, m := range []string{"GET", "POST", "PUT", "DELETE"} {
		if !any.Matches(m, "/admin/api/users") {
			t.Errorf("method-less rule should match %s", m)
		}
	}
}
