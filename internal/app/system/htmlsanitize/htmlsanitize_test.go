package htmlsanitize_test

import (
	"html/template"
	"strings"
	"testing"

	"github.com/openrsvp/backstage/internal/app/system/htmlsanitize"
)

func TestSanitize_Empty(t *testing.T) {
	if got := htmlsanitize.Sanitize(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestSanitize_PlainText(t *testing.T) {
	if got := htmlsanitize.Sanitize("Hello, World!"); got != "Hello, World!" {
		t.Errorf("expected plain text unchanged, got %q", got)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	got := htmlsanitize.Sanitize("<p>Hello</p><script>alert('xss')</script>")
	if strings.Contains(got, "script") {
		t.Errorf("expected script removed, got %q", got)
	}
	if !strings.Contains(got, "Hello") {
		t.Errorf("expected safe content preserved, got %q", got)
	}
}

func TestSanitize_RemovesEventHandlers(t *testing.T) {
	inputs := []string{
		`<button onclick="alert('xss')">Click</button>`,
		`<img src="x" onerror="alert('xss')">`,
	}
	for _, input := range inputs {
		if got := htmlsanitize.Sanitize(input); strings.Contains(got, "on") && strings.Contains(got, "alert") {
			t.Errorf("expected event handler removed from %q, got %q", input, got)
		}
	}
}

func TestSanitize_RemovesJavascriptHref(t *testing.T) {
	got := htmlsanitize.Sanitize(`<a href="javascript:alert('xss')">Click</a>`)
	if strings.Contains(got, "javascript:") {
		t.Errorf("expected javascript: href removed, got %q", got)
	}
}

func TestSanitize_RemovesIframe(t *testing.T) {
	got := htmlsanitize.Sanitize(`<p>Content</p><iframe src="https://evil.com"></iframe>`)
	if strings.Contains(got, "iframe") {
		t.Errorf("expected iframe removed, got %q", got)
	}
}

func TestSanitize_RemovesFormElements(t *testing.T) {
	got := htmlsanitize.Sanitize(`<form action="/submit"><input type="text" name="data"></form>`)
	if strings.Contains(got, "<form") || strings.Contains(got, "<input") {
		t.Errorf("expected form elements removed, got %q", got)
	}
}

func TestSanitize_AllowsFormatting(t *testing.T) {
	inputs := []string{
		"<p><strong>Bold</strong> and <em>italic</em></p>",
		"<ul><li>Item 1</li><li>Item 2</li></ul>",
		"<blockquote>A quote</blockquote>",
		"<pre><code>function test() {}</code></pre>",
	}
	for _, input := range inputs {
		if got := htmlsanitize.Sanitize(input); got != input {
			t.Errorf("expected %q preserved, got %q", input, got)
		}
	}
}

func TestSanitize_AllowsSafeLinks(t *testing.T) {
	got := htmlsanitize.Sanitize(`<a href="https://example.com">Link</a>`)
	if !strings.Contains(got, "https://example.com") {
		t.Errorf("expected safe link preserved, got %q", got)
	}
}

func TestSanitizeToHTML(t *testing.T) {
	got := htmlsanitize.SanitizeToHTML("<p>Hello</p><script>x()</script>")
	if got != template.HTML("<p>Hello</p>") {
		t.Errorf("expected sanitized template.HTML, got %q", got)
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"Hello, World!", true},
		{"5 < 10", true},
		{"5 > 3", true},
		{"<p>Hello</p>", false},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.input); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPlainTextToHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Hello, World!", "<p>Hello, World!</p>"},
		{"Line 1\nLine 2", "<p>Line 1<br>Line 2</p>"},
		{"A & B", "<p>A &amp; B</p>"},
	}
	for _, tt := range tests {
		if got := htmlsanitize.PlainTextToHTML(tt.input); got != tt.want {
			t.Errorf("PlainTextToHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPrepareForDisplay(t *testing.T) {
	if got := htmlsanitize.PrepareForDisplay("Line 1\nLine 2"); got != template.HTML("<p>Line 1<br>Line 2</p>") {
		t.Errorf("plain text path: got %q", got)
	}
	if got := htmlsanitize.PrepareForDisplay("<p>Hello</p><script>x()</script>"); got != template.HTML("<p>Hello</p>") {
		t.Errorf("markup path: got %q", got)
	}
}
