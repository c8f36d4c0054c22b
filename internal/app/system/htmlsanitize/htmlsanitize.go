// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize cleans user-supplied rich text before it is
// stored or rendered. Organization and user descriptions pass through
// here on every write.
package htmlsanitize

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("u", "s", "sub", "sup", "mark")
	p.AllowAttrs("class", "style").OnElements("table", "thead", "tbody", "tr", "th", "td")
	return p
}

// Sanitize strips dangerous markup, keeping the formatting subset the
// admin UI supports.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}
	return policy.Sanitize(input)
}

// SanitizeToHTML sanitizes and marks the result safe for templates.
func SanitizeToHTML(input string) template.HTML {
	return template.HTML(Sanitize(input))
}

// IsPlainText reports whether the input contains no markup at all.
func IsPlainText(input string) bool {
	return !strings.Contains(input, "<") || !strings.Contains(input, ">")
}

// PlainTextToHTML escapes plain text and wraps it in a paragraph,
// converting newlines to breaks.
func PlainTextToHTML(input string) string {
	if input == "" {
		return ""
	}
	escaped := template.HTMLEscapeString(input)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return "<p>" + escaped + "</p>"
}

// PrepareForDisplay renders either plain text or stored markup safely.
func PrepareForDisplay(input string) template.HTML {
	if input == "" {
		return ""
	}
	if IsPlainText(input) {
		return template.HTML(PlainTextToHTML(input))
	}
	return SanitizeToHTML(input)
}
