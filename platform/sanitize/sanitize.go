// Package sanitize provides text sanitization for visitor-provided form values.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxFieldLength is the longest single form value, in runes, that the
// finder sends and lead intake accepts.
const MaxFieldLength = 200

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML, collapses whitespace runs and truncates to max runes.
// A max of zero disables truncation.
func Text(s string, max int) string {
	result := whitespaceRegex.ReplaceAllString(StripHTML(s), " ")
	if max > 0 && utf8.RuneCountInString(result) > max {
		runes := []rune(result)
		result = strings.TrimSpace(string(runes[:max]))
	}
	return result
}

// Fields sanitizes every value of a form map and drops empty entries.
func Fields(fields map[string]string, max int) map[string]string {
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		clean := Text(value, max)
		if clean == "" {
			continue
		}
		out[strings.TrimSpace(key)] = clean
	}
	return out
}
