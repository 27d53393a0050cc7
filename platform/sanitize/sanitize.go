// Package sanitize cleans user-provided text before it is stored or echoed
// back to clients.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

var entities = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&amp;", "&",
	"&quot;", "\"",
	"&#39;", "'",
)

// StripHTML removes all HTML tags from a string. Entities are decoded and the
// result is stripped again so encoded tags do not survive.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = entities.Replace(result)
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text strips HTML, drops control characters and collapses runs of whitespace
// into a single space.
func Text(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, StripHTML(s))
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// Name cleans a display name and truncates it to at most max runes.
// A non-positive max leaves the length alone.
func Name(s string, max int) string {
	s = Text(s)
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
