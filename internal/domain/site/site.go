// Package site defines the tenant key used to partition every document.
package site

import "strings"

// Wildcard grants access to every site when it appears in an identity's site scope.
const Wildcard = "*"

// SanitizeID lowercases raw and drops every rune outside [a-z0-9-], so the
// result is always safe to use as a filter value.
func SanitizeID(raw string) string {
	lower := strings.ToLower(raw)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Resolve sanitizes raw and falls back to fallback when nothing survives.
func Resolve(raw, fallback string) string {
	if id := SanitizeID(raw); id != "" {
		return id
	}
	return fallback
}

// InScope reports whether siteID is covered by scope.
func InScope(scope []string, siteID string) bool {
	for _, s := range scope {
		if s == Wildcard || s == siteID {
			return true
		}
	}
	return false
}
