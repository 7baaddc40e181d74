package util

import (
	"regexp"
	"strings"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a DCIM slug from a display name:
// lowercase, non-alphanumeric runs collapsed to single hyphens, trimmed.
// "Cisco Systems, Inc." -> "cisco-systems-inc"
func Slugify(name string) string {
	slug := slugRegexp.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// SplitCommaSeparated splits a comma-separated string and trims whitespace from each element.
// Empty input returns nil.
func SplitCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// StripDomain removes everything after the first dot of a hostname.
// "sw1.corp.example.com" -> "sw1"
func StripDomain(hostname string) string {
	if i := strings.IndexByte(hostname, '.'); i > 0 {
		return hostname[:i]
	}
	return hostname
}

// ContainsString reports whether list contains value (case-sensitive).
func ContainsString(list []string, value string) bool {
	for _, s := range list {
		if s == value {
			return true
		}
	}
	return false
}

// TruncateString shortens s to max runes, appending "..." when truncated.
func TruncateString(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
