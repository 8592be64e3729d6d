// Package strings holds small slice-of-string helpers.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each element and drops empties and exact duplicates.
// Order is preserved.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, func(s string) string { return s })
}

// DedupeFold is DedupeAndTrim with case-insensitive matching. The first
// spelling of each value wins.
//
//	DedupeFold([]string{" Chief of Staff ", "chief of staff", "Chairman"})
//	// []string{"Chief of Staff", "Chairman"}
func DedupeFold(values []string) []string {
	return dedupe(values, strings.ToLower)
}

func dedupe(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		k := key(trimmed)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
