package domain

import (
	"sort"
	"strings"
)

// ParseScope splits a granted-scope string. Providers use spaces or commas.
func ParseScope(scope string) []string {
	fields := strings.FieldsFunc(scope, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// MissingScopes returns the required scopes not present in granted, sorted.
func MissingScopes(granted string, required []string) []string {
	have := make(map[string]bool)
	for _, s := range ParseScope(granted) {
		have[s] = true
	}
	var missing []string
	for _, r := range required {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	sort.Strings(missing)
	return missing
}
