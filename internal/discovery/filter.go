package discovery

import (
	"path"
	"strings"

	"tia/internal/execution"
)

// Filter filters tests by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// Match reports whether a test key "<file>::<name>" matches pattern.
// Supports patterns like "*TestUser*", "test_login" or "pkg/*::Test*".
func (f *Filter) Match(key, pattern string) bool {
	if pattern == "" {
		return true
	}

	name := key
	if i := strings.LastIndex(key, "::"); i >= 0 {
		name = key[i+2:]
	}

	for _, candidate := range []string{key, name} {
		if matched, err := path.Match(pattern, candidate); err == nil && matched {
			return true
		}
	}

	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(key, pattern)
	}

	// Flexible match for patterns like "*Payment*": every literal part must
	// appear in the key, in order.
	rest := key
	matchedAny := false
	for _, part := range strings.Split(strings.ReplaceAll(pattern, "?", "*"), "*") {
		if part == "" {
			continue
		}
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
		matchedAny = true
	}
	return matchedAny
}

// FilterByName keeps the test keys matching pattern
func (f *Filter) FilterByName(keys []string, pattern string) []string {
	if pattern == "" {
		return keys
	}
	var filtered []string
	for _, key := range keys {
		if f.Match(key, pattern) {
			filtered = append(filtered, key)
		}
	}
	return filtered
}

// FilterCases keeps the cases whose key matches pattern
func (f *Filter) FilterCases(cases []execution.Case, pattern string) []execution.Case {
	if pattern == "" {
		return cases
	}
	var filtered []execution.Case
	for _, c := range cases {
		if f.Match(c.ID().Key(), pattern) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
