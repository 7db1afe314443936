package discovery

import (
	"path/filepath"
	"strings"
)

// Filter selects test methods by name
type Filter struct {
	patterns []string
}

// NewFilter creates a new Filter. With no patterns every name matches.
func NewFilter(patterns []string) *Filter {
	return &Filter{patterns: patterns}
}

// Allows reports whether name matches any of the patterns
func (f *Filter) Allows(name string) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, p := range f.patterns {
		if Match(name, p) {
			return true
		}
	}
	return false
}

// Match matches a test name exactly, or by wildcard when the pattern holds
// * ? or [
// Supports patterns like "test_*_invoice" or "test_?"
func Match(name, pattern string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return name == pattern
	}
	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}
