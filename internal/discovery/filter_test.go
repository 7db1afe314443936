package discovery

import (
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected bool
	}{
		{"test_checkout", "test_checkout", true},
		{"test_checkout_twice", "test_checkout", false},
		{"test_checkout_twice", "test_checkout*", true},
		{"test_return", "test_*_twice", false},
		{"test_1", "test_?", true},
		{"test_10", "test_?", false},
		{"test_a", "test_[ab]", true},
		{"test_a", "test_[", false},
	}
	for _, tt := range tests {
		if got := Match(tt.name, tt.pattern); got != tt.expected {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.name, tt.pattern, got, tt.expected)
		}
	}
}

func TestFilter_Allows(t *testing.T) {
	if !NewFilter(nil).Allows("test_anything") {
		t.Error("empty filter should allow every test")
	}
	filter := NewFilter([]string{"test_checkout", "test_return*"})
	for name, expected := range map[string]bool{
		"test_checkout":       true,
		"test_return_overdue": true,
		"test_renew":          false,
	} {
		if got := filter.Allows(name); got != expected {
			t.Errorf("Allows(%q) = %v, want %v", name, got, expected)
		}
	}
}
