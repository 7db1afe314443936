package domain

import "strings"

// Category separates tests that need a site database from those that don't
type Category string

const (
	CategoryUnit        Category = "unit"
	CategoryIntegration Category = "integration"
)

// ParseCategory returns the category for its name (case-insensitive)
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryUnit:
		return CategoryUnit, true
	case CategoryIntegration:
		return CategoryIntegration, true
	}
	return "", false
}

// Title returns the category name as shown in summaries ("Unit", "Integration")
func (c Category) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// TestCase represents a single test method of a Python test class
type TestCase struct {
	Module   string   // Dotted module name, e.g. myapp.crm.doctype.lead.test_lead
	Class    string   // Test class name
	Method   string   // Test method name
	Category Category // Unit or integration
	File     string   // Source file of the module
}

// ID returns the unittest id of the test (module.Class.method)
func (t TestCase) ID() string {
	return t.Module + "." + t.Class + "." + t.Method
}

// ClassID returns the dotted class path (module.Class)
func (t TestCase) ClassID() string {
	return t.Module + "." + t.Class
}

// Suite is an ordered collection of test cases of one category
type Suite struct {
	Category Category
	cases    []TestCase
	seen     map[string]bool
}

// NewSuite creates an empty suite
func NewSuite(category Category) *Suite {
	return &Suite{Category: category, seen: make(map[string]bool)}
}

// Add appends a test case, ignoring duplicates
func (s *Suite) Add(tc TestCase) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[tc.ID()] {
		return
	}
	s.seen[tc.ID()] = true
	s.cases = append(s.cases, tc)
}

// Merge adds every case of other to s
func (s *Suite) Merge(other *Suite) {
	if other == nil {
		return
	}
	for _, tc := range other.cases {
		s.Add(tc)
	}
}

// Cases returns the test cases in insertion order
func (s *Suite) Cases() []TestCase {
	return s.cases
}

// Count returns the number of test cases
func (s *Suite) Count() int {
	return len(s.cases)
}

// Empty reports whether the suite has no test cases
func (s *Suite) Empty() bool {
	return len(s.cases) == 0
}

// Batches groups consecutive cases of the same class. Each batch runs in one
// interpreter process.
func (s *Suite) Batches() []Batch {
	var batches []Batch
	for _, tc := range s.cases {
		n := len(batches)
		if n > 0 && batches[n-1].ClassID() == tc.ClassID() {
			batches[n-1].Cases = append(batches[n-1].Cases, tc)
			continue
		}
		batches = append(batches, Batch{Module: tc.Module, Class: tc.Class, Cases: []TestCase{tc}})
	}
	return batches
}

// Batch is a set of test methods of one class
type Batch struct {
	Module string
	Class  string
	Cases  []TestCase
}

// ClassID returns the dotted class path of the batch
func (b Batch) ClassID() string {
	return b.Module + "." + b.Class
}
