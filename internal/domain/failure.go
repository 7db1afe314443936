package domain

import "strings"

// TestFailure represents a failed or errored test case
type TestFailure struct {
	TestName  string   `json:"test_name"`
	ClassName string   `json:"class_name"`
	Module    string   `json:"module"`
	FilePath  string   `json:"file_path"`
	Category  Category `json:"category"`
	Kind      string   `json:"kind"` // "FAIL" or "ERROR"
	Message   string   `json:"message"`
	Traceback []string `json:"traceback"`
	Resolved  bool     `json:"resolved,omitempty"` // Track if test case is marked as resolved
}

// NewTestFailure builds a failure record from a failed or errored result
func NewTestFailure(res TestResult) TestFailure {
	kind := "FAIL"
	if res.Outcome == OutcomeErrored {
		kind = "ERROR"
	}
	lines := strings.Split(strings.TrimRight(res.Details, "\n"), "\n")
	return TestFailure{
		TestName:  res.Case.Method,
		ClassName: res.Case.Class,
		Module:    res.Case.Module,
		FilePath:  res.Case.File,
		Category:  res.Case.Category,
		Kind:      kind,
		Message:   LastErrorLine(res.Details),
		Traceback: lines,
	}
}

// LastErrorLine returns the exception line of a Python traceback: the last
// non-empty line.
func LastErrorLine(traceback string) string {
	lines := strings.Split(strings.TrimRight(traceback, "\n "), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
