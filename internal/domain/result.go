package domain

import (
	"fmt"
	"time"
)

// Outcome is the final state of a single test
type Outcome int

const (
	OutcomePassed Outcome = iota
	OutcomeFailed
	OutcomeErrored
	OutcomeSkipped
	OutcomeExpectedFailure
	OutcomeUnexpectedSuccess
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeErrored:
		return "error"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeExpectedFailure:
		return "expected failure"
	case OutcomeUnexpectedSuccess:
		return "unexpected success"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// TestResult represents the result of executing a single test
type TestResult struct {
	Case     TestCase
	Outcome  Outcome
	Duration time.Duration // Zero when the interpreter did not report it
	Details  string        // Traceback for failures and errors
	Reason   string        // Skip reason
}

// BatchResult is the outcome of one interpreter process
type BatchResult struct {
	Batch    Batch
	Results  []TestResult
	Stdout   string // Captured standard output (test prints, profile stats)
	Stderr   string // Raw unittest output
	Duration time.Duration
	Err      error // Set when the process could not be started
}

// SuiteResult aggregates the results of one suite run
type SuiteResult struct {
	Category Category
	Results  []TestResult
	Duration time.Duration
	Profile  []string // Profile output per batch when profiling
}

// Add records a result
func (r *SuiteResult) Add(res TestResult) {
	r.Results = append(r.Results, res)
}

// TestsRun returns the number of tests that ran
func (r *SuiteResult) TestsRun() int {
	if r == nil {
		return 0
	}
	return len(r.Results)
}

// Failures returns the failed tests
func (r *SuiteResult) Failures() []TestResult {
	return r.filter(OutcomeFailed)
}

// Errors returns the errored tests
func (r *SuiteResult) Errors() []TestResult {
	return r.filter(OutcomeErrored)
}

// Skipped returns the skipped tests
func (r *SuiteResult) Skipped() []TestResult {
	return r.filter(OutcomeSkipped)
}

// UnexpectedSuccesses returns tests marked as expected failures that passed
func (r *SuiteResult) UnexpectedSuccesses() []TestResult {
	return r.filter(OutcomeUnexpectedSuccess)
}

// WasSuccessful mirrors unittest: no failures, no errors, no unexpected successes
func (r *SuiteResult) WasSuccessful() bool {
	if r == nil {
		return true
	}
	return len(r.Failures()) == 0 && len(r.Errors()) == 0 && len(r.UnexpectedSuccesses()) == 0
}

func (r *SuiteResult) String() string {
	return fmt.Sprintf("Tests: %d, Failing: %d, Errors: %d", r.TestsRun(), len(r.Failures()), len(r.Errors()))
}

func (r *SuiteResult) filter(outcome Outcome) []TestResult {
	if r == nil {
		return nil
	}
	var out []TestResult
	for _, res := range r.Results {
		if res.Outcome == outcome {
			out = append(out, res)
		}
	}
	return out
}

// TestResultsMeta contains metadata about a test run
type TestResultsMeta struct {
	Site             string  `json:"site"`
	TotalTests       int     `json:"total_tests"`
	UnitTests        int     `json:"unit_tests"`
	IntegrationTests int     `json:"integration_tests"`
	FailedTests      int     `json:"failed_tests"`
	ErroredTests     int     `json:"errored_tests"`
	SkippedTests     int     `json:"skipped_tests"`
	Duration         string  `json:"duration"`
	DurationSeconds  float64 `json:"duration_seconds"`
	Timestamp        string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Details []TestFailure   `json:"details"`
}
