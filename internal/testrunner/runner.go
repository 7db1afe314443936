// Package testrunner orchestrates a test run: discovery, test records,
// execution of the unit and integration suites and reporting.
package testrunner

import (
	"context"
	"errors"
	"fmt"

	"ftr/internal/domain"
	"ftr/internal/execution"

	log "github.com/sirupsen/logrus"
)

// ErrTestsFailed is returned when a suite had failures or errors
var ErrTestsFailed = errors.New("tests failed")

// Error is a failure of one phase of a test run
type Error struct {
	Op  string // e.g. "run tests for module library.tests.test_utils"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Callback makes test records before the integration suite runs
type Callback func(ctx context.Context) error

// SuiteReporter prints suite level output
type SuiteReporter interface {
	SuiteStarted(category domain.Category, count int)
	PrintErrors(result *domain.SuiteResult)
	PrintProfile(result *domain.SuiteResult)
}

// TestRunner runs the unit suite, then the integration suite when the unit
// tests pass
type TestRunner struct {
	unit        execution.Executor
	integration execution.Executor
	reporter    SuiteReporter
	failFast    bool

	callbacks []Callback
}

// NewTestRunner creates a TestRunner with one executor per category
func NewTestRunner(unit, integration execution.Executor, reporter SuiteReporter, failFast bool) *TestRunner {
	return &TestRunner{unit: unit, integration: integration, reporter: reporter, failFast: failFast}
}

// AddTestRecordCallback queues a callback for ExecuteTestRecordCallbacks
func (r *TestRunner) AddTestRecordCallback(cb Callback) {
	r.callbacks = append(r.callbacks, cb)
}

// ExecuteTestRecordCallbacks runs the queued callbacks in order and clears
// the queue
func (r *TestRunner) ExecuteTestRecordCallbacks(ctx context.Context) error {
	callbacks := r.callbacks
	r.callbacks = nil
	for _, cb := range callbacks {
		if err := cb(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run runs both suites. The integration result is nil when the unit suite
// was not successful.
func (r *TestRunner) Run(ctx context.Context, unit, integration *domain.Suite) (*domain.SuiteResult, *domain.SuiteResult, error) {
	unitResult, err := r.runSuite(ctx, r.unit, unit)
	if err != nil {
		return unitResult, nil, err
	}
	if !unitResult.WasSuccessful() {
		log.Debug("Skipping integration tests: unit tests failed")
		return unitResult, nil, nil
	}
	integrationResult, err := r.runSuite(ctx, r.integration, integration)
	return unitResult, integrationResult, err
}

func (r *TestRunner) runSuite(ctx context.Context, executor execution.Executor, suite *domain.Suite) (*domain.SuiteResult, error) {
	r.reporter.SuiteStarted(suite.Category, suite.Count())
	result, err := executor.Execute(ctx, suite, r.failFast)
	if err != nil {
		return result, err
	}
	r.reporter.PrintErrors(result)
	r.reporter.PrintProfile(result)
	log.Debugf("%s tests: %s in %s", suite.Category.Title(), result, result.Duration)
	return result, nil
}
