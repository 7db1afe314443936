package testrunner

import (
	"context"
	"errors"
	"testing"

	"ftr/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	outcome domain.Outcome
	ran     []*domain.Suite
}

func (f *fakeExecutor) Execute(ctx context.Context, suite *domain.Suite, failFast bool) (*domain.SuiteResult, error) {
	f.ran = append(f.ran, suite)
	res := &domain.SuiteResult{Category: suite.Category}
	for _, tc := range suite.Cases() {
		res.Add(domain.TestResult{Case: tc, Outcome: f.outcome})
	}
	return res, nil
}

type fakeReporter struct {
	started []string
}

func (f *fakeReporter) SuiteStarted(category domain.Category, count int) {
	f.started = append(f.started, string(category))
}
func (f *fakeReporter) PrintErrors(result *domain.SuiteResult)  {}
func (f *fakeReporter) PrintProfile(result *domain.SuiteResult) {}

func suites() (*domain.Suite, *domain.Suite) {
	unit := domain.NewSuite(domain.CategoryUnit)
	unit.Add(domain.TestCase{Module: "m", Class: "TestUnit", Method: "test_a", Category: domain.CategoryUnit})
	integration := domain.NewSuite(domain.CategoryIntegration)
	integration.Add(domain.TestCase{Module: "m", Class: "TestIntegration", Method: "test_b", Category: domain.CategoryIntegration})
	return unit, integration
}

func TestTestRunner_Run(t *testing.T) {
	unitExec := &fakeExecutor{outcome: domain.OutcomePassed}
	integrationExec := &fakeExecutor{outcome: domain.OutcomeFailed}
	reporter := &fakeReporter{}
	r := NewTestRunner(unitExec, integrationExec, reporter, false)

	unit, integration := suites()
	unitResult, integrationResult, err := r.Run(context.Background(), unit, integration)
	require.NoError(t, err)
	assert.True(t, unitResult.WasSuccessful())
	require.NotNil(t, integrationResult)
	assert.False(t, integrationResult.WasSuccessful())
	assert.Equal(t, []string{"unit", "integration"}, reporter.started)
}

func TestTestRunner_RunSkipsIntegrationAfterUnitFailure(t *testing.T) {
	unitExec := &fakeExecutor{outcome: domain.OutcomeErrored}
	integrationExec := &fakeExecutor{}
	r := NewTestRunner(unitExec, integrationExec, &fakeReporter{}, false)

	unit, integration := suites()
	unitResult, integrationResult, err := r.Run(context.Background(), unit, integration)
	require.NoError(t, err)
	assert.False(t, unitResult.WasSuccessful())
	assert.Nil(t, integrationResult)
	assert.Empty(t, integrationExec.ran)
}

func TestTestRunner_Callbacks(t *testing.T) {
	r := NewTestRunner(&fakeExecutor{}, &fakeExecutor{}, &fakeReporter{}, false)

	var made []string
	for _, doctype := range []string{"Author", "Article"} {
		doctype := doctype
		r.AddTestRecordCallback(func(ctx context.Context) error {
			made = append(made, doctype)
			return nil
		})
	}
	require.NoError(t, r.ExecuteTestRecordCallbacks(context.Background()))
	assert.Equal(t, []string{"Author", "Article"}, made)

	// the queue is cleared
	require.NoError(t, r.ExecuteTestRecordCallbacks(context.Background()))
	assert.Len(t, made, 2)

	boom := errors.New("boom")
	r.AddTestRecordCallback(func(ctx context.Context) error { return boom })
	r.AddTestRecordCallback(func(ctx context.Context) error {
		made = append(made, "never")
		return nil
	})
	assert.ErrorIs(t, r.ExecuteTestRecordCallbacks(context.Background()), boom)
	assert.NotContains(t, made, "never")
}

func TestError(t *testing.T) {
	cause := errors.New("invalid doctype Foo")
	err := &Error{Op: "run tests for doctypes Foo", Err: cause}
	assert.EqualError(t, err, "failed to run tests for doctypes Foo: invalid doctype Foo")
	assert.ErrorIs(t, err, cause)
}
