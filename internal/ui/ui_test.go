package ui

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"ftr/internal/config"
	"ftr/internal/domain"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func testCase(class, method string, category domain.Category) domain.TestCase {
	return domain.TestCase{Module: "library.tests.test_loans", Class: class, Method: method, Category: category, File: "/bench/apps/library/library/tests/test_loans.py"}
}

func suiteResult() *domain.SuiteResult {
	r := &domain.SuiteResult{Category: domain.CategoryIntegration, Duration: 1500 * time.Millisecond}
	r.Add(domain.TestResult{Case: testCase("TestLoan", "test_issue", domain.CategoryIntegration), Outcome: domain.OutcomePassed, Duration: 3 * time.Second})
	r.Add(domain.TestResult{Case: testCase("TestLoan", "test_return", domain.CategoryIntegration), Outcome: domain.OutcomeFailed,
		Details: "Traceback (most recent call last):\n  File \"test_loans.py\", line 9, in test_return\nAssertionError: 1 != 2\n"})
	r.Add(domain.TestResult{Case: testCase("TestLoan", "test_renew", domain.CategoryIntegration), Outcome: domain.OutcomeErrored,
		Details: "Traceback (most recent call last):\nfrappe.exceptions.ValidationError: Member is inactive\n"})
	r.Add(domain.TestResult{Case: testCase("TestLoan", "test_fine", domain.CategoryIntegration), Outcome: domain.OutcomeSkipped, Reason: "no fines"})
	return r
}

func TestReporter_BatchFinished(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, 2*time.Second, false)

	res := suiteResult()
	r.BatchFinished(domain.BatchResult{
		Batch:   domain.Batch{Module: "library.tests.test_loans", Class: "TestLoan"},
		Results: res.Results,
		Stdout:  "debug print\n",
	})

	expected := "\nlibrary.tests.test_loans.TestLoan\n" +
		"   ✔  test_issue (3.000s)\n" +
		"   ✖  test_return\n" +
		"   ✖  test_renew\n" +
		"   =  test_fine\n"
	assert.Equal(t, expected, out.String())
}

func TestReporter_BatchFinishedVerbose(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, time.Minute, true)
	r.BatchFinished(domain.BatchResult{
		Batch:   domain.Batch{Module: "m", Class: "TestX"},
		Results: []domain.TestResult{{Case: testCase("TestX", "test_a", domain.CategoryUnit), Duration: time.Second}},
		Stdout:  "debug print\n",
	})
	assert.Contains(t, out.String(), "   ✔  test_a\n")
	assert.Contains(t, out.String(), "    debug print\n")
}

func TestReporter_PrintErrors(t *testing.T) {
	var out bytes.Buffer
	NewReporter(&out, time.Second, false).PrintErrors(suiteResult())

	s := out.String()
	assert.Contains(t, s, separator1+"\n ERROR  test_renew (library.tests.test_loans.TestLoan.test_renew)\n"+separator2)
	assert.Contains(t, s, " FAIL  test_return (library.tests.test_loans.TestLoan.test_return)")
	assert.Less(t, strings.Index(s, " ERROR "), strings.Index(s, " FAIL "))
}

func TestReporter_PrintResults(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out, time.Second, false)

	unit := &domain.SuiteResult{Category: domain.CategoryUnit}
	unit.Add(domain.TestResult{Case: testCase("TestUtil", "test_a", domain.CategoryUnit)})
	r.PrintResults(unit, nil)
	assert.Contains(t, out.String(), "Unit Tests:\n  Ran: 1    Failures: 0    Errors: 0  \n")
	assert.NotContains(t, out.String(), "Integration Tests:")
	assert.Contains(t, out.String(), "All tests passed successfully!")

	out.Reset()
	r.PrintResults(unit, suiteResult())
	s := out.String()
	assert.Contains(t, s, "Integration Tests:\n  Ran: 4    Failures: 1    Errors: 1  \n")
	assert.Contains(t, s, "Integration Test Failures:\n  1. test_return (library.tests.test_loans.TestLoan.test_return)\n")
	assert.Contains(t, s, "     frappe.exceptions.ValidationError: Member is inactive\n")
	assert.Contains(t, s, "Some tests failed or encountered errors.")
}

func TestWriteJUnit(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteJUnit(&out, suiteResult(), nil))
	assert.True(t, strings.HasPrefix(out.String(), xml.Header))

	var doc jUnitXMLDocument
	require.NoError(t, xml.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Suites, 1)
	suite := doc.Suites[0]
	assert.Equal(t, "Integration tests", suite.Name)
	assert.Equal(t, 4, suite.Tests)
	assert.Equal(t, 1, suite.Failures)
	assert.Equal(t, 1, suite.Errors)
	assert.Equal(t, 1, suite.Skipped)
	assert.Equal(t, "1.500", suite.Time)

	require.Len(t, suite.TestCases, 4)
	assert.Equal(t, "library.tests.test_loans.TestLoan", suite.TestCases[0].Classname)
	assert.Equal(t, "AssertionError", suite.TestCases[1].Failure.Type)
	assert.Equal(t, "AssertionError: 1 != 2", suite.TestCases[1].Failure.Message)
	assert.Equal(t, "frappe.exceptions.ValidationError", suite.TestCases[2].Error.Type)
	assert.Equal(t, "no fines", suite.TestCases[3].SkipMessage.Message)
}

func TestFormatter_PrintTestList(t *testing.T) {
	var out bytes.Buffer
	f := NewFormatter(config.New(), &out)

	unit := domain.NewSuite(domain.CategoryUnit)
	unit.Add(testCase("TestUtil", "test_a", domain.CategoryUnit))
	integration := domain.NewSuite(domain.CategoryIntegration)
	integration.Add(testCase("TestLoan", "test_issue", domain.CategoryIntegration))
	integration.Add(testCase("TestLoan", "test_return", domain.CategoryIntegration))

	failed := map[string]struct{}{"library.tests.test_loans.TestLoan.test_return": {}}
	f.PrintTestList([]*domain.Suite{unit, integration}, true, failed)

	expected := "Found 3 test(s) in 2 class(es):\n\n" +
		"├── library.tests.test_loans.TestUtil [unit]\n" +
		"│   └── test_a\n" +
		"└── library.tests.test_loans.TestLoan [integration] [F]\n" +
		"    ├── test_issue\n" +
		"    └── test_return [F]\n"
	assert.Equal(t, expected, out.String())
}

func TestFormatter_PrintMetaStats(t *testing.T) {
	var out bytes.Buffer
	cfg := config.New()
	cfg.BenchPath = "/bench"
	f := NewFormatter(cfg, &out)

	output := &domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{Site: "test_site", TotalTests: 4, FailedTests: 1, ErroredTests: 1},
		Details: []domain.TestFailure{
			domain.NewTestFailure(suiteResult().Results[1]),
			domain.NewTestFailure(suiteResult().Results[2]),
		},
	}
	f.PrintMetaStats(output)

	s := out.String()
	assert.Contains(t, s, "│ Site                            │ test_site                   │")
	assert.Contains(t, s, "✗ 1 test(s) failed, 1 errored")
	assert.Contains(t, s, "library\n  └── library\n      └── tests\n          └── test_loans.py\n")
	assert.Contains(t, s, "TestLoan.test_return [FAIL]")
	assert.Contains(t, s, "TestLoan.test_renew [ERROR]")
}

func TestFailedIDs(t *testing.T) {
	ids := FailedIDs(&domain.TestResultsOutput{Details: []domain.TestFailure{{Module: "m", ClassName: "C", TestName: "test_x"}}})
	assert.Contains(t, ids, "m.C.test_x")
	assert.Empty(t, FailedIDs(nil))
}

func TestGroupFailures(t *testing.T) {
	details := []domain.TestFailure{
		{Module: "library.tests.test_loans", ClassName: "TestLoan", TestName: "test_return", Category: domain.CategoryIntegration},
		{Module: "library.tests.test_utils", ClassName: "TestSlug", TestName: "test_slug", Category: domain.CategoryUnit},
		{Module: "library.tests.test_loans", ClassName: "TestLoan", TestName: "test_issue", Category: domain.CategoryIntegration, Resolved: true},
		{Module: "library.tests.test_fines", ClassName: "TestFine", TestName: "test_fine", Category: domain.CategoryIntegration},
	}

	groups := groupFailures(details, false)
	require.Len(t, groups, 2)
	assert.Equal(t, domain.CategoryUnit, groups[0].category)
	assert.Equal(t, []failureClass{{id: "library.tests.test_utils.TestSlug", indexes: []int{1}}}, groups[0].classes)
	assert.Equal(t, domain.CategoryIntegration, groups[1].category)
	assert.Equal(t, []failureClass{
		{id: "library.tests.test_loans.TestLoan", indexes: []int{0, 2}},
		{id: "library.tests.test_fines.TestFine", indexes: []int{3}},
	}, groups[1].classes)

	hidden := groupFailures(details, true)
	require.Len(t, hidden, 2)
	assert.Equal(t, []int{0}, hidden[1].classes[0].indexes)

	assert.Empty(t, groupFailures([]domain.TestFailure{{Resolved: true, Category: domain.CategoryUnit}}, true))
}

func TestRerunCommand(t *testing.T) {
	f := domain.TestFailure{Module: "library.tests.test_loans", ClassName: "TestLoan", TestName: "test_return"}
	assert.Equal(t, "ftr run --site test_site --module library.tests.test_loans --case TestLoan --test test_return",
		rerunCommand("test_site", f))

	f.TestName = ""
	assert.Equal(t, "ftr run --module library.tests.test_loans --case TestLoan", rerunCommand("", f))
}
