package ui

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"ftr/internal/domain"
)

// Struct definitions for the JUnit XML schema - see https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName   xml.Name           `xml:"testsuite"`
	Tests     int                `xml:"tests,attr"`
	Failures  int                `xml:"failures,attr"`
	Errors    int                `xml:"errors,attr"`
	Skipped   int                `xml:"skipped,attr"`
	Time      string             `xml:"time,attr"`
	Name      string             `xml:"name,attr"`
	TestCases []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName     xml.Name             `xml:"testcase"`
	Classname   string               `xml:"classname,attr"`
	Name        string               `xml:"name,attr"`
	File        string               `xml:"file,attr,omitempty"`
	Time        string               `xml:"time,attr"`
	SkipMessage *jUnitXMLSkipMessage `xml:"skipped,omitempty"`
	Failure     *jUnitXMLFailure     `xml:"failure,omitempty"`
	Error       *jUnitXMLFailure     `xml:"error,omitempty"`
}

type jUnitXMLSkipMessage struct {
	Message string `xml:"message,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// WriteJUnit writes one testsuite per suite result. Nil results are skipped.
func WriteJUnit(w io.Writer, results ...*domain.SuiteResult) error {
	var doc jUnitXMLDocument
	for _, result := range results {
		if result == nil {
			continue
		}
		suite := jUnitXMLTestSuite{
			Name:     fmt.Sprintf("%s tests", result.Category.Title()),
			Tests:    result.TestsRun(),
			Failures: len(result.Failures()) + len(result.UnexpectedSuccesses()),
			Errors:   len(result.Errors()),
			Skipped:  len(result.Skipped()),
			Time:     jUnitDurationString(result.Duration),
		}
		for _, tr := range result.Results {
			testCase := jUnitXMLTestCase{
				Classname: tr.Case.ClassID(),
				Name:      tr.Case.Method,
				File:      tr.Case.File,
				Time:      jUnitDurationString(tr.Duration),
			}
			switch tr.Outcome {
			case domain.OutcomeSkipped:
				testCase.SkipMessage = &jUnitXMLSkipMessage{Message: tr.Reason}
			case domain.OutcomeFailed:
				testCase.Failure = jUnitFailure(tr)
			case domain.OutcomeUnexpectedSuccess:
				testCase.Failure = &jUnitXMLFailure{Message: "unexpected success", Type: "UnexpectedSuccess"}
			case domain.OutcomeErrored:
				testCase.Error = jUnitFailure(tr)
			}
			suite.TestCases = append(suite.TestCases, testCase)
		}
		doc.Suites = append(doc.Suites, suite)
	}

	bytes, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	bytes = append(bytes, '\n')
	_, err = w.Write(bytes)
	return err
}

func jUnitFailure(tr domain.TestResult) *jUnitXMLFailure {
	message := domain.LastErrorLine(tr.Details)
	typ, _, _ := cutException(message)
	return &jUnitXMLFailure{Message: message, Type: typ, Contents: tr.Details}
}

// cutException splits "pkg.SomeError: message" into its exception class and message
func cutException(line string) (string, string, bool) {
	for i, r := range line {
		switch {
		case r == ':':
			return line[:i], line[i+1:], true
		case r == ' ':
			return "", line, false
		}
	}
	return line, "", false
}

func jUnitDurationString(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
