package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ftr/internal/domain"
)

const (
	sectionSeparator = "======================================================================"
	detailSeparator  = "----------------------------------------------------------------------"
)

var (
	// test_name (module.Class.test_name) or, before python 3.11, (module.Class)
	headerPattern   = regexp.MustCompile(`^\s*(\w+) \(([\w.]+)\)`)
	sectionPattern  = regexp.MustCompile(`^(FAIL|ERROR|UNEXPECTED SUCCESS): (\w+) \(([\w.]+)\)`)
	durationPattern = regexp.MustCompile(`^([\d.]+)s\s+(\w+) \(([\w.]+)\)`)
	ranPattern      = regexp.MustCompile(`^Ran \d+ tests? in `)
)

// UnittestParser parses the verbose output of python -m unittest -v
type UnittestParser struct{}

// NewUnittestParser creates a new UnittestParser
func NewUnittestParser() *UnittestParser {
	return &UnittestParser{}
}

type status struct {
	outcome domain.Outcome
	reason  string
}

type section struct {
	method  string
	id      string
	details string
}

// Parse builds the results of a batch from unittest's stderr. Errors raised
// outside a test (setUpClass, module import) become results of their own,
// and tests that never reported are errors carrying the raw output unless
// such an error explains why they did not run.
func (p *UnittestParser) Parse(batch domain.Batch, output string) []domain.TestResult {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	statuses := p.parseStatuses(lines)
	sections := p.parseSections(lines)
	durations := p.parseDurations(lines)

	known := make(map[string]bool, len(batch.Cases))
	for _, tc := range batch.Cases {
		known[tc.ID()] = true
	}

	details := make(map[string]string)
	var fixtureErrors []section
	for _, s := range sections {
		if known[s.id] {
			// subtests report one section each
			details[s.id] += s.details
			continue
		}
		fixtureErrors = append(fixtureErrors, s)
	}

	var results []domain.TestResult
	for _, tc := range batch.Cases {
		st, ok := statuses[tc.ID()]
		if !ok {
			if len(fixtureErrors) > 0 {
				continue
			}
			results = append(results, domain.TestResult{
				Case:    tc,
				Outcome: domain.OutcomeErrored,
				Details: fmt.Sprintf("no result reported for %s\n\n%s", tc.ID(), strings.TrimSpace(output)),
			})
			continue
		}
		results = append(results, domain.TestResult{
			Case:     tc,
			Outcome:  st.outcome,
			Duration: durations[tc.ID()],
			Details:  details[tc.ID()],
			Reason:   st.reason,
		})
	}

	for _, s := range fixtureErrors {
		tc := domain.TestCase{Module: batch.Module, Class: batch.Class, Method: s.method}
		if len(batch.Cases) > 0 {
			tc.Category = batch.Cases[0].Category
			tc.File = batch.Cases[0].File
		}
		results = append(results, domain.TestResult{Case: tc, Outcome: domain.OutcomeErrored, Details: s.details})
	}
	return results
}

// testID returns module.Class.method for both header formats
func testID(method, paren string) string {
	if strings.HasSuffix(paren, "."+method) {
		return paren
	}
	return paren + "." + method
}

func parseStatus(s string) (status, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "ok":
		return status{outcome: domain.OutcomePassed}, true
	case s == "FAIL":
		return status{outcome: domain.OutcomeFailed}, true
	case s == "ERROR":
		return status{outcome: domain.OutcomeErrored}, true
	case s == "expected failure":
		return status{outcome: domain.OutcomeExpectedFailure}, true
	case s == "unexpected success":
		return status{outcome: domain.OutcomeUnexpectedSuccess}, true
	case strings.HasPrefix(s, "skipped"):
		reason := strings.TrimSpace(strings.TrimPrefix(s, "skipped"))
		if unquoted, err := strconv.Unquote(reason); err == nil {
			reason = unquoted
		} else {
			reason = strings.Trim(reason, `'"`)
		}
		return status{outcome: domain.OutcomeSkipped, reason: reason}, true
	}
	return status{}, false
}

func (p *UnittestParser) parseStatuses(lines []string) map[string]status {
	statuses := make(map[string]status)
	pending := ""
	for _, line := range lines {
		if line == sectionSeparator || ranPattern.MatchString(line) {
			break
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			pending = testID(m[1], m[2])
			if idx := strings.LastIndex(line, " ... "); idx >= 0 {
				if st, ok := parseStatus(line[idx+len(" ... "):]); ok {
					record(statuses, pending, st)
					pending = ""
				}
			}
			continue
		}
		if pending == "" {
			continue
		}

		// docstring line, or the status after output the test printed
		candidate := line
		if idx := strings.LastIndex(line, " ... "); idx >= 0 {
			candidate = line[idx+len(" ... "):]
		}
		if st, ok := parseStatus(candidate); ok {
			record(statuses, pending, st)
			pending = ""
		}
	}
	return statuses
}

// record stores a status. Subtests report per subtest, and a failed or
// errored subtest decides the outcome of the test.
func record(statuses map[string]status, id string, st status) {
	prev, ok := statuses[id]
	if ok && (prev.outcome == domain.OutcomeErrored ||
		(prev.outcome == domain.OutcomeFailed && st.outcome != domain.OutcomeErrored)) {
		return
	}
	statuses[id] = st
}

func (p *UnittestParser) parseSections(lines []string) []section {
	var sections []section
	for i := 0; i < len(lines); i++ {
		if lines[i] != sectionSeparator || i+1 >= len(lines) {
			continue
		}
		m := sectionPattern.FindStringSubmatch(lines[i+1])
		if m == nil {
			continue
		}
		s := section{method: m[2], id: testID(m[2], m[3])}

		// skip the header (and docstring) up to the detail separator
		j := i + 2
		for j < len(lines) && lines[j] != detailSeparator {
			j++
		}
		var body []string
		for j++; j < len(lines); j++ {
			if lines[j] == sectionSeparator || strings.HasPrefix(lines[j], "Slowest test durations") {
				break
			}
			if lines[j] == detailSeparator && j+1 < len(lines) && ranPattern.MatchString(lines[j+1]) {
				break
			}
			body = append(body, lines[j])
		}
		s.details = strings.TrimRight(strings.Join(body, "\n"), "\n ") + "\n"
		sections = append(sections, s)
		i = j - 1
	}
	return sections
}

func (p *UnittestParser) parseDurations(lines []string) map[string]time.Duration {
	durations := make(map[string]time.Duration)
	inSection := false
	for _, line := range lines {
		if strings.HasPrefix(line, "Slowest test durations") {
			inSection = true
			continue
		}
		if !inSection {
			continue
		}
		m := durationPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d, err := time.ParseDuration(m[1] + "s")
		if err != nil {
			continue
		}
		durations[testID(m[2], m[3])] = d
	}
	return durations
}
