package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"ftr/internal/domain"

	"github.com/fatih/color"
)

const (
	separator1 = "======================================================================"
	separator2 = "----------------------------------------------------------------------"
)

// Reporter prints test progress to the console as batches finish
type Reporter struct {
	out           io.Writer
	slowThreshold time.Duration
	verbose       bool
}

// NewReporter creates a Reporter. Tests at or above slowThreshold show their
// duration in red.
func NewReporter(out io.Writer, slowThreshold time.Duration, verbose bool) *Reporter {
	return &Reporter{out: out, slowThreshold: slowThreshold, verbose: verbose}
}

// SuiteStarted announces a suite run
func (r *Reporter) SuiteStarted(category domain.Category, count int) {
	fmt.Fprintln(r.out)
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Running %d %s tests\n", count, category)
}

// BatchFinished prints a class header and one line per test
func (r *Reporter) BatchFinished(res domain.BatchResult) {
	fmt.Fprintf(r.out, "\n%s\n", res.Batch.ClassID())
	for _, tr := range res.Results {
		fmt.Fprintf(r.out, "  %s %s%s\n", marker(tr.Outcome), tr.Case.Method, r.elapsed(tr))
	}
	if r.verbose && strings.TrimSpace(res.Stdout) != "" {
		fmt.Fprint(r.out, indent(res.Stdout, "    "))
	}
}

func (r *Reporter) elapsed(tr domain.TestResult) string {
	if tr.Outcome != domain.OutcomePassed || tr.Duration == 0 || tr.Duration < r.slowThreshold {
		return ""
	}
	return color.RedString(" (%.3fs)", tr.Duration.Seconds())
}

func marker(o domain.Outcome) string {
	switch o {
	case domain.OutcomePassed, domain.OutcomeUnexpectedSuccess:
		return color.GreenString(" ✔ ")
	case domain.OutcomeSkipped:
		return color.WhiteString(" = ")
	}
	return color.RedString(" ✖ ")
}

// PrintErrors prints the details of the errored and failed tests of a suite
func (r *Reporter) PrintErrors(result *domain.SuiteResult) {
	if result == nil {
		return
	}
	fmt.Fprint(r.out, "\n\n")
	r.printErrorList(" ERROR ", result.Errors())
	r.printErrorList(" FAIL ", result.Failures())
}

func (r *Reporter) printErrorList(flavour string, results []domain.TestResult) {
	label := color.New(color.BgRed)
	for _, tr := range results {
		fmt.Fprintln(r.out, separator1)
		fmt.Fprintf(r.out, "%s %s\n", label.Sprint(flavour), description(tr.Case))
		fmt.Fprintln(r.out, separator2)
		fmt.Fprintln(r.out, strings.TrimRight(tr.Details, "\n"))
	}
}

// PrintProfile prints the profiler statistics collected for a suite
func (r *Reporter) PrintProfile(result *domain.SuiteResult) {
	if result == nil {
		return
	}
	for _, p := range result.Profile {
		fmt.Fprint(r.out, p)
	}
}

// PrintResults prints the per-category summary and the overall status.
// integration is nil when the integration suite did not run.
func (r *Reporter) PrintResults(unit, integration *domain.SuiteResult) {
	fmt.Fprintln(r.out)
	color.New(color.FgCyan, color.Bold).Fprintln(r.out, "Test Results:")

	r.printResult(unit, "Unit")
	if integration != nil {
		r.printResult(integration, "Integration")
	}

	fmt.Fprintln(r.out)
	if len(unit.Failures())+len(unit.Errors())+len(integration.Failures())+len(integration.Errors()) == 0 {
		color.New(color.FgGreen, color.Bold).Fprintln(r.out, "All tests passed successfully!")
	} else {
		color.New(color.FgRed, color.Bold).Fprintln(r.out, "Some tests failed or encountered errors.")
	}
}

func (r *Reporter) printResult(result *domain.SuiteResult, category string) {
	failures, errors := result.Failures(), result.Errors()
	bold := color.New(color.Bold)
	heading := color.New(color.FgRed, color.Bold)

	fmt.Fprintln(r.out)
	bold.Fprintf(r.out, "%s Tests:\n", category)
	fmt.Fprintf(r.out, "  Ran: %s  Failures: %s  Errors: %s\n",
		color.CyanString("%-3d", result.TestsRun()), count(len(failures)), count(len(errors)))

	if len(failures) > 0 {
		fmt.Fprintln(r.out)
		heading.Fprintf(r.out, "%s Test Failures:\n", category)
		for i, tr := range failures {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, color.YellowString(description(tr.Case)))
		}
	}
	if len(errors) > 0 {
		fmt.Fprintln(r.out)
		heading.Fprintf(r.out, "%s Test Errors:\n", category)
		for i, tr := range errors {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, color.YellowString(description(tr.Case)))
			fmt.Fprintf(r.out, "%s\n", color.RedString("     "+domain.LastErrorLine(tr.Details)))
		}
	}
}

func count(n int) string {
	if n > 0 {
		return color.RedString("%-3d", n)
	}
	return color.GreenString("%-3d", n)
}

// description renders a test the way unittest does: method (module.Class.method)
func description(tc domain.TestCase) string {
	return fmt.Sprintf("%s (%s)", tc.Method, tc.ID())
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return prefix + strings.Join(lines, "\n"+prefix) + "\n"
}
