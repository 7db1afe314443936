package execution

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"ftr/internal/bench"
	"ftr/internal/config"
	"ftr/internal/domain"
	"ftr/internal/parser"

	log "github.com/sirupsen/logrus"
)

// Runner executes a batch with python -m unittest
type Runner struct {
	config *config.Config
	parser parser.Parser
	run    bench.CommandRunner
}

// NewRunner creates a new Runner. A nil run executes real processes.
func NewRunner(cfg *config.Config, p parser.Parser, run bench.CommandRunner) *Runner {
	if run == nil {
		run = runWithSite(cfg.Flags.Site)
	}
	return &Runner{config: cfg, parser: p, run: run}
}

// Args returns the interpreter arguments for a batch
func (r *Runner) Args(batch domain.Batch) []string {
	var args []string
	if r.config.Flags.Profile {
		args = append(args, "-m", "cProfile", "-s", "cumulative")
	}
	args = append(args, "-m", "unittest", "-v")
	if r.config.Flags.Durations {
		args = append(args, "--durations", "0")
	}
	if r.config.Flags.FailFast {
		args = append(args, "-f")
	}
	for _, tc := range batch.Cases {
		args = append(args, tc.ID())
	}
	return args
}

// Run executes the batch in the bench's sites directory
func (r *Runner) Run(ctx context.Context, batch domain.Batch) domain.BatchResult {
	python := r.config.GetPythonPath()
	args := r.Args(batch)
	log.WithField("class", batch.ClassID()).Debugf("%s %v", python, args)

	start := time.Now()
	stdout, stderr, err := r.run(ctx, r.config.GetSitesPath(), python, args...)
	res := domain.BatchResult{
		Batch:    batch,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// the interpreter did not run
		res.Err = fmt.Errorf("run %s: %w", batch.ClassID(), err)
		for _, tc := range batch.Cases {
			res.Results = append(res.Results, domain.TestResult{Case: tc, Outcome: domain.OutcomeErrored, Details: res.Err.Error() + "\n"})
		}
		return res
	}

	res.Results = r.parser.Parse(batch, res.Stderr)
	return res
}

// runWithSite runs commands with FRAPPE_SITE set
func runWithSite(site string) bench.CommandRunner {
	return func(ctx context.Context, dir string, name string, args ...string) ([]byte, []byte, error) {
		return bench.ExecCommandEnv(ctx, dir, []string{"FRAPPE_SITE=" + site}, name, args...)
	}
}
