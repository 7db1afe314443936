package testrunner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ftr/internal/bench"
	"ftr/internal/config"
	"ftr/internal/discovery"
	"ftr/internal/domain"
	"ftr/internal/hooks"
	"ftr/internal/storage"
	"ftr/internal/ui"

	log "github.com/sirupsen/logrus"
)

// run is the state of one Main invocation
type run struct {
	env      *Environment
	cfg      *config.Config
	runner   *TestRunner
	reporter *ui.Reporter
}

// Main runs the tests selected by cfg and reports them. It returns
// ErrTestsFailed when a suite was not successful.
func Main(ctx context.Context, cfg *config.Config, opts Options) error {
	start := time.Now()
	defer func() {
		log.Debugf("Total test run time: %.3f seconds", time.Since(start).Seconds())
	}()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if params := cfg.DebugParams(); params != "" {
		log.Debugf("Starting test run with parameters: %s", params)
	} else {
		log.Debug("Starting test run with no specific parameters")
	}

	env, err := NewEnvironment(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer env.Close()

	if cfg.Flags.Migrate {
		if err := env.Migrator.Run(ctx); err != nil {
			return &Error{Op: "migrate", Err: err}
		}
	}

	if err := env.Initialize(ctx); err != nil {
		return err
	}
	// runs even when a phase fails
	defer env.Cleanup(context.WithoutCancel(ctx))

	junit, err := openJUnit(cfg.Flags.JUnitXMLOutput)
	if err != nil {
		return err
	}
	if junit != nil {
		defer junit.Close()
	}

	reporter := ui.NewReporter(env.Out, cfg.SlowTestThreshold, cfg.Flags.Verbose)
	unitPool, integrationPool := env.Executors(reporter)
	r := &run{
		env:      env,
		cfg:      cfg,
		runner:   NewTestRunner(unitPool, integrationPool, reporter, cfg.Flags.FailFast),
		reporter: reporter,
	}

	unitResult, integrationResult, err := r.dispatch(ctx)
	if err != nil {
		return err
	}

	reporter.PrintResults(unitResult, integrationResult)

	results := []*domain.SuiteResult{unitResult}
	if integrationResult != nil {
		results = append(results, integrationResult)
	}
	if err := storage.NewJSONStorage(cfg).Save(cfg.Flags.Site, results, time.Since(start)); err != nil {
		log.WithError(err).Warn("could not save test results")
	}
	if junit != nil {
		if err := ui.WriteJUnit(junit, results...); err != nil {
			return fmt.Errorf("write junit xml: %w", err)
		}
	}

	success := unitResult.WasSuccessful() && (integrationResult == nil || integrationResult.WasSuccessful())
	if !success {
		return ErrTestsFailed
	}
	return nil
}

func openJUnit(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open junit xml output: %w", err)
	}
	return f, nil
}

// dispatch picks the tests by selector: doctype or doctype list, module def,
// module, or every test of the app (or of the installed apps)
func (r *run) dispatch(ctx context.Context) (*domain.SuiteResult, *domain.SuiteResult, error) {
	flags := r.cfg.Flags
	switch {
	case flags.DocType != "" || flags.DocTypeListPath != "":
		doctypes := []string{flags.DocType}
		if flags.DocTypeListPath != "" {
			var err error
			if doctypes, err = r.loadDocTypeList(flags.DocTypeListPath); err != nil {
				return nil, nil, &Error{Op: "load doctype list " + flags.DocTypeListPath, Err: err}
			}
		}
		return r.runDocTypeTests(ctx, doctypes)
	case flags.ModuleDef != "":
		doctypes, err := r.discoverer().DocTypesForModuleDef(ctx, flags.App, flags.ModuleDef)
		if err != nil {
			return nil, nil, &Error{Op: "run tests for module def " + flags.ModuleDef, Err: err}
		}
		return r.runDocTypeTests(ctx, doctypes)
	case flags.Module != "":
		return r.runModuleTests(ctx, flags.Module)
	default:
		return r.runAllTests(ctx, flags.App)
	}
}

func (r *run) discoverer() *discovery.Discoverer {
	categories, _ := r.cfg.SelectedCategories()
	return r.env.Discoverer(discovery.Options{
		Case:            r.cfg.Flags.Case,
		Tests:           r.cfg.Flags.Tests,
		Categories:      categories,
		SkipTestRecords: r.cfg.Flags.SkipTestRecords,
	})
}

// loadDocTypeList reads an "<app>/<path>" file with one doctype per line
func (r *run) loadDocTypeList(ref string) ([]string, error) {
	path, err := r.env.Layout.AppFile(ref)
	if err != nil {
		return nil, err
	}
	return bench.ReadLines(path)
}

func (r *run) runAllTests(ctx context.Context, app string) (*domain.SuiteResult, *domain.SuiteResult, error) {
	defer debugTimer("runAllTests")()
	target := app
	if target == "" {
		target = "all apps"
	}
	wrap := func(err error) error {
		log.Errorf("Error running all tests for %s: %v", target, err)
		return &Error{Op: "run tests for " + target, Err: err}
	}

	apps, err := r.env.Apps(ctx, app)
	if err != nil {
		return nil, nil, wrap(err)
	}
	log.Debugf("Running tests for apps: %v", apps)
	res, err := r.discoverer().DiscoverTests(ctx, apps)
	if err != nil {
		return nil, nil, wrap(err)
	}
	for _, doctype := range res.RecordDocTypes {
		r.runner.AddTestRecordCallback(r.makeRecords(doctype, false))
	}
	unit, integration, err := r.execute(ctx, res)
	if err != nil {
		return nil, nil, wrap(err)
	}
	return unit, integration, nil
}

func (r *run) runDocTypeTests(ctx context.Context, doctypes []string) (*domain.SuiteResult, *domain.SuiteResult, error) {
	defer debugTimer("runDocTypeTests")()
	wrap := func(err error) error {
		log.Errorf("Error running tests for doctypes %v: %v", doctypes, err)
		return &Error{Op: "run tests for doctypes " + strings.Join(doctypes, ", "), Err: err}
	}

	// discovery rejects unknown doctypes before anything is deleted
	res, err := r.discoverer().DiscoverDocTypeTests(ctx, doctypes)
	if err != nil {
		return nil, nil, wrap(err)
	}

	force := r.cfg.Flags.Force
	if force {
		for _, doctype := range doctypes {
			n, err := r.env.Store.DeleteAll(ctx, doctype)
			if err != nil {
				return nil, nil, wrap(err)
			}
			log.Debugf("Deleted %d %s records", n, doctype)
		}
	}
	for _, doctype := range res.RecordDocTypes {
		r.runner.AddTestRecordCallback(r.makeRecords(doctype, force))
	}
	unit, integration, err := r.execute(ctx, res)
	if err != nil {
		return nil, nil, wrap(err)
	}
	return unit, integration, nil
}

func (r *run) runModuleTests(ctx context.Context, module string) (*domain.SuiteResult, *domain.SuiteResult, error) {
	defer debugTimer("runModuleTests")()
	wrap := func(err error) error {
		log.Errorf("Error running tests for module %s: %v", module, err)
		return &Error{Op: "run tests for module " + module, Err: err}
	}

	res, err := r.discoverer().DiscoverModuleTests(ctx, strings.Split(module, ","))
	if err != nil {
		return nil, nil, wrap(err)
	}
	unit, integration, err := r.execute(ctx, res)
	if err != nil {
		return nil, nil, wrap(err)
	}
	return unit, integration, nil
}

// execute makes the modules' test dependencies, prepares the integration
// suite and runs both suites
func (r *run) execute(ctx context.Context, res *discovery.Result) (*domain.SuiteResult, *domain.SuiteResult, error) {
	for _, doctype := range res.Dependencies {
		if err := r.env.Maker.MakeTestRecords(ctx, doctype, false); err != nil {
			return nil, nil, err
		}
	}
	if err := r.prepareIntegrationTests(ctx, res.Integration); err != nil {
		return nil, nil, err
	}
	return r.runner.Run(ctx, res.Unit, res.Integration)
}

// prepareIntegrationTests runs the before_tests hooks and the test record
// callbacks, only when there are integration tests
func (r *run) prepareIntegrationTests(ctx context.Context, integration *domain.Suite) error {
	if integration.Empty() {
		log.Debug("Skipping before_tests hooks and test record creation: No integration tests")
		return nil
	}

	if !r.cfg.Flags.SkipBeforeTests {
		if err := r.runBeforeTestHooks(ctx); err != nil {
			return err
		}
	} else {
		log.Debug("Skipping before_tests hooks: Explicitly skipped")
	}

	if r.cfg.Flags.SkipTestRecords {
		log.Debug("Skipping test record creation: Explicitly skipped")
		return nil
	}
	defer debugTimer("ExecuteTestRecordCallbacks")()
	if !r.cfg.Flags.Verbose {
		progress := ui.NewRecordProgress(progressWriter(r.env.Out))
		r.env.Maker.SetObserver(progress)
		defer func() {
			r.env.Maker.SetObserver(nil)
			progress.Finish()
		}()
	}
	return r.runner.ExecuteTestRecordCallbacks(ctx)
}

func (r *run) runBeforeTestHooks(ctx context.Context) error {
	defer debugTimer("runBeforeTestHooks")()
	apps, err := r.env.Apps(ctx, r.cfg.Flags.App)
	if err != nil {
		return err
	}
	log.Debugf("Running before_tests hooks for apps: %v", apps)
	return r.env.Hooks.Run(ctx, hooks.BeforeTests, apps)
}

func (r *run) makeRecords(doctype string, force bool) Callback {
	return func(ctx context.Context) error {
		return r.env.Maker.MakeTestRecords(ctx, doctype, force)
	}
}

// progressWriter sends progress to stderr unless output is redirected
func progressWriter(out io.Writer) io.Writer {
	if out == os.Stdout {
		return os.Stderr
	}
	return out
}
