package testrunner

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"ftr/internal/bench"
	"ftr/internal/config"
	"ftr/internal/discovery"
	"ftr/internal/execution"
	"ftr/internal/fixtures"
	"ftr/internal/hooks"
	"ftr/internal/meta"
	"ftr/internal/migration"
	"ftr/internal/parser"
	"ftr/internal/pymod"
	"ftr/internal/site"
	"ftr/internal/storage"

	log "github.com/sirupsen/logrus"
)

// Options replace the external dependencies of a run
type Options struct {
	// DB is used instead of connecting with the site config
	DB *sql.DB
	// Commands runs bench and interpreter processes; os/exec when nil
	Commands bench.CommandRunner
	// Out receives console output; os.Stdout when nil
	Out io.Writer
}

// Environment holds everything a run needs for one site
type Environment struct {
	Config    *config.Config
	Layout    *bench.Layout
	DB        *site.Database
	Bench     *bench.Bench
	Catalog   meta.Catalog
	Meta      meta.Loader
	Modules   *pymod.Loader
	Store     *site.Store
	RecordLog *storage.TestRecordLog
	Locator   *fixtures.Locator
	Resolver  *fixtures.Resolver
	Maker     *fixtures.Maker
	Hooks     *hooks.Hooks
	Migrator  migration.Migrator
	Out       io.Writer

	siteConfig       *site.Config
	commands         bench.CommandRunner
	disabledByRunner bool
}

// NewEnvironment connects to the site database and wires the fixture and
// hook machinery
func NewEnvironment(ctx context.Context, cfg *config.Config, opts Options) (*Environment, error) {
	defer debugTimer("NewEnvironment")()
	log.Debugf("Initializing test environment for site: %s", cfg.Flags.Site)

	layout := bench.NewLayout(cfg.BenchPath)
	siteConfig, err := site.LoadConfig(layout, cfg.Flags.Site)
	if err != nil {
		return nil, err
	}

	var db *site.Database
	if opts.DB != nil {
		db = site.NewDatabase(opts.DB)
	} else if db, err = site.Open(ctx, siteConfig, cfg.DB); err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	e := &Environment{
		Config:     cfg,
		Layout:     layout,
		DB:         db,
		Bench:      bench.New(layout, cfg.BenchBin, cfg.GetPythonPath(), cfg.Flags.Site, opts.Commands),
		Modules:    pymod.NewLoader(layout),
		RecordLog:  storage.NewTestRecordLog(cfg.GetTestLogPath()),
		Out:        out,
		siteConfig: siteConfig,
		commands:   opts.Commands,
	}

	switch cfg.MetaSource {
	case config.MetaSourceFiles:
		files := meta.NewFileLoader(layout)
		e.Catalog = files
		e.Meta = meta.NewCachedLoader(files)
	default:
		e.Catalog = db
		e.Meta = meta.NewCachedLoader(meta.NewDBLoader(db.DB()))
	}

	e.Store = site.NewStore(db, e.Bench)
	e.Locator = fixtures.NewLocator(layout, e.Catalog, e.Modules)
	e.Resolver = fixtures.NewResolver(e.Meta, e.Locator)
	e.Maker = fixtures.NewMaker(e.Resolver, e.Locator, e.Meta, e.Store, e.RecordLog)
	e.Hooks = hooks.New(layout, e.Bench)
	e.Migrator = migration.NewBenchMigrator(e.Bench, out, progressWriter(out), cfg.Flags.SkipFailing)
	return e, nil
}

// Initialize disables the scheduler unless it already is, and clears the
// site cache
func (e *Environment) Initialize(ctx context.Context) error {
	disabled := e.siteConfig.DisableScheduler
	if !disabled {
		enabled, err := e.DB.SchedulerEnabled(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}
		disabled = !enabled
	}
	if !disabled {
		if err := e.DB.SetSchedulerEnabled(ctx, false); err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}
		e.disabledByRunner = true
		log.Debug("Scheduler disabled for the test run")
	}
	if err := e.Bench.ClearCache(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Cleanup re-enables the scheduler if Initialize disabled it and clears the
// site cache
func (e *Environment) Cleanup(ctx context.Context) {
	if e.disabledByRunner {
		if err := e.DB.SetSchedulerEnabled(ctx, true); err != nil {
			log.WithError(err).Warn("could not re-enable the scheduler")
		} else {
			e.disabledByRunner = false
			log.Debug("Scheduler re-enabled")
		}
	}
	if err := e.Bench.ClearCache(ctx); err != nil {
		log.WithError(err).Warn("could not clear the site cache")
	}
}

// Close closes the database connection
func (e *Environment) Close() error {
	return e.DB.Close()
}

// Discoverer returns a discoverer over the bench's apps
func (e *Environment) Discoverer(opts discovery.Options) *discovery.Discoverer {
	scanner := discovery.NewScanner(e.Config.PathsToIgnore, e.Config.ExcludePatterns)
	return discovery.NewDiscoverer(e.Layout, scanner, e.Modules, e.Catalog, opts)
}

// Apps returns app, or every installed app when app is empty
func (e *Environment) Apps(ctx context.Context, app string) ([]string, error) {
	if app != "" {
		return []string{app}, nil
	}
	return e.Catalog.InstalledApps(ctx)
}

// Executors returns the executors of the unit and integration suites
func (e *Environment) Executors(reporter execution.Reporter) (unit, integration *execution.WorkerPool) {
	runner := execution.NewRunner(e.Config, parser.NewUnittestParser(), e.commands)
	unit = execution.NewWorkerPool(runner, e.Config.Processors)
	unit.SetReporter(reporter)
	// integration tests share the site database
	integration = execution.NewWorkerPool(runner, 1)
	integration.SetReporter(reporter)
	return unit, integration
}

// debugTimer logs the duration of a phase at debug level
func debugTimer(name string) func() {
	start := time.Now()
	return func() {
		log.Debugf("%s took %.3f seconds", name, time.Since(start).Seconds())
	}
}
