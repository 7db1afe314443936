package commands

import (
	"errors"
	"os"

	"ftr/internal/cli"
	"ftr/internal/config"
	"ftr/internal/storage"
	"ftr/internal/testrunner"
	"ftr/internal/ui"

	"github.com/spf13/cobra"
)

// ErrSiteRequired is returned by commands that work on a site when --site is missing
var ErrSiteRequired = errors.New("--site is required")

// Commands holds all CLI commands
type Commands struct {
	Run      *RunCommand
	List     *ListCommand
	Deps     *DepsCommand
	Records  *RecordsCommand
	Log      *LogCommand
	Migrate  *MigrateCommand
	Failures *FailuresCommand
}

// NewCommands creates all commands with dependencies. cfg is filled in by
// the root command's PersistentPreRunE before any command runs.
func NewCommands(cfg *config.Config) *Commands {
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(cfg, os.Stdout)
	errorViewer := ui.NewErrorViewer(jsonStorage)

	return &Commands{
		Run:      NewRunCommand(cfg, jsonStorage, errorViewer),
		List:     NewListCommand(cfg, jsonStorage, formatter),
		Deps:     NewDepsCommand(cfg),
		Records:  NewRecordsCommand(cfg),
		Log:      NewLogCommand(cfg),
		Migrate:  NewMigrateCommand(cfg),
		Failures: NewFailuresCommand(cfg, jsonStorage, errorViewer, formatter),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	rootCmd.PersistentFlags().StringVarP(&flags.BenchPath, "bench", "b", config.DefaultBenchPath, "Path to the frappe bench")
	rootCmd.PersistentFlags().StringVar(&flags.Site, "site", "", "Site to run against")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Verbose output and debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cli.SetupLogging(flags.Verbose)
		// Update config with flags after parsing
		loaded, err := config.Load(flags.BenchPath)
		if err != nil {
			return err
		}
		*cfg = *loaded
		cfg.ApplyFlags(flags.ToConfigFlags())
		return nil
	}
	requireSite := func(cmd *cobra.Command, args []string) error {
		if flags.Site == "" {
			return ErrSiteRequired
		}
		return nil
	}

	// Run command
	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the tests of a frappe site",
		Long:    "Discover unit and integration tests, make their test records and run them",
		Args:    cobra.NoArgs,
		PreRunE: requireSite,
		RunE:    c.Run.Execute,
	}
	runCmd.Flags().StringVar(&flags.App, "app", "", "Run the tests of this app only")
	runCmd.Flags().StringVar(&flags.Module, "module", "", "Run the tests of these dotted modules (comma separated)")
	runCmd.Flags().StringVar(&flags.DocType, "doctype", "", "Run the tests of this doctype")
	runCmd.Flags().StringVar(&flags.ModuleDef, "module-def", "", "Run the tests of every doctype of this module def")
	runCmd.Flags().StringVar(&flags.DocTypeListPath, "doctype-list-path", "", "Run the tests of the doctypes listed in <app>/<path>")
	runCmd.Flags().StringArrayVar(&flags.Tests, "test", nil, "Run only these test methods (repeatable)")
	runCmd.Flags().StringVar(&flags.Case, "case", "", "Run only this test class")
	runCmd.Flags().StringSliceVar(&flags.Categories, "category", nil, "Run only these categories (unit, integration)")
	runCmd.Flags().StringVar(&flags.JUnitXMLOutput, "junit-xml-output", "", "Write JUnit XML results to this file")
	runCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of processes running unit tests (default from ftr.yaml, else 1)")
	runCmd.Flags().BoolVar(&flags.Force, "force", false, "Delete existing records of the doctypes and remake test records")
	runCmd.Flags().BoolVar(&flags.Profile, "profile", false, "Profile the test processes with cProfile")
	runCmd.Flags().BoolVar(&flags.FailFast, "failfast", false, "Stop on first test failure")
	runCmd.Flags().BoolVar(&flags.SkipTestRecords, "skip-test-records", false, "Do not make test records")
	runCmd.Flags().BoolVar(&flags.SkipBeforeTests, "skip-before-tests", false, "Do not run before_tests hooks")
	runCmd.Flags().BoolVar(&flags.Durations, "durations", false, "Report the slowest tests")
	runCmd.Flags().BoolVarP(&flags.Migrate, "migrate", "m", false, "Run bench migrate before executing tests")
	runCmd.Flags().BoolVar(&flags.SkipFailing, "skip-failing", false, "Skip failing patches when migrating")
	runCmd.Flags().BoolVar(&flags.OpenFailures, "open-failures", false, "Open the failures viewer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List discovered tests",
		Long:    "Discover and list unit and integration tests without running them",
		Args:    cobra.NoArgs,
		PreRunE: requireSite,
		RunE:    c.List.Execute,
	}
	listCmd.Flags().StringVar(&flags.App, "app", "", "List the tests of this app only")
	listCmd.Flags().StringVar(&flags.Module, "module", "", "List the tests of these dotted modules (comma separated)")
	listCmd.Flags().StringVar(&flags.DocType, "doctype", "", "List the tests of this doctype")
	listCmd.Flags().StringSliceVar(&flags.Categories, "category", nil, "List only these categories (unit, integration)")
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter by class or test id (supports wildcards, e.g. '*test_loan*')")
	listCmd.Flags().BoolVarP(&flags.TestCases, "test-cases", "c", false, "List test methods under their classes")
	rootCmd.AddCommand(listCmd)

	// Deps command
	depsCmd := &cobra.Command{
		Use:     "deps <doctype>",
		Short:   "Show the test record dependencies of a doctype",
		Args:    cobra.ExactArgs(1),
		PreRunE: requireSite,
		RunE:    c.Deps.Execute,
	}
	rootCmd.AddCommand(depsCmd)

	// Records command
	recordsCmd := &cobra.Command{
		Use:     "records <doctype>",
		Short:   "Make the test records of a doctype and its dependencies",
		Args:    cobra.ExactArgs(1),
		PreRunE: requireSite,
		RunE:    c.Records.Execute,
	}
	recordsCmd.Flags().BoolVar(&flags.Force, "force", false, "Make records even if the test record log has the doctype")
	rootCmd.AddCommand(recordsCmd)

	// Log command
	logCmd := &cobra.Command{
		Use:     "log",
		Short:   "Show the doctypes whose test records were made on the site",
		Args:    cobra.NoArgs,
		PreRunE: requireSite,
		RunE:    c.Log.Execute,
	}
	logCmd.Flags().BoolVar(&flags.Clear, "clear", false, "Clear the test record log")
	rootCmd.AddCommand(logCmd)

	// Migrate command
	migrateCmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Run bench migrate for the site",
		Long:    "Sync doctypes and run pending patches so the site matches the apps under test",
		Args:    cobra.NoArgs,
		PreRunE: requireSite,
		RunE:    c.Migrate.Execute,
	}
	migrateCmd.Flags().BoolVar(&flags.SkipFailing, "skip-failing", false, "Skip failing patches")
	rootCmd.AddCommand(migrateCmd)

	// Failures command
	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "View test failures interactively",
		Long:  "Display test failures from the last test run in an interactive viewer",
		Args:  cobra.NoArgs,
		RunE:  c.Failures.Execute,
	}
	failuresCmd.Flags().BoolVar(&flags.Stats, "stats", false, "Print the summary of the last run instead of opening the viewer")
	rootCmd.AddCommand(failuresCmd)
}

// openEnvironment connects to the site without initializing it for a run
func openEnvironment(cmd *cobra.Command, cfg *config.Config) (*testrunner.Environment, error) {
	return testrunner.NewEnvironment(cmd.Context(), cfg, testrunner.Options{Out: cmd.OutOrStdout()})
}
