package commands

import (
	"context"
	"strings"

	"ftr/internal/config"
	"ftr/internal/discovery"
	"ftr/internal/domain"
	"ftr/internal/storage"
	"ftr/internal/testrunner"
	"ftr/internal/ui"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	storage   storage.Storage
	formatter *ui.Formatter
}

// NewListCommand creates a new ListCommand
func NewListCommand(cfg *config.Config, st storage.Storage, formatter *ui.Formatter) *ListCommand {
	return &ListCommand{
		config:    cfg,
		storage:   st,
		formatter: formatter,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	if err := lc.config.Validate(); err != nil {
		return err
	}
	env, err := openEnvironment(cmd, lc.config)
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := lc.discover(cmd.Context(), env)
	if err != nil {
		return err
	}

	suites := []*domain.Suite{
		FilterSuite(res.Unit, lc.config.Flags.NameFilter),
		FilterSuite(res.Integration, lc.config.Flags.NameFilter),
	}
	if suites[0].Empty() && suites[1].Empty() {
		color.Yellow("No tests found")
		return nil
	}

	// Mark tests that failed in the last run, if any
	var failed map[string]struct{}
	if output, err := lc.storage.Load(); err == nil {
		failed = ui.FailedIDs(output)
	} else {
		log.WithError(err).Debug("no previous results")
	}

	lc.formatter.PrintTestList(suites, lc.config.Flags.TestCases, failed)
	return nil
}

func (lc *ListCommand) discover(ctx context.Context, env *testrunner.Environment) (*discovery.Result, error) {
	categories, _ := lc.config.SelectedCategories()
	d := env.Discoverer(discovery.Options{
		Categories:      categories,
		SkipTestRecords: true,
	})

	flags := lc.config.Flags
	switch {
	case flags.DocType != "":
		return d.DiscoverDocTypeTests(ctx, []string{flags.DocType})
	case flags.Module != "":
		return d.DiscoverModuleTests(ctx, strings.Split(flags.Module, ","))
	default:
		apps, err := env.Apps(ctx, flags.App)
		if err != nil {
			return nil, err
		}
		return d.DiscoverTests(ctx, apps)
	}
}

// FilterSuite returns the cases of suite whose class id or test id matches
// pattern. An empty pattern keeps every case.
func FilterSuite(suite *domain.Suite, pattern string) *domain.Suite {
	if pattern == "" {
		return suite
	}
	out := domain.NewSuite(suite.Category)
	for _, tc := range suite.Cases() {
		if discovery.Match(tc.ClassID(), pattern) || discovery.Match(tc.ID(), pattern) {
			out.Add(tc)
		}
	}
	return out
}
