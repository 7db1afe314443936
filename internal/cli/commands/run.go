package commands

import (
	"errors"

	"ftr/internal/config"
	"ftr/internal/storage"
	"ftr/internal/testrunner"
	"ftr/internal/ui"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RunCommand handles the run command
type RunCommand struct {
	config  *config.Config
	storage storage.Storage
	viewer  ui.Viewer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(cfg *config.Config, st storage.Storage, viewer ui.Viewer) *RunCommand {
	return &RunCommand{
		config:  cfg,
		storage: st,
		viewer:  viewer,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	err := testrunner.Main(cmd.Context(), rc.config, testrunner.Options{Out: cmd.OutOrStdout()})
	if !errors.Is(err, testrunner.ErrTestsFailed) || !rc.config.Flags.OpenFailures {
		return err
	}

	results, loadErr := rc.storage.Load()
	if loadErr != nil {
		log.WithError(loadErr).Warn("could not open the failures viewer")
		return err
	}
	if viewErr := rc.viewer.View(results); viewErr != nil {
		log.WithError(viewErr).Warn("failures viewer exited with an error")
	}
	return err
}
