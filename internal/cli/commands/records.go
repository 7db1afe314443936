package commands

import (
	"fmt"
	"os"

	"ftr/internal/config"
	"ftr/internal/ui"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RecordsCommand handles the records command
type RecordsCommand struct {
	config *config.Config
}

// NewRecordsCommand creates a new RecordsCommand
func NewRecordsCommand(cfg *config.Config) *RecordsCommand {
	return &RecordsCommand{config: cfg}
}

// Execute makes the test records of a doctype and of everything it links to
func (rc *RecordsCommand) Execute(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd, rc.config)
	if err != nil {
		return err
	}
	defer env.Close()

	progress := ui.NewRecordProgress(os.Stderr)
	env.Maker.SetObserver(progress)
	err = env.Maker.MakeTestRecords(cmd.Context(), args[0], rc.config.Flags.Force)
	progress.Finish()
	if err != nil {
		return fmt.Errorf("make test records of %s: %w", args[0], err)
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ Made %d test record(s) for %s\n", progress.Records(), args[0])
	return nil
}
