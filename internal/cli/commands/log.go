package commands

import (
	"fmt"

	"ftr/internal/config"
	"ftr/internal/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// LogCommand handles the log command
type LogCommand struct {
	config *config.Config
}

// NewLogCommand creates a new LogCommand
func NewLogCommand(cfg *config.Config) *LogCommand {
	return &LogCommand{config: cfg}
}

// Execute shows or clears the site's test record log
func (lc *LogCommand) Execute(cmd *cobra.Command, args []string) error {
	recordLog := storage.NewTestRecordLog(lc.config.GetTestLogPath())
	out := cmd.OutOrStdout()

	if lc.config.Flags.Clear {
		if err := recordLog.Clear(); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(out, "✓ Cleared %s\n", recordLog.Path())
		return nil
	}

	doctypes, err := recordLog.Get()
	if err != nil {
		return err
	}
	if len(doctypes) == 0 {
		color.New(color.FgYellow).Fprintln(out, "No test records made on this site")
		return nil
	}
	for _, doctype := range doctypes {
		fmt.Fprintln(out, doctype)
	}
	return nil
}
