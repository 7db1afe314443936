package commands

import (
	"fmt"

	"ftr/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DepsCommand handles the deps command
type DepsCommand struct {
	config *config.Config
}

// NewDepsCommand creates a new DepsCommand
func NewDepsCommand(cfg *config.Config) *DepsCommand {
	return &DepsCommand{config: cfg}
}

// Execute prints the doctypes whose test records the doctype depends on
func (dc *DepsCommand) Execute(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd, dc.config)
	if err != nil {
		return err
	}
	defer env.Close()

	doctype := args[0]
	deps, err := env.Resolver.Dependencies(cmd.Context(), doctype)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	color.New(color.FgCyan, color.Bold).Fprintf(out, "Test record dependencies of %s:\n", doctype)
	for _, dep := range deps {
		fmt.Fprintf(out, "  %s\n", dep)
	}
	return nil
}
