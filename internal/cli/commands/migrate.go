package commands

import (
	"ftr/internal/config"

	"github.com/spf13/cobra"
)

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	config *config.Config
}

// NewMigrateCommand creates a new MigrateCommand
func NewMigrateCommand(cfg *config.Config) *MigrateCommand {
	return &MigrateCommand{config: cfg}
}

// Execute runs the command
func (mc *MigrateCommand) Execute(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd, mc.config)
	if err != nil {
		return err
	}
	defer env.Close()

	return env.Migrator.Run(cmd.Context())
}
