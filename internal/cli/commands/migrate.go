package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tia/internal/config"
	"tia/internal/migration"
	"tia/internal/storage"
)

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	config *config.Config
}

// NewMigrateCommand creates a new MigrateCommand
func NewMigrateCommand(cfg *config.Config) *MigrateCommand {
	return &MigrateCommand{config: cfg}
}

// Execute copies the selection state of the configured store to --to.
func (mc *MigrateCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	target := *mc.config
	target.Store = mc.config.Flags.Target
	if err := target.Validate(); err != nil {
		return err
	}

	if target.Store == config.StoreMySQL {
		created, err := migration.NewDatabaseManager(&target).EnsureDatabase(ctx)
		if err != nil {
			return err
		}
		if created {
			color.Cyan("Created database for %s", target.GetProjectName())
		}
	}

	from, err := storage.New(mc.config)
	if err != nil {
		return err
	}
	defer from.Close()

	to, err := storage.New(&target)
	if err != nil {
		return err
	}
	defer to.Close()

	var m migration.Migrator = migration.NewStoreMigrator(from, to, mc.config.Flags.Force)
	report, err := m.Run(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	color.Green("✓ Copied %d test(s) and %d file digest(s) from %s to %s", report.Tests, report.Files, report.From, report.To)
	return nil
}
