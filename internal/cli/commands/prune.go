package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tia/internal/config"
)

// PruneCommand handles the prune command
type PruneCommand struct {
	config *config.Config
}

// NewPruneCommand creates a new PruneCommand
func NewPruneCommand(cfg *config.Config) *PruneCommand {
	return &PruneCommand{config: cfg}
}

// Execute drops file digests no test depends on and, with --stale, the
// records of tests the manifest no longer lists.
func (pc *PruneCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := openProject(pc.config, pc.config.Flags.Stale)
	if err != nil {
		return err
	}
	defer p.Close()

	state, err := p.store.Load(ctx)
	if err != nil {
		return err
	}

	var stale []string
	if pc.config.Flags.Stale {
		cases, err := p.cases(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(cases))
		for _, c := range cases {
			known[c.ID().Key()] = true
		}
		for _, key := range state.Tests() {
			if known[key] {
				continue
			}
			state.Forget(key)
			stale = append(stale, key)
		}
	}
	orphans := state.PruneFileDigests()

	for _, key := range stale {
		color.Yellow("- %s", key)
	}
	if pc.config.Flags.DryRun {
		color.Cyan("Would remove %d stale test(s) and %d orphaned file digest(s)", len(stale), orphans)
		return nil
	}
	if len(stale) == 0 && orphans == 0 {
		color.Green("✓ Nothing to prune")
		return nil
	}
	if err := p.store.Save(ctx, state); err != nil {
		return err
	}
	color.Green("✓ Removed %d stale test(s) and %d orphaned file digest(s) from %s", len(stale), orphans, p.store.Location())
	return nil
}
