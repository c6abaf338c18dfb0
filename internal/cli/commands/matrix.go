package commands

import (
	"os"

	"github.com/spf13/cobra"

	"tia/internal/config"
	"tia/internal/discovery"
	"tia/internal/ui"
)

// MatrixCommand handles the matrix command
type MatrixCommand struct {
	config *config.Config
	viewer ui.Viewer
}

// NewMatrixCommand creates a new MatrixCommand
func NewMatrixCommand(cfg *config.Config, viewer ui.Viewer) *MatrixCommand {
	return &MatrixCommand{
		config: cfg,
		viewer: viewer,
	}
}

// Execute shows the recorded tests and their dependency files. It only
// reads the selection state.
func (mc *MatrixCommand) Execute(cmd *cobra.Command, args []string) error {
	p, err := openProject(mc.config, false)
	if err != nil {
		return err
	}
	defer p.Close()

	state, err := p.store.Load(cmd.Context())
	if err != nil {
		return err
	}

	m := ui.BuildMatrix(state)
	if pattern := mc.config.Flags.NameFilter; pattern != "" {
		filter := discovery.NewFilter()
		m = m.Filter(func(key string) bool { return filter.Match(key, pattern) })
	}

	if mc.config.Flags.Plain {
		return ui.WritePlain(os.Stdout, m)
	}
	return mc.viewer.View(m)
}
