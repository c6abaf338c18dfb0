package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tia/internal/config"
	"tia/internal/watch"
)

// WatchCommand handles the watch command
type WatchCommand struct {
	config *config.Config
	run    *RunCommand
}

// NewWatchCommand creates a new WatchCommand
func NewWatchCommand(cfg *config.Config, run *RunCommand) *WatchCommand {
	return &WatchCommand{config: cfg, run: run}
}

// Execute runs the suite, then runs it again with selection every time files
// under the project root change, until interrupted.
func (wc *WatchCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := openProject(wc.config, true)
	if err != nil {
		return err
	}
	defer p.Close()

	w, err := watch.New(p.root, wc.config.Flags.Debounce, wc.config.PathsToIgnore, p.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	rerun := func(ctx context.Context) error {
		err := wc.run.runOnce(ctx, p)
		switch {
		case err == nil, errors.Is(err, ErrTestsFailed):
			color.Cyan("Watching %s for changes (Ctrl+C to stop)", p.root)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}
		// A broken manifest or test file is reported and fixed by the
		// next edit.
		color.Red("Error: %v", err)
		return nil
	}

	if err := rerun(ctx); err != nil {
		return err
	}

	err = w.Run(ctx, func(ctx context.Context, paths []string) error {
		p.logger.Info("re-running after change", slog.String("files", strings.Join(paths, ",")))
		color.Cyan("\nChanged: %s", strings.Join(paths, ", "))
		return rerun(ctx)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
