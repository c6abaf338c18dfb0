package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tia/internal/config"
	"tia/internal/execution"
	"tia/internal/metrics"
	"tia/internal/session"
	"tia/internal/ui"
)

// ErrTestsFailed is returned when a run ends with failing, erroring or
// still-failing tests.
var ErrTestsFailed = errors.New("tests failed")

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	formatter *ui.Formatter
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(cfg *config.Config, formatter *ui.Formatter) *RunCommand {
	return &RunCommand{
		config:    cfg,
		formatter: formatter,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	p, err := openProject(rc.config, true)
	if err != nil {
		return err
	}
	defer p.Close()

	return rc.runOnce(cmd.Context(), p)
}

// runOnce executes one session over the manifest's tests and saves it.
func (rc *RunCommand) runOnce(ctx context.Context, p *project) error {
	cases, err := p.cases(ctx)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		color.Yellow("No tests to execute")
		return nil
	}

	collector := metrics.NewCollector()
	sess, err := session.Open(ctx, p.store, session.Options{
		Root:      p.root,
		Exclude:   rc.config.ExcludePrefixes(),
		Selection: !rc.config.NoSelection,
		Capturer:  execution.NewTraceFileCapturer("", nil),
		Logger:    p.logger,
		Metrics:   collector,
	})
	if err != nil {
		return err
	}
	if rc.config.NoSelection {
		color.Yellow("Selection disabled: every test runs")
	}

	driver := execution.NewDriver(sess, execution.NewCommandRunner(rc.config), p.logger.With(slog.String("session", sess.ID())))
	driver.SetProgress(ui.NewProgressBar(len(cases)))

	results, duration, err := driver.Run(ctx, cases)
	if err != nil {
		return err
	}

	if path := rc.config.Flags.MetricsFile; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	rc.formatter.PrintSummary(results, duration, sess.ID(), p.store.Location())

	s := ui.Summarize(results)
	if s.Failed+s.Errors+s.ExpectedFailures > 0 {
		return ErrTestsFailed
	}
	return nil
}
