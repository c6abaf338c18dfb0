package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"tia/internal/config"
)

// TraceFileEnv names the environment variable that carries the trace file
// path to the test process.
const TraceFileEnv = "TIA_TRACE_FILE"

var (
	// ErrSkipped is returned when the test process exits with the skip code.
	ErrSkipped = errors.New("test skipped")
	// ErrNotStarted is returned when a command could not be started at all.
	ErrNotStarted = errors.New("command not started")
)

// CaseRunner executes the external parts of a case.
type CaseRunner interface {
	Setup(ctx context.Context, c Case) (string, error)
	Run(ctx context.Context, c Case, tracePath string) (string, error)
}

// CommandRunner executes test commands in the project root
type CommandRunner struct {
	root         string
	skipExitCode int
}

// NewCommandRunner creates a new CommandRunner
func NewCommandRunner(cfg *config.Config) *CommandRunner {
	return &CommandRunner{root: cfg.GetProjectRoot(), skipExitCode: cfg.SkipExitCode}
}

// Setup runs the case's setup command, if any.
func (r *CommandRunner) Setup(ctx context.Context, c Case) (string, error) {
	if len(c.Setup) == 0 {
		return "", nil
	}
	output, err := r.command(ctx, c.Setup, c, "").CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("setup %s: %w", c.ID(), classify(err))
	}
	return string(output), nil
}

// Run executes the case's test command. The exit code decides the result:
// zero passes, the skip code returns ErrSkipped, anything else fails.
func (r *CommandRunner) Run(ctx context.Context, c Case, tracePath string) (string, error) {
	if len(c.Command) == 0 {
		return "", fmt.Errorf("%s: %w: no command", c.ID(), ErrNotStarted)
	}
	output, err := r.command(ctx, c.Command, c, tracePath).CombinedOutput()
	if err == nil {
		return string(output), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && r.skipExitCode != 0 && exitErr.ExitCode() == r.skipExitCode {
		return string(output), ErrSkipped
	}
	return string(output), classify(err)
}

func (r *CommandRunner) command(ctx context.Context, argv []string, c Case, tracePath string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.root

	cmd.Env = os.Environ()
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+c.Env[k])
	}
	cmd.Env = append(cmd.Env,
		"TIA_ROOT="+r.root,
		"TIA_TEST_ID="+c.ID().Key(),
	)
	if tracePath != "" {
		cmd.Env = append(cmd.Env, TraceFileEnv+"="+tracePath)
	}
	return cmd
}

func classify(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotStarted, err)
}
