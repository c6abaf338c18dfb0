package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tia/internal/domain"
	"tia/internal/outcome"
	"tia/internal/tracer"
)

// Driver runs cases one after another through the selection hooks.
type Driver struct {
	hooks    Hooks
	runner   CaseRunner
	progress Progress
	logger   *slog.Logger
}

// NewDriver creates a new Driver
func NewDriver(hooks Hooks, runner CaseRunner, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{hooks: hooks, runner: runner, logger: logger}
}

// SetProgress sets the progress reporter for the driver
func (d *Driver) SetProgress(p Progress) {
	d.progress = p
}

// Run executes every case and finalizes the session once. When ctx is
// cancelled the driver stops before the next case and returns ctx.Err()
// without finalizing.
func (d *Driver) Run(ctx context.Context, cases []Case) ([]domain.RunResult, time.Duration, error) {
	startTime := time.Now()
	results := make([]domain.RunResult, 0, len(cases))

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return results, time.Since(startTime), err
		}
		r := d.runCase(ctx, c)
		results = append(results, r)
		if d.progress != nil {
			d.progress.Observe(r)
		}
	}
	if err := ctx.Err(); err != nil {
		return results, time.Since(startTime), err
	}

	if d.progress != nil {
		d.progress.Finish()
	}
	if err := d.hooks.Finalize(ctx); err != nil {
		return results, time.Since(startTime), err
	}
	return results, time.Since(startTime), nil
}

func (d *Driver) runCase(ctx context.Context, c Case) (res domain.RunResult) {
	id := c.ID()
	decision := d.hooks.BeforeTest(c.Candidate)
	res = domain.RunResult{ID: id, Verdict: decision.Verdict, Reason: decision.Reason}
	if decision.Skipped() {
		return res
	}

	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if d.runner != nil {
		output, err := d.runner.Setup(ctx, c)
		if err != nil {
			d.hooks.RecordOutcome(id, outcome.Setup(outcome.StatusFailed))
			res.Outcome, res.Output, res.Error = domain.OutcomeError, output, err
			return res
		}
	}
	d.hooks.RecordOutcome(id, outcome.Setup(outcome.StatusPassed))

	var output string
	deps, err := d.hooks.WrapExecution(id, func(rec tracer.Recorder) error {
		if c.Func != nil {
			return c.Func(ctx, rec)
		}
		if d.runner == nil {
			return ErrNotStarted
		}
		out, err := d.runner.Run(ctx, c, TracePath(rec))
		output = out
		return err
	})
	res.Output, res.Error, res.Deps, res.Traced = output, err, deps, deps != nil

	switch {
	case err == nil:
		d.hooks.RecordOutcome(id, outcome.Call(outcome.StatusPassed))
		res.Outcome = domain.OutcomePassed
	case errors.Is(err, ErrSkipped):
		d.hooks.RecordOutcome(id, outcome.Call(outcome.StatusSkipped))
		res.Outcome, res.Error = domain.OutcomeSkipped, nil
	case errors.Is(err, ErrNotStarted):
		d.hooks.RecordOutcome(id, outcome.Setup(outcome.StatusFailed))
		res.Outcome = domain.OutcomeError
	default:
		d.hooks.RecordOutcome(id, outcome.Call(outcome.StatusFailed))
		res.Outcome = domain.OutcomeFailed
	}

	d.logger.Debug("test finished",
		slog.String("test", id.Key()),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("deps", len(deps)))
	return res
}
