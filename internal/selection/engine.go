// Package selection decides, before each test, whether it must run or can
// be answered from its last recorded outcome.
package selection

import (
	"errors"
	"log/slog"

	"tia/internal/domain"
	"tia/internal/fingerprint"
	"tia/internal/storage"
)

// Fingerprinter computes current digests. *fingerprint.Engine implements it.
type Fingerprinter interface {
	File(path string) (string, error)
	Identity(c domain.Candidate) (string, error)
}

// Engine evaluates the selection state machine for one session.
type Engine struct {
	fp      Fingerprinter
	state   *storage.State
	enabled bool
	logger  *slog.Logger
}

// NewEngine creates an Engine reading the stored state. When enabled is
// false every test runs, but callers keep doing full bookkeeping.
func NewEngine(fp Fingerprinter, state *storage.State, enabled bool, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{fp: fp, state: state, enabled: enabled, logger: logger}
}

// Enabled reports whether selection can skip tests.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// Decide returns RUN, SKIP or EXPECTED_FAILURE for the candidate.
func (e *Engine) Decide(c domain.Candidate) domain.Decision {
	d := e.evaluate(c)
	e.logger.Debug("selection decision",
		slog.String("test", c.ID.Key()),
		slog.String("verdict", d.Verdict.String()),
		slog.String("reason", d.Reason))
	return d
}

func (e *Engine) evaluate(c domain.Candidate) domain.Decision {
	if !e.enabled {
		return run(domain.ReasonSelectionDisabled)
	}

	deps, ok := e.state.TestDependencies(c.ID)
	if !ok {
		return run(domain.ReasonUnknownTest)
	}

	for _, dep := range deps {
		current, err := e.fp.File(dep)
		if err != nil {
			if !errors.Is(err, fingerprint.ErrMissingDependency) {
				e.logger.Warn("cannot fingerprint dependency",
					slog.String("test", c.ID.Key()),
					slog.String("file", dep),
					slog.Any("error", err))
			}
			return domain.Decision{Verdict: domain.VerdictRun, Reason: domain.ReasonDependencyChanged, Changed: dep}
		}
		stored, ok := e.state.FileDigest(dep)
		if !ok || stored != current {
			return domain.Decision{Verdict: domain.VerdictRun, Reason: domain.ReasonDependencyChanged, Changed: dep}
		}
	}

	current, err := e.fp.Identity(c)
	if err != nil {
		e.logger.Warn("cannot fingerprint test", slog.String("test", c.ID.Key()), slog.Any("error", err))
		return run(domain.ReasonTestChanged)
	}
	if stored, ok := e.state.TestDigest(c.ID); !ok || stored != current {
		return run(domain.ReasonTestChanged)
	}

	outcome, _ := e.state.Outcome(c.ID)
	switch outcome {
	case domain.OutcomePassed:
		return domain.Decision{Verdict: domain.VerdictSkip, Reason: domain.ReasonUnchanged}
	case domain.OutcomeFailed, domain.OutcomeError:
		return domain.Decision{Verdict: domain.VerdictExpectedFailure, Reason: domain.ReasonKnownFailure}
	default:
		return run(domain.ReasonNoPriorExecution)
	}
}

func run(reason string) domain.Decision {
	return domain.Decision{Verdict: domain.VerdictRun, Reason: reason}
}
