package execution

import (
	"context"
	"time"

	"tia/internal/domain"
	"tia/internal/outcome"
	"tia/internal/tracer"
)

// Hooks are the selection points a driver calls around every test.
// *session.Session implements it.
type Hooks interface {
	BeforeTest(c domain.Candidate) domain.Decision
	// WrapExecution returns the dependencies recorded for the body, nil when
	// the body ran untraced.
	WrapExecution(id domain.TestID, body tracer.Body) ([]string, error)
	RecordOutcome(id domain.TestID, ev outcome.Event)
	Finalize(ctx context.Context) error
}

// Executor executes test cases and returns their results
type Executor interface {
	Run(ctx context.Context, cases []Case) ([]domain.RunResult, time.Duration, error)
}

// Case is one selectable test and how to execute it. Func runs the body
// in-process; otherwise Command is executed.
type Case struct {
	Candidate domain.Candidate
	Command   []string
	Setup     []string
	Env       map[string]string
	Func      func(ctx context.Context, rec tracer.Recorder) error
}

// ID returns the case's test identity.
func (c Case) ID() domain.TestID {
	return c.Candidate.ID
}

// Progress observes results as the driver produces them.
type Progress interface {
	Observe(r domain.RunResult)
	Finish()
}
