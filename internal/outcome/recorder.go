// Package outcome classifies the result of each executed test.
package outcome

import "tia/internal/domain"

// Phase is a stage of a single test execution.
type Phase int

const (
	PhaseSetup Phase = iota
	PhaseCall
	PhaseTeardown
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseCall:
		return "call"
	case PhaseTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// Status is how a phase ended.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

// Event is reported by the host once per phase.
type Event struct {
	Phase  Phase
	Status Status
}

// Setup, Call and Teardown build phase events.
func Setup(s Status) Event    { return Event{Phase: PhaseSetup, Status: s} }
func Call(s Status) Event     { return Event{Phase: PhaseCall, Status: s} }
func Teardown(s Status) Event { return Event{Phase: PhaseTeardown, Status: s} }

// Recorder keeps exactly one outcome per executed test. A failed setup is
// final; otherwise the call phase decides. Teardown never changes the outcome.
type Recorder struct {
	outcomes map[domain.TestID]domain.Outcome
	order    []domain.TestID
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{outcomes: make(map[domain.TestID]domain.Outcome)}
}

// Observe classifies a phase event for a test.
func (r *Recorder) Observe(id domain.TestID, ev Event) {
	if r.outcomes[id] == domain.OutcomeError {
		return
	}

	switch ev.Phase {
	case PhaseSetup:
		switch ev.Status {
		case StatusFailed:
			r.set(id, domain.OutcomeError)
		case StatusSkipped:
			r.set(id, domain.OutcomeSkipped)
		}
	case PhaseCall:
		switch ev.Status {
		case StatusPassed:
			r.set(id, domain.OutcomePassed)
		case StatusFailed:
			r.set(id, domain.OutcomeFailed)
		case StatusSkipped:
			r.set(id, domain.OutcomeSkipped)
		}
	}
}

// Outcome returns the classified outcome of a test, if it was executed.
func (r *Recorder) Outcome(id domain.TestID) (domain.Outcome, bool) {
	o, ok := r.outcomes[id]
	return o, ok
}

// Tests returns the tests with an outcome in the order first observed.
func (r *Recorder) Tests() []domain.TestID {
	out := make([]domain.TestID, len(r.order))
	copy(out, r.order)
	return out
}

// Counts returns how many tests ended in each outcome.
func (r *Recorder) Counts() map[domain.Outcome]int {
	counts := make(map[domain.Outcome]int)
	for _, o := range r.outcomes {
		counts[o]++
	}
	return counts
}

func (r *Recorder) set(id domain.TestID, o domain.Outcome) {
	if _, ok := r.outcomes[id]; !ok {
		r.order = append(r.order, id)
	}
	r.outcomes[id] = o
}
