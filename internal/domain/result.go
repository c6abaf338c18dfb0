package domain

import (
	"fmt"
	"time"
)

// Outcome is the last classified result of an executed test
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// ParseOutcome validates a persisted outcome value.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomePassed, OutcomeFailed, OutcomeSkipped, OutcomeError:
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q", s)
}

// RunResult represents what happened to one test during a session
type RunResult struct {
	ID       TestID
	Verdict  Verdict       // Decision taken before execution
	Reason   string        // Reason reported for SKIP / EXPECTED_FAILURE
	Outcome  Outcome       // Classified outcome, empty when the body did not run
	Output   string        // Combined output of the test command
	Error    error         // Error returned by the test body
	Duration time.Duration // Time taken to execute
	Traced   bool          // Whether a dependency set was recorded
	Deps     []string      // Dependencies recorded for this run
}

// Executed reports whether the test body actually ran.
func (r RunResult) Executed() bool {
	return r.Verdict == VerdictRun
}
