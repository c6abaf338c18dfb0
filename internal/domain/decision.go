package domain

// Verdict is what the selection engine decided for a test
type Verdict int

const (
	VerdictRun Verdict = iota
	VerdictSkip
	VerdictExpectedFailure
)

func (v Verdict) String() string {
	switch v {
	case VerdictRun:
		return "run"
	case VerdictSkip:
		return "skip"
	case VerdictExpectedFailure:
		return "expected_failure"
	default:
		return "unknown"
	}
}

// Reasons reported with a decision. The skip and expected-failure reasons are
// distinct from anything a test author would write, so consumers can tell a
// selection-cached result apart from an authored skip/xfail.
const (
	ReasonUnknownTest       = "no recorded run"
	ReasonDependencyChanged = "dependency changed"
	ReasonTestChanged       = "test or fixture source changed"
	ReasonNoPriorExecution  = "no prior execution recorded"
	ReasonSelectionDisabled = "selection disabled"
	ReasonUnchanged         = "[tia] unchanged since last pass"
	ReasonKnownFailure      = "[tia] failed in the last run and nothing it depends on changed"
)

// Decision is the verdict for one test plus the reason behind it
type Decision struct {
	Verdict Verdict
	Reason  string
	Changed string // Dependency that forced a run, if any
}

// Skipped reports whether the body must not be executed.
func (d Decision) Skipped() bool {
	return d.Verdict != VerdictRun
}
