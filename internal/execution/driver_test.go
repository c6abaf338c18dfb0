package execution

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tia/internal/config"
	"tia/internal/domain"
	"tia/internal/outcome"
	"tia/internal/session"
	"tia/internal/storage"
	"tia/internal/tracer"
)

type fakeHooks struct {
	verdicts  map[string]domain.Verdict
	events    map[string][]outcome.Event
	wrapped   []string
	finalized int
}

func newFakeHooks() *fakeHooks {
	return &fakeHooks{verdicts: make(map[string]domain.Verdict), events: make(map[string][]outcome.Event)}
}

func (h *fakeHooks) BeforeTest(c domain.Candidate) domain.Decision {
	v, ok := h.verdicts[c.ID.Key()]
	if !ok {
		v = domain.VerdictRun
	}
	return domain.Decision{Verdict: v, Reason: "fake " + v.String()}
}

func (h *fakeHooks) WrapExecution(id domain.TestID, body tracer.Body) ([]string, error) {
	h.wrapped = append(h.wrapped, id.Key())
	fs := tracer.NewFrameSet()
	err := body(fs)
	deps := []string{}
	for _, f := range fs.Frames() {
		deps = append(deps, f.File)
	}
	return deps, err
}

func (h *fakeHooks) RecordOutcome(id domain.TestID, ev outcome.Event) {
	h.events[id.Key()] = append(h.events[id.Key()], ev)
}

func (h *fakeHooks) Finalize(context.Context) error {
	h.finalized++
	return nil
}

type fakeProgress struct {
	observed []domain.RunResult
	finished bool
}

func (p *fakeProgress) Observe(r domain.RunResult) { p.observed = append(p.observed, r) }
func (p *fakeProgress) Finish()                    { p.finished = true }

func funcCase(name string, fn func(ctx context.Context, rec tracer.Recorder) error) Case {
	return Case{
		Candidate: domain.Candidate{ID: domain.TestID{File: "pkg/x_test.go", Name: name}},
		Func:      fn,
	}
}

func TestDriver_Run(t *testing.T) {
	hooks := newFakeHooks()
	hooks.verdicts["pkg/x_test.go::TestSkipped"] = domain.VerdictSkip
	hooks.verdicts["pkg/x_test.go::TestKnownBad"] = domain.VerdictExpectedFailure

	cases := []Case{
		funcCase("TestPass", func(_ context.Context, rec tracer.Recorder) error {
			rec.Call("pkg/x.go", "pkg.X")
			return nil
		}),
		funcCase("TestFail", func(context.Context, tracer.Recorder) error { return errors.New("want 1, got 2") }),
		funcCase("TestSelfSkip", func(context.Context, tracer.Recorder) error { return ErrSkipped }),
		funcCase("TestSkipped", func(context.Context, tracer.Recorder) error { panic("must not run") }),
		funcCase("TestKnownBad", func(context.Context, tracer.Recorder) error { panic("must not run") }),
	}

	progress := &fakeProgress{}
	d := NewDriver(hooks, nil, nil)
	d.SetProgress(progress)

	results, _, err := d.Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, domain.OutcomePassed, results[0].Outcome)
	assert.Equal(t, []string{"pkg/x.go"}, results[0].Deps)
	assert.True(t, results[0].Traced)
	assert.Equal(t, domain.OutcomeFailed, results[1].Outcome)
	assert.EqualError(t, results[1].Error, "want 1, got 2")
	assert.Equal(t, domain.OutcomeSkipped, results[2].Outcome)
	assert.NoError(t, results[2].Error)

	assert.Equal(t, domain.VerdictSkip, results[3].Verdict)
	assert.Equal(t, "fake skip", results[3].Reason)
	assert.Empty(t, results[3].Outcome)
	assert.Equal(t, domain.VerdictExpectedFailure, results[4].Verdict)

	assert.Equal(t, []string{"pkg/x_test.go::TestPass", "pkg/x_test.go::TestFail", "pkg/x_test.go::TestSelfSkip"}, hooks.wrapped)
	assert.Equal(t, []outcome.Event{outcome.Setup(outcome.StatusPassed), outcome.Call(outcome.StatusFailed)}, hooks.events["pkg/x_test.go::TestFail"])
	assert.NotContains(t, hooks.events, "pkg/x_test.go::TestSkipped")
	assert.Equal(t, 1, hooks.finalized)
	assert.Len(t, progress.observed, 5)
	assert.True(t, progress.finished)
}

type failingSetup struct{}

func (failingSetup) Setup(context.Context, Case) (string, error) {
	return "database unavailable", errors.New("setup failed")
}

func (failingSetup) Run(context.Context, Case, string) (string, error) {
	panic("must not run")
}

func TestDriver_SetupFailure(t *testing.T) {
	hooks := newFakeHooks()
	d := NewDriver(hooks, failingSetup{}, nil)

	c := Case{Candidate: domain.Candidate{ID: domain.TestID{File: "t_test.py", Name: "test_db"}}, Command: []string{"pytest"}}
	results, _, err := d.Run(context.Background(), []Case{c})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeError, results[0].Outcome)
	assert.Equal(t, "database unavailable", results[0].Output)
	assert.Empty(t, hooks.wrapped)
	assert.Equal(t, []outcome.Event{outcome.Setup(outcome.StatusFailed)}, hooks.events["t_test.py::test_db"])
}

func TestDriver_CancelledDoesNotFinalize(t *testing.T) {
	hooks := newFakeHooks()
	ctx, cancel := context.WithCancel(context.Background())

	cases := []Case{
		funcCase("TestFirst", func(context.Context, tracer.Recorder) error {
			cancel()
			return nil
		}),
		funcCase("TestSecond", func(context.Context, tracer.Recorder) error { panic("must not run") }),
	}

	results, _, err := NewDriver(hooks, nil, nil).Run(ctx, cases)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Zero(t, hooks.finalized)
}

func TestDriver_CommandsWithSession(t *testing.T) {
	requireShell(t)

	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	root := cfg.GetProjectRoot()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0755))
	write := func(content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "a.src"), []byte(content), 0644))
	}
	write("v1")

	store := storage.NewJSONStorage(cfg)
	cases := []Case{
		{
			Candidate: domain.Candidate{ID: domain.TestID{File: "tests/a_test.sh", Name: "uses_a"}, Source: []byte("uses_a")},
			Command:   []string{"sh", "-c", `printf 'lib/a.src\tlib.helper\n' >> "$TIA_TRACE_FILE"`},
		},
		{
			Candidate: domain.Candidate{ID: domain.TestID{File: "tests/a_test.sh", Name: "skips"}, Source: []byte("skips")},
			Command:   []string{"sh", "-c", "exit 77"},
		},
		{
			Candidate: domain.Candidate{ID: domain.TestID{File: "tests/a_test.sh", Name: "fails"}, Source: []byte("fails")},
			Command:   []string{"sh", "-c", "echo 'assert failed'; exit 1"},
		},
	}

	run := func() []domain.RunResult {
		ctx := context.Background()
		sess, err := session.Open(ctx, store, session.Options{
			Root:      root,
			Selection: true,
			Capturer:  NewTraceFileCapturer(t.TempDir(), nil),
		})
		require.NoError(t, err)
		results, _, err := NewDriver(sess, NewCommandRunner(cfg), nil).Run(ctx, cases)
		require.NoError(t, err)
		return results
	}

	first := run()
	assert.Equal(t, domain.OutcomePassed, first[0].Outcome)
	assert.Equal(t, []string{"lib/a.src"}, first[0].Deps)
	assert.Equal(t, domain.OutcomeSkipped, first[1].Outcome)
	assert.Equal(t, domain.OutcomeFailed, first[2].Outcome)

	second := run()
	assert.Equal(t, domain.VerdictSkip, second[0].Verdict)
	assert.Equal(t, domain.VerdictRun, second[1].Verdict, "skipped tests have no prior execution")
	assert.Equal(t, domain.VerdictExpectedFailure, second[2].Verdict)

	write("v2")
	third := run()
	assert.Equal(t, domain.VerdictRun, third[0].Verdict)
	assert.Equal(t, domain.ReasonDependencyChanged, third[0].Reason)
}

func TestDriver_MissingBinaryRunsAgain(t *testing.T) {
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	root := cfg.GetProjectRoot()
	store := storage.NewJSONStorage(cfg)
	id := domain.TestID{File: "tests/x_test.sh", Name: "t"}
	cases := []Case{{
		Candidate: domain.Candidate{ID: id, Source: []byte("t")},
		Command:   []string{filepath.Join(root, "missing", "binary")},
	}}

	run := func() domain.RunResult {
		ctx := context.Background()
		sess, err := session.Open(ctx, store, session.Options{
			Root:      root,
			Selection: true,
			Capturer:  NewTraceFileCapturer(t.TempDir(), nil),
		})
		require.NoError(t, err)
		results, _, err := NewDriver(sess, NewCommandRunner(cfg), nil).Run(ctx, cases)
		require.NoError(t, err)
		require.Len(t, results, 1)
		return results[0]
	}

	first := run()
	assert.Equal(t, domain.OutcomeError, first.Outcome)
	assert.ErrorIs(t, first.Error, ErrNotStarted)

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	_, ok := state.TestDependencies(id)
	assert.False(t, ok, "a test that never started has no dependency record")
	_, ok = state.TestDigest(id)
	assert.False(t, ok)

	second := run()
	assert.Equal(t, domain.VerdictRun, second.Verdict)
	assert.Equal(t, domain.ReasonUnknownTest, second.Reason)
	assert.Equal(t, domain.OutcomeError, second.Outcome)
}
