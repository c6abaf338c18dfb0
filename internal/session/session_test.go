package session

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
	"tia/internal/fingerprint"
	"tia/internal/outcome"
	"tia/internal/storage"
	"tia/internal/tracer"
)

type testCase struct {
	id        domain.TestID
	source    string
	fixtures  []string
	deps      []string
	fail      bool
	setupFail bool
}

type suite struct {
	t        *testing.T
	root     string
	store    *storage.JSONStorage
	fixtures map[string]string
	tests    []*testCase
	capturer tracer.Capturer
}

type runReport struct {
	decisions map[string]domain.Decision
	executed  []string
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	return &suite{
		t:        t,
		root:     cfg.GetProjectRoot(),
		store:    storage.NewJSONStorage(cfg),
		fixtures: make(map[string]string),
	}
}

func (s *suite) write(rel, content string) {
	s.t.Helper()
	path := filepath.Join(s.root, rel)
	require.NoError(s.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(s.t, os.WriteFile(path, []byte(content), 0644))
}

func (s *suite) add(tc *testCase) *testCase {
	s.tests = append(s.tests, tc)
	return tc
}

func (s *suite) candidate(tc *testCase) domain.Candidate {
	c := domain.Candidate{ID: tc.id, Source: []byte(tc.source)}
	for _, name := range tc.fixtures {
		src := s.fixtures[name]
		c.Fixtures = append(c.Fixtures, domain.StaticFixture(name, []byte(src)))
	}
	return c
}

func (s *suite) run(selection bool) runReport {
	s.t.Helper()
	ctx := context.Background()
	sess, err := Open(ctx, s.store, Options{Root: s.root, Selection: selection, Capturer: s.capturer})
	require.NoError(s.t, err)

	report := runReport{decisions: make(map[string]domain.Decision)}
	for _, tc := range s.tests {
		d := sess.BeforeTest(s.candidate(tc))
		report.decisions[tc.id.Key()] = d
		if d.Skipped() {
			continue
		}
		if tc.setupFail {
			sess.RecordOutcome(tc.id, outcome.Setup(outcome.StatusFailed))
			continue
		}
		sess.RecordOutcome(tc.id, outcome.Setup(outcome.StatusPassed))
		report.executed = append(report.executed, tc.id.Key())

		_, err := sess.WrapExecution(tc.id, func(rec tracer.Recorder) error {
			rec.Call(filepath.Join(s.root, tc.id.File), tc.id.Name)
			for _, dep := range tc.deps {
				rec.Call(filepath.Join(s.root, dep), "project.Helper")
			}
			if tc.fail {
				return errors.New("assertion failed")
			}
			return nil
		})
		status := outcome.StatusPassed
		if err != nil {
			status = outcome.StatusFailed
		}
		sess.RecordOutcome(tc.id, outcome.Call(status))
	}
	require.NoError(s.t, sess.Finalize(ctx))
	return report
}

func (s *suite) state() *storage.State {
	s.t.Helper()
	st, err := s.store.Load(context.Background())
	require.NoError(s.t, err)
	return st
}

func verdicts(r runReport) map[string]domain.Verdict {
	out := make(map[string]domain.Verdict, len(r.decisions))
	for k, d := range r.decisions {
		out[k] = d.Verdict
	}
	return out
}

func newProject(t *testing.T) (*suite, *testCase, *testCase, *testCase, *testCase) {
	s := newSuite(t)
	s.write("project/a.src", "a v1")
	s.write("project/b.src", "b v1")
	s.fixtures["db"] = "def db(): return Database()"

	t1 := s.add(&testCase{id: domain.TestID{File: "tests/t1_test.src", Name: "test_one"}, source: "one", deps: []string{"project/a.src"}})
	t2 := s.add(&testCase{id: domain.TestID{File: "tests/t2_test.src", Name: "test_two"}, source: "two", deps: []string{"project/a.src", "project/b.src"}, fixtures: []string{"db"}})
	t3 := s.add(&testCase{id: domain.TestID{File: "tests/t3_test.src", Name: "test_three"}, source: "three", deps: []string{"project/b.src"}, fail: true})
	t4 := s.add(&testCase{id: domain.TestID{File: "tests/t4_test.src", Name: "test_four"}, source: "four", setupFail: true})
	return s, t1, t2, t3, t4
}

func TestSession_ConcreteScenario(t *testing.T) {
	s := newSuite(t)
	s.write("a.src", "first")
	t1 := s.add(&testCase{id: domain.TestID{File: "t1_test.src", Name: "t1"}, source: "body", deps: []string{"a.src"}})

	h1, err := fingerprint.FileDigest(filepath.Join(s.root, "a.src"))
	require.NoError(t, err)

	// Run 1: executes and stores {a.src: H1}, B1, PASSED.
	r1 := s.run(true)
	assert.Equal(t, domain.VerdictRun, r1.decisions[t1.id.Key()].Verdict)
	st := s.state()
	deps, ok := st.TestDependencies(t1.id)
	require.True(t, ok)
	assert.Equal(t, []string{"a.src"}, deps)
	assert.Equal(t, map[string]string{"a.src": h1}, st.FileDigests)
	b1, _ := st.TestDigest(t1.id)
	assert.Equal(t, fingerprint.IdentityDigest([]byte("body")), b1)
	o, _ := st.Outcome(t1.id)
	assert.Equal(t, domain.OutcomePassed, o)

	// Run 2: no edits.
	r2 := s.run(true)
	assert.Equal(t, domain.VerdictSkip, r2.decisions[t1.id.Key()].Verdict)
	assert.Equal(t, domain.ReasonUnchanged, r2.decisions[t1.id.Key()].Reason)
	assert.Empty(t, r2.executed)

	// Run 3: a.src changed.
	s.write("a.src", "second")
	h2, err := fingerprint.FileDigest(filepath.Join(s.root, "a.src"))
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	r3 := s.run(true)
	assert.Equal(t, domain.VerdictRun, r3.decisions[t1.id.Key()].Verdict)
	assert.Equal(t, "a.src", r3.decisions[t1.id.Key()].Changed)
	d, _ := s.state().FileDigest("a.src")
	assert.Equal(t, h2, d)
}

func TestSession_Idempotence(t *testing.T) {
	s, t1, t2, t3, t4 := newProject(t)

	first := s.run(true)
	for _, v := range verdicts(first) {
		assert.Equal(t, domain.VerdictRun, v, "unknown tests always run")
	}

	second := s.run(true)
	assert.Empty(t, second.executed, "no traced test re-executes without changes")
	assert.Equal(t, map[string]domain.Verdict{
		t1.id.Key(): domain.VerdictSkip,
		t2.id.Key(): domain.VerdictSkip,
		t3.id.Key(): domain.VerdictExpectedFailure,
		// t4 never got past setup, so it has no dependency record.
		t4.id.Key(): domain.VerdictRun,
	}, verdicts(second))
	assert.Equal(t, domain.ReasonKnownFailure, second.decisions[t3.id.Key()].Reason)
	assert.Equal(t, domain.ReasonUnknownTest, second.decisions[t4.id.Key()].Reason)
}

func TestSession_ErroredAfterWrapIsNotCached(t *testing.T) {
	s := newSuite(t)
	s.write("a.src", "content")
	id := domain.TestID{File: "t_test.sh", Name: "t"}
	c := domain.Candidate{ID: id, Source: []byte("body")}
	ctx := context.Background()

	// The body went through the tracer but its command never started.
	for run := 0; run < 2; run++ {
		sess, err := Open(ctx, s.store, Options{Root: s.root, Selection: true})
		require.NoError(t, err)
		d := sess.BeforeTest(c)
		assert.Equal(t, domain.VerdictRun, d.Verdict, "run %d", run+1)

		sess.RecordOutcome(id, outcome.Setup(outcome.StatusPassed))
		_, err = sess.WrapExecution(id, func(rec tracer.Recorder) error {
			rec.Call(filepath.Join(s.root, "a.src"), "helper")
			return errors.New("command not started")
		})
		require.Error(t, err)
		sess.RecordOutcome(id, outcome.Setup(outcome.StatusFailed))
		require.NoError(t, sess.Finalize(ctx))

		st := s.state()
		_, ok := st.TestDependencies(id)
		assert.False(t, ok)
		_, ok = st.TestDigest(id)
		assert.False(t, ok)
		o, _ := st.Outcome(id)
		assert.Equal(t, domain.OutcomeError, o)
	}
}

func TestSession_DependencyChangePropagation(t *testing.T) {
	s, t1, t2, t3, _ := newProject(t)
	s.run(true)

	s.write("project/a.src", "a v2")
	r := s.run(true)

	assert.Equal(t, domain.VerdictRun, r.decisions[t1.id.Key()].Verdict)
	assert.Equal(t, domain.VerdictRun, r.decisions[t2.id.Key()].Verdict)
	assert.Equal(t, domain.VerdictExpectedFailure, r.decisions[t3.id.Key()].Verdict)
	assert.ElementsMatch(t, []string{t1.id.Key(), t2.id.Key()}, r.executed)
}

func TestSession_SelfChangePropagation(t *testing.T) {
	s, t1, t2, _, _ := newProject(t)
	s.run(true)

	t2.source = "two, edited"
	r := s.run(true)

	assert.Equal(t, domain.VerdictSkip, r.decisions[t1.id.Key()].Verdict)
	assert.Equal(t, domain.VerdictRun, r.decisions[t2.id.Key()].Verdict)
	assert.Equal(t, domain.ReasonTestChanged, r.decisions[t2.id.Key()].Reason)
	assert.Equal(t, []string{t2.id.Key()}, r.executed)
}

func TestSession_FixtureChangePropagation(t *testing.T) {
	s, t1, t2, _, _ := newProject(t)
	s.run(true)

	deps, _ := s.state().TestDependencies(t2.id)
	require.Equal(t, []string{"project/a.src", "project/b.src"}, deps)

	s.fixtures["db"] = "def db(): return Database(path=':memory:')"
	r := s.run(true)

	assert.Equal(t, domain.VerdictSkip, r.decisions[t1.id.Key()].Verdict)
	assert.Equal(t, domain.VerdictRun, r.decisions[t2.id.Key()].Verdict)
	assert.Equal(t, domain.ReasonTestChanged, r.decisions[t2.id.Key()].Reason)
}

func TestSession_UnknownTestRuns(t *testing.T) {
	s, _, _, _, _ := newProject(t)
	s.run(true)

	t5 := s.add(&testCase{id: domain.TestID{File: "tests/t5_test.src", Name: "test_five"}, source: "five"})
	r := s.run(true)
	assert.Equal(t, domain.VerdictRun, r.decisions[t5.id.Key()].Verdict)
	assert.Equal(t, domain.ReasonUnknownTest, r.decisions[t5.id.Key()].Reason)
	assert.Equal(t, []string{t5.id.Key()}, r.executed)
}

func TestSession_SameBasenameDifferentDirectories(t *testing.T) {
	s := newSuite(t)
	s.write("a.src", "a")
	s.write("b.src", "b")
	unit := s.add(&testCase{id: domain.TestID{File: "unit/test_user.py", Name: "test_create"}, source: "unit", deps: []string{"a.src"}})
	integ := s.add(&testCase{id: domain.TestID{File: "integration/test_user.py", Name: "test_create"}, source: "integration", deps: []string{"b.src"}})
	s.run(true)

	s.write("b.src", "b changed")
	r := s.run(true)
	assert.Equal(t, domain.VerdictSkip, r.decisions[unit.id.Key()].Verdict)
	assert.Equal(t, domain.VerdictRun, r.decisions[integ.id.Key()].Verdict)
}

func TestSession_SelectionDisabledKeepsBookkeeping(t *testing.T) {
	s, _, _, _, _ := newProject(t)
	s.run(true)
	before, err := os.ReadFile(s.store.Location())
	require.NoError(t, err)

	r := s.run(false)
	for key, d := range r.decisions {
		assert.Equal(t, domain.VerdictRun, d.Verdict, key)
		assert.Equal(t, domain.ReasonSelectionDisabled, d.Reason, key)
	}
	assert.Len(t, r.executed, 3, "every test whose setup succeeds runs")

	after, err := os.ReadFile(s.store.Location())
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "state is updated identically to an enabled run")

	s.write("project/b.src", "b v2")
	s.run(false)
	enabled := s.run(true)
	assert.Empty(t, enabled.executed, "disabled run refreshed digests for the changed file")
}

func TestSession_RetraceReplacesDependencies(t *testing.T) {
	s, _, t2, _, _ := newProject(t)
	s.run(true)

	t2.deps = []string{"project/a.src"}
	t2.source = "two, no longer touches b"
	s.run(true)

	deps, _ := s.state().TestDependencies(t2.id)
	assert.Equal(t, []string{"project/a.src"}, deps)

	s.write("project/b.src", "b v2")
	r := s.run(true)
	assert.Equal(t, domain.VerdictSkip, r.decisions[t2.id.Key()].Verdict, "removed dependency must not linger")
}

func TestSession_MissingDependency(t *testing.T) {
	s, t1, _, _, _ := newProject(t)
	s.run(true)

	require.NoError(t, os.Remove(filepath.Join(s.root, "project", "a.src")))
	r := s.run(true)
	assert.Equal(t, domain.VerdictRun, r.decisions[t1.id.Key()].Verdict)
	assert.Equal(t, domain.ReasonDependencyChanged, r.decisions[t1.id.Key()].Reason)

	_, ok := s.state().FileDigest("project/a.src")
	assert.False(t, ok, "no digest is stored for a file that no longer exists")
}

type brokenCapturer struct{}

func (brokenCapturer) Start(domain.TestID) (tracer.Capture, error) {
	return nil, errors.New("trace unavailable")
}

func TestSession_TracingFailureRunsUntraced(t *testing.T) {
	s, t1, _, t3, _ := newProject(t)
	s.run(true)

	s.capturer = brokenCapturer{}
	s.write("project/a.src", "a v2")
	s.write("project/b.src", "b v2")
	r := s.run(true)
	assert.Contains(t, r.executed, t1.id.Key())
	assert.Contains(t, r.executed, t3.id.Key())

	st := s.state()
	_, ok := st.TestDependencies(t1.id)
	assert.False(t, ok, "no dependency set is recorded for an untraced run")
	o, _ := st.Outcome(t3.id)
	assert.Equal(t, domain.OutcomeFailed, o, "the test's own failure still surfaces")

	s.capturer = nil
	again := s.run(true)
	assert.Equal(t, domain.ReasonUnknownTest, again.decisions[t1.id.Key()].Reason)
}

func TestSession_FinalizeOnce(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	sess, err := Open(ctx, s.store, Options{Root: s.root, Selection: true})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID())

	require.NoError(t, sess.Finalize(ctx))
	assert.ErrorIs(t, sess.Finalize(ctx), ErrFinalized)
}

func TestSession_AbortedSessionLeavesStateUntouched(t *testing.T) {
	s, t1, _, _, _ := newProject(t)
	s.run(true)
	before, err := os.ReadFile(s.store.Location())
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := Open(ctx, s.store, Options{Root: s.root, Selection: false})
	require.NoError(t, err)
	sess.BeforeTest(s.candidate(t1))
	_, err = sess.WrapExecution(t1.id, func(rec tracer.Recorder) error { return nil })
	require.NoError(t, err)
	sess.RecordOutcome(t1.id, outcome.Call(outcome.StatusFailed))
	// no Finalize

	after, err := os.ReadFile(s.store.Location())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSession_OpenMalformedState(t *testing.T) {
	s := newSuite(t)
	s.write(filepath.Join(".tia", "state.json"), `{"version": 1, "dependencies": "oops"}`)

	_, err := Open(context.Background(), s.store, Options{Root: s.root, Selection: true})
	assert.ErrorIs(t, err, storage.ErrFormat)
}
