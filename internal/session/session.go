// Package session ties the fingerprint engine, tracer, selection engine and
// outcome recorder into the four operations a host calls: BeforeTest,
// WrapExecution, RecordOutcome and Finalize.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tia/internal/domain"
	"tia/internal/fingerprint"
	"tia/internal/metrics"
	"tia/internal/outcome"
	"tia/internal/selection"
	"tia/internal/storage"
	"tia/internal/tracer"
)

// ErrFinalized is returned when a session is used after Finalize.
var ErrFinalized = errors.New("session already finalized")

// Options configures a Session.
type Options struct {
	Root      string          // Project root used for relative paths
	Exclude   []string        // Runtime-internal path prefixes
	Selection bool            // False forces every test to run
	Capturer  tracer.Capturer // Source of raw call traces, in-memory by default
	Logger    *slog.Logger
	Metrics   *metrics.Collector
}

// Session is one run of a suite. It is not safe for concurrent use; tests
// run one at a time.
type Session struct {
	id      string
	root    string
	started time.Time

	store    storage.Storage
	state    *storage.State
	fp       *fingerprint.Engine
	engine   *selection.Engine
	tracer   *tracer.Tracer
	outcomes *outcome.Recorder

	candidates map[domain.TestID]domain.Candidate
	traces     map[domain.TestID]tracer.Result
	wrapped    []domain.TestID
	finalized  bool

	logger  *slog.Logger
	metrics *metrics.Collector
}

// Open loads the persisted state and starts a session.
func Open(ctx context.Context, store storage.Storage, opts Options) (*Session, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load selection state: %w", err)
	}
	return New(store, state, opts), nil
}

// New starts a session over an already loaded state.
func New(store storage.Storage, state *storage.State, opts Options) *Session {
	id := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session", id))

	fp := fingerprint.New(opts.Root)
	return &Session{
		id:         id,
		root:       opts.Root,
		started:    time.Now(),
		store:      store,
		state:      state,
		fp:         fp,
		engine:     selection.NewEngine(fp, state, opts.Selection, logger),
		tracer:     tracer.New(opts.Root, opts.Exclude, tracer.WithCapturer(opts.Capturer), tracer.WithLogger(logger)),
		outcomes:   outcome.NewRecorder(),
		candidates: make(map[domain.TestID]domain.Candidate),
		traces:     make(map[domain.TestID]tracer.Result),
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the in-memory selection state.
func (s *Session) State() *storage.State {
	return s.state
}

// Outcomes returns the outcomes classified so far.
func (s *Session) Outcomes() *outcome.Recorder {
	return s.outcomes
}

// BeforeTest decides whether the candidate must run.
func (s *Session) BeforeTest(c domain.Candidate) domain.Decision {
	s.candidates[c.ID] = c
	d := s.engine.Decide(c)
	s.metrics.ObserveDecision(d.Verdict)
	return d
}

// WrapExecution runs the test body under the tracer and returns the
// dependencies it touched, nil when it ran untraced. The body's error is
// returned unchanged; a tracing failure only costs this run's dependency
// record.
func (s *Session) WrapExecution(id domain.TestID, body tracer.Body) ([]string, error) {
	if _, seen := s.traces[id]; !seen {
		s.wrapped = append(s.wrapped, id)
	}
	res, err := s.tracer.Wrap(id, body)
	s.traces[id] = res
	if !res.Traced {
		s.metrics.TraceFailed()
	}
	return res.Deps, err
}

// RecordOutcome reports a phase event of an executed test.
func (s *Session) RecordOutcome(id domain.TestID, ev outcome.Event) {
	s.outcomes.Observe(id, ev)
}

// Finalize re-fingerprints every file and test touched by this session and
// saves the whole state once.
func (s *Session) Finalize(ctx context.Context) error {
	if s.finalized {
		return ErrFinalized
	}

	fresh := fingerprint.New(s.root)
	for _, id := range s.wrapped {
		s.apply(fresh, id, s.traces[id])
	}
	for _, id := range s.outcomes.Tests() {
		o, _ := s.outcomes.Outcome(id)
		s.state.SetOutcome(id, o)
		s.metrics.ObserveOutcome(o)
	}

	if err := s.store.Save(ctx, s.state); err != nil {
		return fmt.Errorf("save selection state to %s: %w", s.store.Location(), err)
	}
	s.finalized = true
	s.metrics.ObserveDuration(time.Since(s.started))
	s.logger.Info("session saved",
		slog.Int("traced", len(s.wrapped)),
		slog.Int("outcomes", len(s.outcomes.Tests())),
		slog.String("store", s.store.Location()))
	return nil
}

func (s *Session) apply(fresh *fingerprint.Engine, id domain.TestID, res tracer.Result) {
	key := id.Key()
	// An errored test never reached its call phase, so whatever the trace
	// holds is not its dependency set.
	if o, _ := s.outcomes.Outcome(id); o == domain.OutcomeError || !res.Traced {
		// Without a dependency set the test must run next time.
		delete(s.state.Dependencies, key)
		delete(s.state.TestDigests, key)
		return
	}

	s.state.ReplaceDependencies(id, res.Deps)
	for _, dep := range res.Deps {
		digest, err := fresh.File(dep)
		if err != nil {
			delete(s.state.FileDigests, dep)
			if !errors.Is(err, fingerprint.ErrMissingDependency) {
				s.logger.Warn("cannot fingerprint dependency", slog.String("file", dep), slog.Any("error", err))
			}
			continue
		}
		s.state.SetFileDigest(dep, digest)
	}

	c, ok := s.candidates[id]
	if !ok {
		delete(s.state.TestDigests, key)
		return
	}
	digest, err := s.fp.Identity(c)
	if err != nil {
		s.logger.Warn("cannot fingerprint test", slog.String("test", key), slog.Any("error", err))
		delete(s.state.TestDigests, key)
		return
	}
	s.state.SetTestDigest(id, digest)
}
