// Package tracer runs a test body while recording the source files it
// transitively invokes.
package tracer

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"tia/internal/domain"
)

// ErrCaptureFailed marks a run whose dependencies could not be recorded.
var ErrCaptureFailed = errors.New("trace capture failed")

// syntheticFile matches pseudo-file names such as <autogenerated> or <string>.
var syntheticFile = regexp.MustCompile(`^<.+>`)

// Body is a test body. It reports its raw call trace to rec.
type Body func(rec Recorder) error

// Result is what a traced run recorded.
type Result struct {
	Deps   []string       // Distinct dependency paths, sorted
	Frames []domain.Frame // Distinct frames that survived filtering
	Traced bool           // False when capture failed and the body ran untraced
	Err    error          // Capture failure, wraps ErrCaptureFailed
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithCapturer sets the source of raw call traces.
func WithCapturer(c Capturer) Option {
	return func(t *Tracer) {
		if c != nil {
			t.capturer = c
		}
	}
}

// WithLogger sets the logger used to report capture failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracer) {
		if l != nil {
			t.logger = l
		}
	}
}

// Tracer wraps test bodies. One Tracer serves one sequential session.
type Tracer struct {
	root     string
	exclude  []string
	capturer Capturer
	logger   *slog.Logger
}

// New creates a Tracer. Frames whose file lies under one of exclude are
// treated as runtime internals and dropped.
func New(root string, exclude []string, opts ...Option) *Tracer {
	t := &Tracer{
		root:     root,
		capturer: MemoryCapturer{},
		logger:   slog.Default(),
	}
	for _, p := range exclude {
		if p == "" {
			continue
		}
		t.exclude = append(t.exclude, filepath.Clean(p))
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Wrap runs body and returns the filtered dependencies it touched. The
// body's error, or panic, reaches the caller exactly as if it ran untraced.
// When the capture machinery fails the body still runs and Result.Traced is
// false.
func (t *Tracer) Wrap(id domain.TestID, body Body) (res Result, err error) {
	capture, cerr := t.start(id)
	if cerr != nil {
		res.Err = fmt.Errorf("%w: start %s: %w", ErrCaptureFailed, id, cerr)
		t.logger.Warn("running test untraced", slog.String("test", id.Key()), slog.Any("error", cerr))
		return res, body(discard{})
	}

	defer func() {
		frames, serr := stop(capture)
		if serr != nil {
			res = Result{Err: fmt.Errorf("%w: stop %s: %w", ErrCaptureFailed, id, serr)}
			t.logger.Warn("discarding trace", slog.String("test", id.Key()), slog.Any("error", serr))
			return
		}
		res = t.Filter(id, frames)
	}()

	return res, body(capture)
}

// Filter drops runtime-internal frames, synthetic files, the test's own file
// and any function sharing the test's name, and returns the surviving files.
func (t *Tracer) Filter(id domain.TestID, frames []domain.Frame) Result {
	res := Result{Traced: true}
	files := make(map[string]struct{})

	for _, f := range frames {
		if f.File == "" || syntheticFile.MatchString(f.File) {
			continue
		}
		if shortName(f.Function) == id.Name {
			continue
		}
		if t.excluded(f.File) {
			continue
		}
		rel := domain.RelPath(t.root, f.File)
		if rel == id.File {
			continue
		}
		res.Frames = append(res.Frames, domain.Frame{File: rel, Function: f.Function})
		files[rel] = struct{}{}
	}

	res.Deps = make([]string, 0, len(files))
	for f := range files {
		res.Deps = append(res.Deps, f)
	}
	sort.Strings(res.Deps)
	return res
}

func (t *Tracer) start(id domain.TestID) (c Capture, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("capturer panicked: %v", r)
		}
	}()
	return t.capturer.Start(id)
}

func stop(c Capture) (frames []domain.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			frames, err = nil, fmt.Errorf("capture panicked: %v", r)
		}
	}()
	return c.Stop()
}

func (t *Tracer) excluded(file string) bool {
	if !filepath.IsAbs(file) {
		return false
	}
	file = filepath.Clean(file)
	for _, p := range t.exclude {
		if file == p || strings.HasPrefix(file, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// shortName strips the package or module qualifier from a function name:
// "example.com/pkg.(*T).Run" becomes "Run", "tests.test_db.test_insert"
// becomes "test_insert".
func shortName(function string) string {
	if i := strings.LastIndex(function, "."); i >= 0 {
		return function[i+1:]
	}
	return function
}
