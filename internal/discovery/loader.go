package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"tia/internal/domain"
	"tia/internal/execution"
)

// Loader expands a manifest into executable cases.
type Loader struct {
	root    string
	scanner *Scanner
	parser  *Parser
	index   *SourceIndex
	logger  *slog.Logger
}

// NewLoader creates a Loader for the project at root.
func NewLoader(root string, scanner *Scanner, index *SourceIndex, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{root: root, scanner: scanner, parser: NewParser(index), index: index, logger: logger}
}

// Load returns one case per manifest test, in manifest order. A test listed
// twice keeps its first entry.
func (l *Loader) Load(ctx context.Context, m *Manifest) ([]execution.Case, error) {
	var cases []execution.Case
	seen := make(map[domain.TestID]bool)
	fixtures := l.fixtures(ctx, m)

	for i, spec := range m.Tests {
		specs, err := l.expand(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("tests[%d] (%s): %w", i, spec.File, err)
		}
		for _, s := range specs {
			id := domain.NewTestID(l.root, l.abs(s.File), s.Name)
			if seen[id] {
				l.logger.Debug("duplicate manifest test", slog.String("test", id.Key()))
				continue
			}
			seen[id] = true

			c, err := l.build(ctx, m, id, s, fixtures)
			if err != nil {
				return nil, err
			}
			cases = append(cases, c)
		}
	}
	return cases, nil
}

func (l *Loader) expand(ctx context.Context, spec TestSpec) ([]TestSpec, error) {
	if !spec.Discover {
		return []TestSpec{spec}, nil
	}

	files, err := l.files(spec.File)
	if err != nil {
		return nil, err
	}
	var out []TestSpec
	for _, file := range files {
		names, err := l.parser.FindTestCases(ctx, file)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			s := spec
			s.File, s.Name, s.Discover = domain.RelPath(l.root, file), name, false
			out = append(out, s)
		}
	}
	return out, nil
}

// files resolves a discover entry: a directory is scanned, anything else is
// a glob.
func (l *Loader) files(pattern string) ([]string, error) {
	abs := l.abs(pattern)
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return l.scanner.Scan(abs)
	}
	matches, err := filepath.Glob(abs)
	if err != nil {
		return nil, fmt.Errorf("bad pattern: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func (l *Loader) build(ctx context.Context, m *Manifest, id domain.TestID, s TestSpec, fixtures map[string]domain.Fixture) (execution.Case, error) {
	src, err := l.index.Function(ctx, id.File, id.Name)
	if err != nil {
		return execution.Case{}, fmt.Errorf("%s: %w", id, err)
	}

	c := execution.Case{
		Candidate: domain.Candidate{ID: id, Source: src},
		Command:   expandArgs(firstNonEmpty(s.Command, m.Defaults.Command), id),
		Setup:     expandArgs(firstNonEmpty(s.Setup, m.Defaults.Setup), id),
		Env:       mergeEnv(m.Defaults.Env, s.Env),
	}
	for _, name := range s.Fixtures {
		c.Candidate.Fixtures = append(c.Candidate.Fixtures, fixtures[name])
	}
	return c, nil
}

// fixtures builds one lazily resolved Fixture per manifest fixture so that
// a fixture shared by many tests is read once.
func (l *Loader) fixtures(ctx context.Context, m *Manifest) map[string]domain.Fixture {
	out := make(map[string]domain.Fixture, len(m.Fixtures))
	for name, spec := range m.Fixtures {
		if spec.Source != "" {
			out[name] = domain.StaticFixture(name, []byte(spec.Source))
			continue
		}
		file, function := domain.RelPath(l.root, l.abs(spec.File)), spec.Function
		out[name] = domain.Fixture{Name: name, Source: func() ([]byte, error) {
			return l.index.Function(ctx, file, function)
		}}
	}
	return out
}

func (l *Loader) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}
	return b
}

func expandArgs(args []string, id domain.TestID) []string {
	if len(args) == 0 {
		return nil
	}
	dir := path.Dir(id.File)
	if !path.IsAbs(dir) && dir != "." {
		dir = "./" + dir
	}
	r := strings.NewReplacer("{file}", id.File, "{dir}", dir, "{name}", id.Name)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

func mergeEnv(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
