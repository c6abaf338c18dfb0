package storage

import (
	"sort"

	"tia/internal/domain"
)

// SchemaVersion is the only persisted document version this tool reads.
const SchemaVersion = 1

// State is the in-memory selection state. It is loaded once per session,
// read per test, and written back once at the end.
type State struct {
	Dependencies map[string][]string       // test key -> dependency files
	FileDigests  map[string]string         // file path -> content digest
	TestDigests  map[string]string         // test key -> identity digest
	Outcomes     map[string]domain.Outcome // test key -> last outcome
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		Dependencies: make(map[string][]string),
		FileDigests:  make(map[string]string),
		TestDigests:  make(map[string]string),
		Outcomes:     make(map[string]domain.Outcome),
	}
}

// TestDependencies returns the recorded dependency set of a test and whether the
// test has a record at all.
func (s *State) TestDependencies(id domain.TestID) ([]string, bool) {
	deps, ok := s.Dependencies[id.Key()]
	return deps, ok
}

// ReplaceDependencies overwrites the dependency set of a test. Sets are
// replaced wholesale, never merged.
func (s *State) ReplaceDependencies(id domain.TestID, deps []string) {
	s.Dependencies[id.Key()] = normalize(deps)
}

// FileDigest returns the stored digest of a file.
func (s *State) FileDigest(path string) (string, bool) {
	d, ok := s.FileDigests[path]
	return d, ok
}

func (s *State) SetFileDigest(path, digest string) {
	s.FileDigests[path] = digest
}

// TestDigest returns the stored identity digest of a test.
func (s *State) TestDigest(id domain.TestID) (string, bool) {
	d, ok := s.TestDigests[id.Key()]
	return d, ok
}

func (s *State) SetTestDigest(id domain.TestID, digest string) {
	s.TestDigests[id.Key()] = digest
}

// Outcome returns the last recorded outcome of a test.
func (s *State) Outcome(id domain.TestID) (domain.Outcome, bool) {
	o, ok := s.Outcomes[id.Key()]
	return o, ok
}

func (s *State) SetOutcome(id domain.TestID, o domain.Outcome) {
	s.Outcomes[id.Key()] = o
}

// Forget removes everything recorded for a test.
func (s *State) Forget(key string) {
	delete(s.Dependencies, key)
	delete(s.TestDigests, key)
	delete(s.Outcomes, key)
}

// Tests returns every test key with any record, sorted.
func (s *State) Tests() []string {
	keys := make(map[string]struct{})
	for k := range s.Dependencies {
		keys[k] = struct{}{}
	}
	for k := range s.TestDigests {
		keys[k] = struct{}{}
	}
	for k := range s.Outcomes {
		keys[k] = struct{}{}
	}
	return sortedKeys(keys)
}

// Files returns every dependency referenced by at least one test, sorted.
func (s *State) Files() []string {
	files := make(map[string]struct{})
	for _, deps := range s.Dependencies {
		for _, d := range deps {
			files[d] = struct{}{}
		}
	}
	return sortedKeys(files)
}

// PruneFileDigests drops digests of files no test depends on any more and
// returns how many were removed.
func (s *State) PruneFileDigests() int {
	referenced := make(map[string]struct{})
	for _, deps := range s.Dependencies {
		for _, d := range deps {
			referenced[d] = struct{}{}
		}
	}
	removed := 0
	for path := range s.FileDigests {
		if _, ok := referenced[path]; !ok {
			delete(s.FileDigests, path)
			removed++
		}
	}
	return removed
}

func normalize(deps []string) []string {
	set := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		set[d] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
