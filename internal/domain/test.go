package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// KeySeparator separates the test file path from the test name in a test key.
const KeySeparator = "::"

// TestID identifies a test across the whole persisted state
type TestID struct {
	File string // Path of the test file relative to the project root, forward slashes
	Name string // Test function name
}

// NewTestID builds a TestID for a test declared in path, relative to root.
// Paths outside root are kept absolute.
func NewTestID(root, path, name string) TestID {
	return TestID{File: RelPath(root, path), Name: name}
}

// Key returns the persisted key "<relative-test-file-path>::<test-function-name>"
func (id TestID) Key() string {
	return id.File + KeySeparator + id.Name
}

func (id TestID) String() string {
	return id.Key()
}

// ParseKey splits a persisted key back into a TestID.
func ParseKey(key string) (TestID, error) {
	i := strings.LastIndex(key, KeySeparator)
	if i <= 0 || i+len(KeySeparator) >= len(key) {
		return TestID{}, fmt.Errorf("invalid test key %q", key)
	}
	return TestID{File: key[:i], Name: key[i+len(KeySeparator):]}, nil
}

// RelPath returns path relative to root using forward slashes. Paths that
// cannot be expressed below root are returned cleaned and absolute.
func RelPath(root, path string) string {
	if root == "" {
		return filepath.ToSlash(filepath.Clean(path))
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(path))
	}
	absPath := path
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(absRoot, path)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(absPath))
	}
	return filepath.ToSlash(rel)
}

// Fixture is a piece of setup code a test declares, in declaration order.
// Source is resolved lazily so that fixtures shared by many tests are read once.
type Fixture struct {
	Name   string
	Source func() ([]byte, error)
}

// StaticFixture returns a Fixture whose source text is already known.
func StaticFixture(name string, src []byte) Fixture {
	return Fixture{Name: name, Source: func() ([]byte, error) { return src, nil }}
}

// Candidate is a test about to be considered for execution
type Candidate struct {
	ID       TestID
	Source   []byte    // Source text of the test body
	Fixtures []Fixture // Fixtures used directly by the test, in declared order
}
