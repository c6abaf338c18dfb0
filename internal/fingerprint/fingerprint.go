// Package fingerprint computes the content digests used to detect change:
// a digest per dependency file and an identity digest per test.
package fingerprint

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"tia/internal/domain"
)

// ErrMissingDependency is returned when a dependency file no longer exists.
// Callers treat it as a change, never as a crash.
var ErrMissingDependency = errors.New("dependency missing")

// FileDigest returns the hex SHA-1 digest of the file content.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrMissingDependency, path, err)
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IdentityDigest hashes the test source followed by each fixture source in
// order. With no fixtures it is the digest of the test source alone.
func IdentityDigest(testSource []byte, fixtureSources ...[]byte) string {
	h := sha1.New()
	h.Write(testSource)
	for _, src := range fixtureSources {
		h.Write(src)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type fileEntry struct {
	digest string
	err    error
}

// Engine memoizes digests for the lifetime of one session. It is not safe
// for concurrent use.
type Engine struct {
	root     string
	files    map[string]fileEntry
	fixtures map[string][]byte
	tests    map[string]string
}

// New creates an Engine resolving relative paths against root.
func New(root string) *Engine {
	return &Engine{
		root:     root,
		files:    make(map[string]fileEntry),
		fixtures: make(map[string][]byte),
		tests:    make(map[string]string),
	}
}

// File returns the digest of a dependency, computing it at most once per
// path. A deleted or moved file yields an error wrapping ErrMissingDependency.
func (e *Engine) File(path string) (string, error) {
	if entry, ok := e.files[path]; ok {
		return entry.digest, entry.err
	}
	digest, err := FileDigest(e.resolve(path))
	e.files[path] = fileEntry{digest: digest, err: err}
	return digest, err
}

// Identity returns the identity digest of a candidate test. Fixture sources
// are loaded once per fixture name and shared by every test using them.
func (e *Engine) Identity(c domain.Candidate) (string, error) {
	key := c.ID.Key()
	if digest, ok := e.tests[key]; ok {
		return digest, nil
	}

	sources := make([][]byte, 0, len(c.Fixtures))
	for _, fx := range c.Fixtures {
		src, err := e.fixture(fx)
		if err != nil {
			return "", fmt.Errorf("fixture %s of %s: %w", fx.Name, key, err)
		}
		sources = append(sources, src)
	}

	digest := IdentityDigest(c.Source, sources...)
	e.tests[key] = digest
	return digest, nil
}

func (e *Engine) fixture(fx domain.Fixture) ([]byte, error) {
	if src, ok := e.fixtures[fx.Name]; ok {
		return src, nil
	}
	if fx.Source == nil {
		return nil, fmt.Errorf("no source for fixture %s", fx.Name)
	}
	src, err := fx.Source()
	if err != nil {
		return nil, err
	}
	e.fixtures[fx.Name] = src
	return src, nil
}

func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) || e.root == "" {
		return path
	}
	return filepath.Join(e.root, filepath.FromSlash(path))
}
