package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Scanner scans for test files in a directory
type Scanner struct {
	skipDirs map[string]bool
}

// NewScanner creates a new Scanner with the given directories to skip
func NewScanner(skipDirs []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{skipDirs: skipMap}
}

// IsTestFile reports whether name follows the go test or pytest file naming
// conventions: *_test.go, test_*.py or *_test.py.
func IsTestFile(name string) bool {
	switch {
	case strings.HasSuffix(name, "_test.go"):
		return true
	case strings.HasSuffix(name, ".py"):
		return strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py")
	}
	return false
}

// Skips reports whether the walk should not descend into a directory.
func (s *Scanner) Skips(name string) bool {
	return strings.HasPrefix(name, ".") || s.skipDirs[name]
}

// Scan lists the test files under root in lexical path order
func (s *Scanner) Scan(root string) ([]string, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	switch {
	case err != nil:
		return nil, fmt.Errorf("test path does not exist: %s", root)
	case !info.IsDir():
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	var found []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != root && s.Skips(d.Name()):
			return filepath.SkipDir
		case !d.IsDir() && IsTestFile(d.Name()):
			found = append(found, path)
		}
		return nil
	})
	return found, err
}
