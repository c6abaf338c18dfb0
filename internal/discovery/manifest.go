package discovery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest describes a suite: which tests exist, how to run them and which
// fixtures they use. It is read from tia.yaml by default.
type Manifest struct {
	Root         string                 `yaml:"root"`
	Exclude      []string               `yaml:"exclude"`
	SkipExitCode *int                   `yaml:"skip_exit_code"`
	Defaults     Defaults               `yaml:"defaults"`
	Fixtures     map[string]FixtureSpec `yaml:"fixtures"`
	Tests        []TestSpec             `yaml:"tests"`

	dir string
}

// Defaults apply to tests that leave the field empty. Command and Setup may
// reference {file}, {dir} and {name}.
type Defaults struct {
	Command []string          `yaml:"command"`
	Setup   []string          `yaml:"setup"`
	Env     map[string]string `yaml:"env"`
}

// FixtureSpec locates a fixture's source: a function in a file, or inline
// source text.
type FixtureSpec struct {
	File     string `yaml:"file"`
	Function string `yaml:"function"`
	Source   string `yaml:"source"`
}

// TestSpec is one manifest entry. With Discover set, File is a directory or
// glob and every test found in the matching files is expanded.
type TestSpec struct {
	File     string            `yaml:"file"`
	Name     string            `yaml:"name"`
	Discover bool              `yaml:"discover"`
	Command  []string          `yaml:"command"`
	Setup    []string          `yaml:"setup"`
	Fixtures []string          `yaml:"fixtures"`
	Env      map[string]string `yaml:"env"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		m.dir = abs
	}
	return m, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks references and required fields.
func (m *Manifest) Validate() error {
	var errs []error
	for name, fx := range m.Fixtures {
		if fx.Source == "" && (fx.File == "" || fx.Function == "") {
			errs = append(errs, fmt.Errorf("fixture %q: need source, or file and function", name))
		}
	}
	for i, t := range m.Tests {
		if t.File == "" {
			errs = append(errs, fmt.Errorf("tests[%d]: file is required", i))
		}
		if !t.Discover && t.Name == "" {
			errs = append(errs, fmt.Errorf("tests[%d] (%s): name is required unless discover is set", i, t.File))
		}
		if len(t.Command) == 0 && len(m.Defaults.Command) == 0 {
			errs = append(errs, fmt.Errorf("tests[%d] (%s): no command and no defaults.command", i, t.File))
		}
		for _, fx := range t.Fixtures {
			if _, ok := m.Fixtures[fx]; !ok {
				errs = append(errs, fmt.Errorf("tests[%d] (%s): unknown fixture %q", i, t.File, fx))
			}
		}
	}
	return errors.Join(errs...)
}

// ProjectRoot returns the directory test paths are relative to: Root
// resolved against the manifest's directory, or fallback when neither is
// known.
func (m *Manifest) ProjectRoot(fallback string) string {
	base := m.dir
	if base == "" {
		base = fallback
	}
	if m.Root == "" {
		return base
	}
	if filepath.IsAbs(m.Root) {
		return filepath.Clean(m.Root)
	}
	return filepath.Join(base, m.Root)
}
