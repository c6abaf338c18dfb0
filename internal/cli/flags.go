package cli

import (
	"time"

	"tia/internal/config"
)

// Flags holds command-line flags
type Flags struct {
	ProjectPath string
	Manifest    string
	StateFile   string
	Store       string
	NameFilter  string
	NoSelection bool
	MetricsFile string
	Exclude     []string
	LogLevel    string
	Plain       bool
	Stale       bool
	DryRun      bool
	Debounce    time.Duration
	Target      string
	Force       bool
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		ProjectPath: f.ProjectPath,
		Manifest:    f.Manifest,
		StateFile:   f.StateFile,
		Store:       f.Store,
		NameFilter:  f.NameFilter,
		NoSelection: f.NoSelection,
		MetricsFile: f.MetricsFile,
		Exclude:     f.Exclude,
		LogLevel:    f.LogLevel,
		Plain:       f.Plain,
		Stale:       f.Stale,
		DryRun:      f.DryRun,
		Debounce:    f.Debounce,
		Target:      f.Target,
		Force:       f.Force,
	}
}
