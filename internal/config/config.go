package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath  string
	ManifestFile string

	// Selection state settings
	StateFile string
	Store     string
	Project   string
	MySQL     MySQL

	// Tracing settings
	Exclude      []string
	SkipExitCode int

	// Paths to ignore when scanning and watching
	PathsToIgnore []string

	LogLevel    string
	NoSelection bool

	// Command flags
	Flags Flags
}

// MySQL holds connection settings for the shared selection state backend
type MySQL struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Table    string
}

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

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:  DefaultProjectPath,
		ManifestFile: DefaultManifestFile,
		StateFile:    DefaultStateFile,
		Store:        DefaultStore,
		SkipExitCode: DefaultSkipExitCode,
		LogLevel:     DefaultLogLevel,
		MySQL: MySQL{
			Host:  "127.0.0.1",
			Port:  "3306",
			User:  "root",
			Table: DefaultMySQLTable,
		},
		Flags: Flags{Debounce: DefaultDebounce},
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load creates a config, reads the environment and applies flags
func Load(flags Flags) (*Config, error) {
	cfg := New()
	if err := cfg.Apply(flags); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply sets the flags on the config. The project's .env file and TIA_*
// variables are read first, flags take precedence over both.
func (c *Config) Apply(flags Flags) error {
	c.Flags = flags
	if flags.ProjectPath != "" {
		c.ProjectPath = flags.ProjectPath
	}

	if err := c.LoadEnv(); err != nil {
		return err
	}

	if flags.Manifest != "" {
		c.ManifestFile = flags.Manifest
	}
	if flags.StateFile != "" {
		c.StateFile = flags.StateFile
	}
	if flags.Store != "" {
		c.Store = flags.Store
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.NoSelection {
		c.NoSelection = true
	}
	c.Exclude = append(c.Exclude, flags.Exclude...)
	if c.Flags.Debounce <= 0 {
		c.Flags.Debounce = DefaultDebounce
	}

	return c.Validate()
}

// LoadEnv loads <project>/.env, if present, and reads TIA_* and DB_* variables.
// Variables already set in the process environment win over the .env file.
func (c *Config) LoadEnv() error {
	envPath := filepath.Join(c.ProjectPath, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	setString(&c.StateFile, "TIA_STATE_FILE")
	setString(&c.Store, "TIA_STORE")
	setString(&c.Project, "TIA_PROJECT")
	setString(&c.LogLevel, "TIA_LOG_LEVEL")
	setString(&c.MySQL.DSN, "TIA_MYSQL_DSN")
	setString(&c.MySQL.Table, "TIA_MYSQL_TABLE")
	setString(&c.MySQL.Host, "DB_HOST")
	setString(&c.MySQL.Port, "DB_PORT")
	setString(&c.MySQL.User, "DB_USERNAME")
	setString(&c.MySQL.Password, "DB_PASSWORD")
	setString(&c.MySQL.Database, "DB_DATABASE")

	if v := os.Getenv("TIA_NO_SELECTION"); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TIA_NO_SELECTION: %w", err)
		}
		c.NoSelection = disabled
	}
	if v := os.Getenv("TIA_SKIP_EXIT_CODE"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TIA_SKIP_EXIT_CODE: %w", err)
		}
		c.SkipExitCode = code
	}
	if v := os.Getenv("TIA_EXCLUDE"); v != "" {
		c.Exclude = append(c.Exclude, filepath.SplitList(v)...)
	}
	return nil
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Store {
	case StoreJSON, StoreMySQL:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreJSON, StoreMySQL)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// GetProjectRoot returns the absolute project root
func (c *Config) GetProjectRoot() string {
	if abs, err := filepath.Abs(c.ProjectPath); err == nil {
		return abs
	}
	return c.ProjectPath
}

// GetStatePath returns the absolute path of the JSON selection state file
func (c *Config) GetStatePath() string {
	return c.underRoot(c.StateFile)
}

// GetManifestPath returns the absolute path of the suite manifest
func (c *Config) GetManifestPath() string {
	return c.underRoot(c.ManifestFile)
}

// GetProjectName returns the key the project's state is stored under in MySQL
func (c *Config) GetProjectName() string {
	if c.Project != "" {
		return c.Project
	}
	return filepath.Base(c.GetProjectRoot())
}

// ExcludePrefixes returns the runtime-internal path prefixes whose frames are
// never dependencies: the Go installation plus configured prefixes.
func (c *Config) ExcludePrefixes() []string {
	prefixes := []string{runtime.GOROOT()}
	for _, p := range c.Exclude {
		if p == "" {
			continue
		}
		prefixes = append(prefixes, c.underRoot(p))
	}
	return prefixes
}

// SlogLevel returns the configured log level
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// ParseLevel maps a level name to a slog.Level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (c *Config) underRoot(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.GetProjectRoot(), p)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
