package config

import "time"

const (
	// DefaultProjectPath is the default project root
	DefaultProjectPath = "."
	// DefaultManifestFile is the suite manifest looked up under the project root
	DefaultManifestFile = "tia.yaml"
	// DefaultStateFile is where the selection state is kept, relative to the project root
	DefaultStateFile = ".tia/state.json"
	// DefaultStore is the selection state backend
	DefaultStore = StoreJSON
	// DefaultSkipExitCode is the exit code a test command uses to declare itself skipped
	DefaultSkipExitCode = 77
	// DefaultLogLevel is the slog level used when nothing else is configured
	DefaultLogLevel = "warn"
	// DefaultDebounce is how long watch waits for more changes before re-running
	DefaultDebounce = 300 * time.Millisecond
	// DefaultMySQLTable holds one selection document per project
	DefaultMySQLTable = "tia_selection_state"
)

// Selection state backends
const (
	StoreJSON  = "json"
	StoreMySQL = "mysql"
)

// DefaultPathsToIgnore are the directories skipped when scanning for tests or watching
var DefaultPathsToIgnore = []string{
	"vendor",
	"node_modules",
	"testdata",
	"__pycache__",
	".tia",
}
