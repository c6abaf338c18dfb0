package commands

import (
	"github.com/spf13/cobra"

	"tia/internal/cli"
	"tia/internal/config"
	"tia/internal/parser"
	"tia/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Run     *RunCommand
	List    *ListCommand
	Matrix  *MatrixCommand
	Prune   *PruneCommand
	Watch   *WatchCommand
	Migrate *MigrateCommand
}

// NewCommands creates all commands with dependencies
func NewCommands(cfg *config.Config) *Commands {
	formatter := ui.NewFormatter(parser.NewTraceFileParser())
	run := NewRunCommand(cfg, formatter)

	return &Commands{
		Run:     run,
		List:    NewListCommand(cfg, formatter),
		Matrix:  NewMatrixCommand(cfg, ui.NewMatrixViewer()),
		Prune:   NewPruneCommand(cfg),
		Watch:   NewWatchCommand(cfg, run),
		Migrate: NewMigrateCommand(cfg),
	}
}

// Register registers all commands with cobra. Flags are applied to cfg by
// the root command's PersistentPreRunE.
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.ProjectPath, "project", "C", "", "Project root (default: current directory)")
	pf.StringVarP(&flags.Manifest, "manifest", "m", "", "Suite manifest, relative to the project root (default: tia.yaml)")
	pf.StringVar(&flags.StateFile, "state-file", "", "Selection state file for the json store (default: .tia/state.json)")
	pf.StringVar(&flags.Store, "store", "", "Selection state backend: json or mysql")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	addFilter := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter tests by key pattern (supports wildcards, e.g., '*TestUser*' or 'tests/*::test_*')")
	}
	addSelection := func(cmd *cobra.Command) {
		cmd.Flags().BoolVar(&flags.NoSelection, "no-selection", false, "Run every test, still recording dependencies and outcomes")
		cmd.Flags().StringSliceVar(&flags.Exclude, "exclude", nil, "Extra path prefixes whose frames are never dependencies")
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tests affected by changes",
		Long:  "Run every manifest test whose dependencies, source or fixtures changed since its last recorded run, and replay the last outcome of the rest",
		RunE:  c.Run.Execute,
	}
	addFilter(runCmd)
	addSelection(runCmd)
	runCmd.Flags().StringVar(&flags.MetricsFile, "metrics-file", "", "Write session counters to this file in Prometheus text format")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tests with the decision selection would take",
		Long:  "Expand the manifest and print each test with its current verdict and reason, without running anything",
		RunE:  c.List.Execute,
	}
	addFilter(listCmd)
	listCmd.Flags().BoolVar(&flags.NoSelection, "no-selection", false, "Show decisions with selection disabled")
	rootCmd.AddCommand(listCmd)

	// Matrix command
	matrixCmd := &cobra.Command{
		Use:   "matrix",
		Short: "Show recorded tests and their dependency files",
		Long:  "Display the test × dependency matrix of the selection state in an interactive viewer",
		RunE:  c.Matrix.Execute,
	}
	addFilter(matrixCmd)
	matrixCmd.Flags().BoolVar(&flags.Plain, "plain", false, "Print a text matrix instead of opening the viewer")
	rootCmd.AddCommand(matrixCmd)

	// Prune command
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove orphaned records from the selection state",
		Long:  "Drop file digests no recorded test depends on; with --stale also drop tests the manifest no longer lists",
		RunE:  c.Prune.Execute,
	}
	pruneCmd.Flags().BoolVar(&flags.Stale, "stale", false, "Also remove tests missing from the manifest")
	pruneCmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Report what would be removed without saving")
	rootCmd.AddCommand(pruneCmd)

	// Watch command
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run affected tests whenever files change",
		Long:  "Run the suite, then run it again with selection after every batch of file changes under the project root",
		RunE:  c.Watch.Execute,
	}
	addFilter(watchCmd)
	addSelection(watchCmd)
	watchCmd.Flags().DurationVar(&flags.Debounce, "debounce", config.DefaultDebounce, "Quiet period before re-running")
	rootCmd.AddCommand(watchCmd)

	// Migrate command
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the selection state to another store",
		Long:  "Copy the selection state of the configured store (--store) to the store named by --to, creating the MySQL database when needed",
		RunE:  c.Migrate.Execute,
	}
	migrateCmd.Flags().StringVar(&flags.Target, "to", "", "Target store: json or mysql")
	migrateCmd.Flags().BoolVar(&flags.Force, "force", false, "Overwrite state already present in the target store")
	_ = migrateCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(migrateCmd)
}
