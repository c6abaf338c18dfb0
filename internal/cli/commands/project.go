package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"tia/internal/config"
	"tia/internal/discovery"
	"tia/internal/execution"
	"tia/internal/storage"
)

// project is what every command derives from the config: the manifest, the
// project root it defines and the selection state backend.
type project struct {
	cfg      *config.Config
	root     string
	manifest *discovery.Manifest
	store    storage.Storage
	logger   *slog.Logger
}

// openProject loads the manifest and opens the configured store. The
// manifest's root, exclude prefixes and skip exit code are folded into cfg.
func openProject(cfg *config.Config, needManifest bool) (*project, error) {
	p := &project{cfg: cfg, root: cfg.GetProjectRoot(), logger: slog.Default()}

	m, err := discovery.LoadManifest(cfg.GetManifestPath())
	switch {
	case err == nil:
		p.manifest = m
		p.root = m.ProjectRoot(p.root)
		cfg.ProjectPath = p.root
		cfg.Exclude = append(cfg.Exclude, m.Exclude...)
		if m.SkipExitCode != nil && os.Getenv("TIA_SKIP_EXIT_CODE") == "" {
			cfg.SkipExitCode = *m.SkipExitCode
		}
	case needManifest:
		return nil, err
	}

	p.store, err = storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open selection state: %w", err)
	}
	return p, nil
}

// cases expands the manifest and applies --filter.
func (p *project) cases(ctx context.Context) ([]execution.Case, error) {
	if p.manifest == nil {
		return nil, fmt.Errorf("no manifest at %s", p.cfg.GetManifestPath())
	}
	loader := discovery.NewLoader(p.root,
		discovery.NewScanner(p.cfg.PathsToIgnore),
		discovery.NewSourceIndex(p.root),
		p.logger)
	cases, err := loader.Load(ctx, p.manifest)
	if err != nil {
		return nil, err
	}
	return discovery.NewFilter().FilterCases(cases, p.cfg.Flags.NameFilter), nil
}

func (p *project) Close() error {
	return p.store.Close()
}
