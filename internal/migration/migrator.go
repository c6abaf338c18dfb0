package migration

import (
	"context"
	"errors"
	"fmt"

	"tia/internal/storage"
)

// ErrTargetNotEmpty is returned when the destination store already holds
// selection state and overwriting was not requested.
var ErrTargetNotEmpty = errors.New("target store already holds selection state")

// Migrator moves selection state between stores
type Migrator interface {
	Run(ctx context.Context) (Report, error)
}

// Report describes a finished migration.
type Report struct {
	From, To     string
	Tests, Files int
}

// StoreMigrator copies the whole selection state from one store to another
type StoreMigrator struct {
	from, to storage.Storage
	force    bool
}

// NewStoreMigrator creates a new StoreMigrator. With force set an existing
// target state is overwritten.
func NewStoreMigrator(from, to storage.Storage, force bool) *StoreMigrator {
	return &StoreMigrator{from: from, to: to, force: force}
}

// Run loads the source state and saves it to the target in one write.
func (m *StoreMigrator) Run(ctx context.Context) (Report, error) {
	report := Report{From: m.from.Location(), To: m.to.Location()}
	if report.From == report.To {
		return report, fmt.Errorf("source and target are both %s", report.From)
	}

	state, err := m.from.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load %s: %w", report.From, err)
	}

	if !m.force {
		existing, err := m.to.Load(ctx)
		if err != nil {
			return report, fmt.Errorf("load %s: %w", report.To, err)
		}
		if len(existing.Tests()) > 0 {
			return report, fmt.Errorf("%s: %w", report.To, ErrTargetNotEmpty)
		}
	}

	if err := m.to.Save(ctx, state); err != nil {
		return report, fmt.Errorf("save %s: %w", report.To, err)
	}
	report.Tests, report.Files = len(state.Tests()), len(state.FileDigests)
	return report, nil
}
