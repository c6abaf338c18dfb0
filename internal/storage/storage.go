package storage

import (
	"context"
	"fmt"

	"tia/internal/config"
)

// Storage loads and saves the selection state. Load happens once at the
// start of a session and Save once at its end; there are no partial writes.
type Storage interface {
	// Load returns the persisted state, or an empty state when nothing has
	// been persisted yet.
	Load(ctx context.Context) (*State, error)
	// Save overwrites the persisted state.
	Save(ctx context.Context, state *State) error
	// Location describes where the state lives, for messages.
	Location() string
	Close() error
}

// New returns the backend selected by the config.
func New(cfg *config.Config) (Storage, error) {
	switch cfg.Store {
	case config.StoreJSON, "":
		return NewJSONStorage(cfg), nil
	case config.StoreMySQL:
		return NewMySQLStorage(cfg)
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}
