package repository

import (
	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/repository/sqlite"
)

// NewSharedStore returns a SharedStore backed by SQLite at the given path.
// The path is typically from policy.StateFile() (default
// ~/.config/swarmwork/state.sqlite).
func NewSharedStore(path string) (app.SharedStore, error) {
	return sqlite.New(path)
}
