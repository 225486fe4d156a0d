package cli

import (
	"fmt"

	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/store"
)

// openDB opens the database named by the config (STRATA_DB overrides it),
// falling back to ~/.strata/strata.db.
func openDB() (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

// openEngine opens the database and hydrates an engine from it. The returned
// func stops the engine and closes the database.
func openEngine() (*engine.Engine, func(), error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	eng, err := engine.New(db, cfg.Memory, logger)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load memory: %w", err)
	}
	return eng, func() {
		eng.Stop()
		db.Close()
	}, nil
}

// iterationOr returns n, or the engine's latest iteration when n is zero.
func iterationOr(eng *engine.Engine, n uint64) uint64 {
	if n != 0 {
		return n
	}
	return eng.Stats().Iteration
}
