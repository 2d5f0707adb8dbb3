// Package store persists quests, quest instances, events, and reward
// configuration. It owns every persistent entity in the engine; graphs and
// states are derived in-memory values and are never stored here.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection pool. DSN may name a file path (the
// pure-Go driver needs no CGO) or ":memory:" for tests.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at dsn, applies WAL-mode
// pragmas for concurrent access, bounds the connection pool, and runs every
// migration.
func Open(dsn string) (*Store, error) {
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("%w: create db directory: %v", ErrStoreFailure, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStoreFailure, err)
	}

	// Per §5: a bounded connection pool, min 5 / max 10 by default. SQLite
	// in WAL mode tolerates one writer and many readers; :memory: needs a
	// single connection or every pooled conn sees an empty database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrStoreFailure, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		migrationQuests,
		migrationDeactivatedQuests,
		migrationQuestUpdates,
		migrationQuestInstances,
		migrationAbandonedQuests,
		migrationCompletedInstances,
		migrationEvents,
		migrationQuestRewardHooks,
		migrationQuestRewardItems,
	}
	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("%w: migration %d: %v", ErrStoreFailure, i+1, err)
		}
	}
	return nil
}
