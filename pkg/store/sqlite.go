package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (or creates) a SQLite-backed store at path. Use
// "file::memory:?cache=shared" for an in-memory database in tests.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The ledger serializes writes per product; a single connection
	// avoids SQLITE_BUSY churn under concurrent readers.
	db.SetMaxOpenConns(1)
	return NewSQLStore(db)
}
