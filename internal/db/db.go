// Package db provides the SQLite connection and schema for ledd.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Effect ledger - append-only history of effect writes and expiries
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS effect_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			led_id INTEGER NOT NULL,
			mode TEXT,
			timestamp INTEGER NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_effect_ledger_type_ts ON effect_ledger(event_type, timestamp);
		CREATE INDEX IF NOT EXISTS idx_effect_ledger_led_ts ON effect_ledger(led_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create effect_ledger table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
