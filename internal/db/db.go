// Package db opens the nightlight SQLite database and creates its schema.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Open opens the database at path and initializes the schema.
// ":memory:" opens a private in-memory database.
func Open(path string) (*DB, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps a :memory: database private and alive.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS light_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			boot_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			time_of_day TEXT NOT NULL,
			color TEXT,
			displayed TEXT,
			ratio INTEGER,
			source TEXT,
			window_name TEXT,
			reason TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_light_events_ts ON light_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_light_events_type_ts ON light_events(event_type, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create light_events table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
