package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: in-memory databases are per connection, and settlement
	// must serialize anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// RunMigrations creates the schema if it does not exist yet.
func (db *DB) RunMigrations() error {
	migration := `
-- Ledger records, one row per index
CREATE TABLE IF NOT EXISTS projects (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    amount TEXT NOT NULL,
    creator TEXT NOT NULL,
    counterparty TEXT NOT NULL DEFAULT '',
    deadline INTEGER NOT NULL,
    is_accepted INTEGER NOT NULL DEFAULT 0,
    is_completed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_projects_creator ON projects(creator);
CREATE INDEX IF NOT EXISTS idx_projects_counterparty ON projects(counterparty);

-- Submitted writes and their settlement outcome
CREATE TABLE IF NOT EXISTS transactions (
    hash TEXT PRIMARY KEY,
    sender TEXT NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('create', 'accept', 'complete', 'profile')),
    payload TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('pending', 'settled', 'reverted')),
    revert_reason TEXT,
    project_id INTEGER,
    block INTEGER,
    submitted_at TIMESTAMP NOT NULL,
    settled_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);

-- Escrow releases on completion
CREATE TABLE IF NOT EXISTS payouts (
    project_id INTEGER PRIMARY KEY,
    recipient TEXT NOT NULL,
    amount TEXT NOT NULL,
    tx_hash TEXT NOT NULL,
    FOREIGN KEY (project_id) REFERENCES projects(id),
    FOREIGN KEY (tx_hash) REFERENCES transactions(hash)
);

-- Published account profiles
CREATE TABLE IF NOT EXISTS profiles (
    account TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    bio TEXT NOT NULL,
    avatar TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Activity log
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account TEXT NOT NULL,
    session_id TEXT,
    action_id TEXT,
    project_id INTEGER,
    activity_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_account_activity ON activity_log(account);
CREATE INDEX IF NOT EXISTS idx_action_activity ON activity_log(action_id);
CREATE INDEX IF NOT EXISTS idx_created_at ON activity_log(created_at);
`

	_, err := db.Exec(migration)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
