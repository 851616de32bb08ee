// Package storage handles data persistence: the SQLite metadata database
// and the object stores that hold rendered images.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)

// schema is applied on every start; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS art_generations (
    id           TEXT PRIMARY KEY,
    prompt       TEXT NOT NULL,
    result_url   TEXT NOT NULL DEFAULT '',
    model        TEXT NOT NULL,
    seed         INTEGER NOT NULL DEFAULT 0,
    style_preset TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'completed',
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS style_analytics (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    style_id        TEXT NOT NULL,
    combined_with   TEXT,
    quality_score   REAL NOT NULL DEFAULT 0,
    generation_time REAL NOT NULL DEFAULT 0,
    success         BOOLEAN NOT NULL DEFAULT 0,
    guidance        REAL NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scoring_calls (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    generation_id TEXT NOT NULL,
    provider      TEXT NOT NULL,
    model         TEXT NOT NULL,
    score         REAL,
    success       BOOLEAN NOT NULL DEFAULT 0,
    duration_ms   INTEGER,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_art_generations_model ON art_generations(model);
CREATE INDEX IF NOT EXISTS idx_style_analytics_style ON style_analytics(style_id);
CREATE INDEX IF NOT EXISTS idx_style_analytics_score ON style_analytics(quality_score);
CREATE INDEX IF NOT EXISTS idx_scoring_calls_generation ON scoring_calls(generation_id);
`

// NewDatabase opens the SQLite database and applies the schema.
// The constructor creates the resource AND validates it (Ping).
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// WAL lets readers proceed while the single writer commits;
	// busy_timeout waits on lock contention instead of failing.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
