// Package sqlite is the single-file listing store used by default.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
    id           TEXT PRIMARY KEY,
    text         TEXT NOT NULL,
    link         TEXT NOT NULL,
    post_url     TEXT NOT NULL DEFAULT '',
    deliver_mode TEXT NOT NULL DEFAULT 'TEXT',
    orig_text    TEXT NOT NULL DEFAULT '',
    photos       TEXT NOT NULL DEFAULT '[]',
    status       TEXT NOT NULL DEFAULT 'DRAFT'
);

CREATE TABLE IF NOT EXISTS deliveries (
    id         TEXT PRIMARY KEY,
    charge_id  TEXT    NOT NULL UNIQUE,
    listing_id TEXT    NOT NULL,
    buyer_id   INTEGER NOT NULL,
    mode       TEXT    NOT NULL,
    created_at TEXT    NOT NULL
);
`

// Open opens (creating if needed) the database file at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer; keeps the single-writer assumption explicit
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
