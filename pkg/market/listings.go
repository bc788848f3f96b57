// Package market exposes the narrow slice of marketplace state the chat
// engine cares about: whether a soul's token is currently listed. A
// listed token freezes chat. The full marketplace (pricing, transfers,
// ownership proofs) lives outside this repository.
package market

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Listings is the ownership/listing collaborator consumed by the gate.
type Listings interface {
	IsListed(ctx context.Context, soulID string) (bool, error)
}

// SQLiteListings keeps listing state in the shared engine database.
type SQLiteListings struct {
	db *sql.DB
}

// NewSQLiteListings ensures the listings table exists on the shared
// handle.
func NewSQLiteListings(db *sql.DB) (*SQLiteListings, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS listings (
		soul_id TEXT PRIMARY KEY,
		price TEXT NOT NULL DEFAULT '',
		listed_at DATETIME NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("init listings schema: %w", err)
	}
	return &SQLiteListings{db: db}, nil
}

func (l *SQLiteListings) IsListed(ctx context.Context, soulID string) (bool, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE soul_id = ?`, soulID)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check listing for %s: %w", soulID, err)
	}
	return true, nil
}

// List marks the soul's token as listed. Price is free-form (the real
// marketplace owns pricing; this is bookkeeping for the chat freeze).
func (l *SQLiteListings) List(ctx context.Context, soulID, price string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO listings (soul_id, price, listed_at) VALUES (?, ?, ?)
		 ON CONFLICT(soul_id) DO UPDATE SET price = excluded.price, listed_at = excluded.listed_at`,
		soulID, price, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("list %s: %w", soulID, err)
	}
	return nil
}

// Unlist removes the listing, unfreezing chat.
func (l *SQLiteListings) Unlist(ctx context.Context, soulID string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM listings WHERE soul_id = ?`, soulID)
	if err != nil {
		return fmt.Errorf("unlist %s: %w", soulID, err)
	}
	return nil
}
