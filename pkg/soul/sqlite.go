package soul

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/soulmint/soulmint/pkg/progression"
)

// SQLiteStore is the production Store backed by a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	table *progression.Table
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func OpenSQLite(path string, table *progression.Table) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite tolerates a single writer; serialize access at the pool.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, table: table}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS souls (
			id TEXT PRIMARY KEY,
			level INTEGER NOT NULL,
			experience INTEGER NOT NULL,
			rarity INTEGER NOT NULL,
			last_evolved_tier INTEGER NOT NULL DEFAULT 0,
			personality TEXT NOT NULL DEFAULT '',
			tagline TEXT NOT NULL DEFAULT '',
			backstory TEXT NOT NULL DEFAULT '',
			is_listed INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS evolution_events (
			id TEXT PRIMARY KEY,
			soul_id TEXT NOT NULL,
			from_tier INTEGER NOT NULL,
			to_tier INTEGER NOT NULL,
			from_level INTEGER NOT NULL,
			to_level INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evolution_events_soul ON evolution_events(soul_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying handle so sibling stores (listings) can
// share one database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const soulColumns = `id, level, experience, rarity, last_evolved_tier,
	personality, tagline, backstory, is_listed, version, created_at, updated_at`

// scanSoul is the single row-to-Soul mapping in the repository. Derived
// fields (skills, languages) are recomputed from level, never trusted
// from storage.
func scanSoul(row interface{ Scan(...any) error }) (*Soul, error) {
	var (
		out      Soul
		rarity   int
		evolved  int
		isListed int
	)
	err := row.Scan(
		&out.ID, &out.Level, &out.Experience, &rarity, &evolved,
		&out.Personality, &out.Tagline, &out.Backstory, &isListed,
		&out.Version, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	out.Rarity = progression.Rarity(rarity)
	out.LastEvolvedTier = progression.Rarity(evolved)
	out.IsListed = isListed != 0
	out.Derive()
	return &out, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Soul, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+soulColumns+` FROM souls WHERE id = ?`, id)
	out, err := scanSoul(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load soul %s: %w", id, err)
	}
	return out, nil
}

func (s *SQLiteStore) Save(ctx context.Context, soul *Soul) error {
	now := time.Now().UTC()

	if soul.Version == 0 {
		// First write. A duplicate insert means another request created
		// the soul concurrently; surface that as a conflict.
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO souls (id, level, experience, rarity, last_evolved_tier,
				personality, tagline, backstory, is_listed, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			soul.ID, soul.Level, soul.Experience, int(soul.Rarity), int(soul.LastEvolvedTier),
			soul.Personality, soul.Tagline, soul.Backstory, boolToInt(soul.IsListed),
			soul.CreatedAt, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert soul %s: %w", soul.ID, err)
		}
		soul.Version = 1
		soul.UpdatedAt = now
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE souls SET level = ?, experience = ?, rarity = ?, last_evolved_tier = ?,
			personality = ?, tagline = ?, backstory = ?, is_listed = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		soul.Level, soul.Experience, int(soul.Rarity), int(soul.LastEvolvedTier),
		soul.Personality, soul.Tagline, soul.Backstory, boolToInt(soul.IsListed),
		now, soul.ID, soul.Version,
	)
	if err != nil {
		return fmt.Errorf("update soul %s: %w", soul.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update soul %s: %w", soul.ID, err)
	}
	if affected == 0 {
		return ErrConflict
	}
	soul.Version++
	soul.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) OverrideProgress(ctx context.Context, id string, level, experience int, tier progression.Rarity) (*Soul, error) {
	if level < 1 || experience < 0 || !tier.Valid() {
		return nil, fmt.Errorf("invalid override: level=%d experience=%d tier=%v", level, experience, tier)
	}

	current, err := s.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		current = New(id)
	} else if err != nil {
		return nil, err
	}

	current.Level = level
	current.Experience = experience
	current.Rarity = tier
	current.Derive()

	// Overrides bypass the version guard: the last admin write wins.
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO souls (id, level, experience, rarity, last_evolved_tier,
			personality, tagline, backstory, is_listed, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			level = excluded.level,
			experience = excluded.experience,
			rarity = excluded.rarity,
			version = souls.version + 1,
			updated_at = excluded.updated_at`,
		current.ID, current.Level, current.Experience, int(current.Rarity), int(current.LastEvolvedTier),
		current.Personality, current.Tagline, current.Backstory, boolToInt(current.IsListed),
		current.CreatedAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("override soul %s: %w", id, err)
	}
	return s.Load(ctx, id)
}

func (s *SQLiteStore) RecordEvolution(ctx context.Context, rec EvolutionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evolution_events (id, soul_id, from_tier, to_tier, from_level, to_level, outcome, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SoulID, int(rec.FromTier), int(rec.ToTier),
		rec.FromLevel, rec.ToLevel, rec.Outcome, rec.Summary, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record evolution for %s: %w", rec.SoulID, err)
	}
	return nil
}

func (s *SQLiteStore) ListLaggingEvolutions(ctx context.Context, limit int) ([]*Soul, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+soulColumns+` FROM souls
		 WHERE rarity > last_evolved_tier
		 ORDER BY updated_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list lagging evolutions: %w", err)
	}
	defer rows.Close()

	var out []*Soul
	for rows.Next() {
		s, err := scanSoul(rows)
		if err != nil {
			return nil, fmt.Errorf("list lagging evolutions: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation matches the sqlite "UNIQUE constraint failed" error
// without depending on driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
