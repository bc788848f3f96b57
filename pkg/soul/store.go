package soul

import (
	"context"
	"errors"
	"time"

	"github.com/soulmint/soulmint/pkg/progression"
)

var (
	// ErrNotFound is returned by Load when no soul exists for the ID.
	ErrNotFound = errors.New("soul not found")

	// ErrConflict is returned by Save when the soul's Version no longer
	// matches the stored row: another writer got there first. Callers
	// retry the whole turn from the load step.
	ErrConflict = errors.New("soul version conflict")
)

// EvolutionRecord is the audit row written once per rarity transition.
type EvolutionRecord struct {
	ID        string             `json:"id"`
	SoulID    string             `json:"soul_id"`
	FromTier  progression.Rarity `json:"from_tier"`
	ToTier    progression.Rarity `json:"to_tier"`
	FromLevel int                `json:"from_level"`
	ToLevel   int                `json:"to_level"`
	Outcome   string             `json:"outcome"` // "applied", "degraded", "skipped"
	Summary   string             `json:"summary,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Store is the persistence collaborator. Implementations must provide
// read-your-writes consistency within a single request; eventual
// consistency across requests is tolerated.
type Store interface {
	// Load returns the soul or ErrNotFound.
	Load(ctx context.Context, id string) (*Soul, error)

	// Save upserts the soul. For existing rows the write is guarded by
	// the soul's Version: a mismatch returns ErrConflict and writes
	// nothing. On success the soul's Version is bumped in place.
	Save(ctx context.Context, s *Soul) error

	// OverrideProgress force-sets level, experience and tier, bypassing
	// the monotonicity rules. This is the administrative override used
	// for testing and promotions, and the only sanctioned way to move
	// progression backwards or pin a tier above its natural value.
	OverrideProgress(ctx context.Context, id string, level, experience int, tier progression.Rarity) (*Soul, error)

	// RecordEvolution appends an evolution audit row.
	RecordEvolution(ctx context.Context, rec EvolutionRecord) error

	// ListLaggingEvolutions returns souls whose rarity is ahead of their
	// last evolved tier, oldest first, capped at limit. Input for the
	// backfill pass.
	ListLaggingEvolutions(ctx context.Context, limit int) ([]*Soul, error)

	Close() error
}
