// Package soul defines the persistent progression record paired with one
// token and the storage boundary it lives behind. The rest of the engine
// only ever sees the canonical Soul shape defined here; row mapping
// happens in exactly one place (the store implementation).
package soul

import (
	"time"

	"github.com/soulmint/soulmint/pkg/language"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/skills"
)

// DefaultPersonality seeds a freshly minted soul. The personality is
// rewritten by the evolution coordinator at every rarity transition.
const (
	DefaultPersonality = "A curious newborn companion, eager to learn about its keeper and the world."
	DefaultTagline     = "Fresh from the forge."
)

// Soul is the progression state of one companion.
type Soul struct {
	ID         string             `json:"id"`
	Level      int                `json:"level"`
	Experience int                `json:"experience"`
	Rarity     progression.Rarity `json:"rarity"`

	// LastEvolvedTier is the highest tier for which a personality rewrite
	// has succeeded. It lags Rarity after a degraded evolution and is the
	// signal the backfill pass keys on.
	LastEvolvedTier progression.Rarity `json:"last_evolved_tier"`

	// Skills and UnlockedLanguages are derived from Level via the static
	// registries; they are stored for read-side convenience only.
	Skills            []string `json:"skills"`
	UnlockedLanguages []string `json:"unlocked_languages"`

	Personality string `json:"personality"`
	Tagline     string `json:"tagline"`
	Backstory   string `json:"backstory,omitempty"`

	// IsListed freezes chat while the token sits on the marketplace.
	IsListed bool `json:"is_listed"`

	// Version guards saves: the store rejects a write whose Version does
	// not match the stored row, and bumps it on success.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the initial state for a soul first referenced by the chat
// subsystem: level 1, zero experience, Common.
func New(id string) *Soul {
	now := time.Now().UTC()
	s := &Soul{
		ID:          id,
		Level:       1,
		Experience:  0,
		Rarity:      progression.Common,
		Personality: DefaultPersonality,
		Tagline:     DefaultTagline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Derive()
	return s
}

// Derive recomputes the level-derived fields (skills, languages) from the
// current level. Call after any level change.
func (s *Soul) Derive() {
	s.Skills = skills.IDsFor(s.Level)
	s.UnlockedLanguages = language.CodesFor(s.Level)
}

// NaturalRarity is the tier the current level maps to, ignoring pins.
func (s *Soul) NaturalRarity(table *progression.Table) progression.Rarity {
	return table.RarityForLevel(s.Level)
}

// RepairRarity lifts a stored tier that fell below the level-derived one
// (missing or corrupted on creation). A stored tier above the natural
// one is an administrative pin and is left alone. Reports whether a
// repair happened.
func (s *Soul) RepairRarity(table *progression.Table) bool {
	natural := s.NaturalRarity(table)
	if s.Rarity < natural {
		s.Rarity = natural
		return true
	}
	return false
}

// Clone returns a deep copy. The gate snapshots souls before mutation so
// a rejected or failed turn can never leak partial updates.
func (s *Soul) Clone() *Soul {
	out := *s
	out.Skills = append([]string(nil), s.Skills...)
	out.UnlockedLanguages = append([]string(nil), s.UnlockedLanguages...)
	return &out
}
