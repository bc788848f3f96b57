// Package evolution rewrites a soul's personality when it crosses a
// rarity boundary. The rewrite rides on an external text-generation
// collaborator and is allowed to fail: a failed rewrite leaves the soul
// one tier richer with a stale personality, which the backfill pass
// repairs later. Level and experience are never touched here.
package evolution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/soulmint/soulmint/pkg/logger"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/skills"
	"github.com/soulmint/soulmint/pkg/soul"
)

// Event describes one rarity transition. It drives the rewrite request
// and doubles as the audit record handed to persistence.
type Event struct {
	ID        string             `json:"id"`
	SoulID    string             `json:"soul_id"`
	FromTier  progression.Rarity `json:"from_tier"`
	ToTier    progression.Rarity `json:"to_tier"`
	FromLevel int                `json:"from_level"`
	ToLevel   int                `json:"to_level"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewEvent mints an Event for a detected transition.
func NewEvent(soulID string, fromTier, toTier progression.Rarity, fromLevel, toLevel int) Event {
	return Event{
		ID:        uuid.NewString(),
		SoulID:    soulID,
		FromTier:  fromTier,
		ToTier:    toTier,
		FromLevel: fromLevel,
		ToLevel:   toLevel,
		Timestamp: time.Now().UTC(),
	}
}

// Request is the context handed to the personality-rewrite collaborator.
type Request struct {
	Personality string             `json:"personality"`
	Tagline     string             `json:"tagline"`
	Skills      []string           `json:"skills"`
	FromTier    progression.Rarity `json:"from_tier"`
	ToTier      progression.Rarity `json:"to_tier"`
}

// Rewriter is the external personality-rewrite collaborator. It returns
// the raw model output; parsing and validation stay in this package.
type Rewriter interface {
	Rewrite(ctx context.Context, req Request) (string, error)
}

// Outcome reports what Evolve did.
type Outcome struct {
	// Applied is true when the personality rewrite was parsed and
	// applied to the soul.
	Applied bool

	// Skipped is true when the soul had already evolved to (or past)
	// the event's target tier, so the call was an idempotent no-op.
	Skipped bool

	// Summary is the collaborator's one-line description of the change.
	Summary string

	// Err carries the degraded-evolution cause when Applied is false
	// and Skipped is false. The caller logs it and moves on.
	Err error
}

// Status returns the audit-record outcome label.
func (o Outcome) Status() string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.Applied:
		return "applied"
	default:
		return "degraded"
	}
}

// Coordinator drives rarity-transition rewrites.
type Coordinator struct {
	rewriter Rewriter
	timeout  time.Duration
}

// NewCoordinator builds a Coordinator. timeout bounds each rewrite call;
// zero means no bound beyond the caller's context.
func NewCoordinator(rewriter Rewriter, timeout time.Duration) *Coordinator {
	return &Coordinator{rewriter: rewriter, timeout: timeout}
}

// Evolve requests a personality rewrite for the given transition and
// applies the validated result to s. The level/XP state of s is already
// committed by the caller and is never modified or rolled back here,
// whatever happens to the rewrite.
//
// Evolve is idempotent per transition: when the soul's last evolved tier
// is already at or above the event's target the call is a no-op, so a
// retried request cannot rewrite twice.
func (c *Coordinator) Evolve(ctx context.Context, s *soul.Soul, ev Event) Outcome {
	if s.LastEvolvedTier >= ev.ToTier {
		return Outcome{Skipped: true}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.rewriter.Rewrite(ctx, Request{
		Personality: s.Personality,
		Tagline:     s.Tagline,
		Skills:      append([]string(nil), s.Skills...),
		FromTier:    ev.FromTier,
		ToTier:      ev.ToTier,
	})
	if err != nil {
		return Outcome{Err: err}
	}

	result, err := ParseRewrite(raw)
	if err != nil {
		return Outcome{Err: err}
	}

	s.Personality = result.UpdatedPersonality
	if result.UpdatedTagline != "" {
		s.Tagline = result.UpdatedTagline
	}
	s.LastEvolvedTier = ev.ToTier

	// The collaborator may suggest skills, but the stored set remains a
	// pure function of level; suggestions outside the unlocked catalog
	// are dropped.
	if dropped := lockedSuggestions(result.UpdatedSkills, s.Level); len(dropped) > 0 {
		logger.DebugCF("evolution", "dropped locked skill suggestions", map[string]any{
			"soul_id": s.ID,
			"skills":  dropped,
		})
	}
	s.Derive()

	return Outcome{Applied: true, Summary: result.EvolutionSummary}
}

// lockedSuggestions returns the suggested skill IDs that are not in the
// level-derived unlocked set.
func lockedSuggestions(suggested []string, level int) []string {
	unlocked := make(map[string]struct{})
	for _, id := range skills.IDsFor(level) {
		unlocked[id] = struct{}{}
	}
	var dropped []string
	for _, id := range suggested {
		if _, ok := unlocked[id]; !ok {
			dropped = append(dropped, id)
		}
	}
	return dropped
}
