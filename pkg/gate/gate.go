// Package gate orchestrates one chat turn against a soul: load, policy
// checks, reply generation, experience accounting, evolution, persist.
// Each turn walks the machine
//
//	Received -> LanguageChecked -> {Rejected | Replied} -> Accounted ->
//	(Evolved) -> Persisted
//
// Rejections are inert: a rejected turn mutates nothing and calls no
// collaborator. Turns against the same soul are serialized in-process by
// a per-soul mutex, and the store's versioned save catches writers in
// other processes; on a version conflict the whole turn is retried from
// the load step.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soulmint/soulmint/pkg/evolution"
	"github.com/soulmint/soulmint/pkg/experience"
	"github.com/soulmint/soulmint/pkg/language"
	"github.com/soulmint/soulmint/pkg/logger"
	"github.com/soulmint/soulmint/pkg/market"
	"github.com/soulmint/soulmint/pkg/persona"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/soul"
)

// maxTurnRetries bounds the reload-and-retry loop on save conflicts.
const maxTurnRetries = 3

// ReplyGenerator is the external reply-generation collaborator.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, rc persona.ReplyContext) (*persona.Reply, error)
}

// ChatResult is the outcome of one accepted chat turn.
type ChatResult struct {
	Reply              string             `json:"reply"`
	SkillsUsed         []string           `json:"skills_used,omitempty"`
	ExpGained          int                `json:"exp_gained"`
	Level              int                `json:"level"`
	Rarity             progression.Rarity `json:"rarity"`
	LeveledUp          bool               `json:"leveled_up"`
	EvolutionTriggered bool               `json:"evolution_triggered"`
}

// Gate wires the progression engine to its collaborators.
type Gate struct {
	store       soul.Store
	listings    market.Listings
	classifier  language.Classifier
	replies     ReplyGenerator
	accountant  *experience.Accountant
	coordinator *evolution.Coordinator
	table       *progression.Table

	replyTimeout time.Duration

	// locks serializes turns per soul within this process.
	locks sync.Map // soulID -> *sync.Mutex
}

// Options carries the optional knobs of New.
type Options struct {
	// ReplyTimeout bounds the reply-generation call. Zero disables the
	// bound; the caller's context still applies.
	ReplyTimeout time.Duration

	// Listings is the marketplace collaborator. Nil means only the
	// soul's own listed flag freezes chat.
	Listings market.Listings

	// Classifier guesses the language of messages that arrive without
	// an explicit one. Nil selects the built-in heuristic.
	Classifier language.Classifier
}

// New builds a Gate.
func New(
	store soul.Store,
	replies ReplyGenerator,
	accountant *experience.Accountant,
	coordinator *evolution.Coordinator,
	table *progression.Table,
	opts Options,
) *Gate {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = language.Heuristic{}
	}
	return &Gate{
		store:        store,
		listings:     opts.Listings,
		classifier:   classifier,
		replies:      replies,
		accountant:   accountant,
		coordinator:  coordinator,
		table:        table,
		replyTimeout: opts.ReplyTimeout,
	}
}

// Handle runs one chat turn. Policy rejections come back as ErrListed or
// *LanguageLockedError; transient collaborator failures as
// *providers.TransientError. Both leave the soul untouched.
func (g *Gate) Handle(ctx context.Context, soulID, message, requestedLanguage string) (*ChatResult, error) {
	if soulID == "" {
		return nil, fmt.Errorf("soul id is required")
	}

	mu := g.lockFor(soulID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxTurnRetries; attempt++ {
		result, err := g.handleTurn(ctx, soulID, message, requestedLanguage)
		if errors.Is(err, soul.ErrConflict) {
			lastErr = err
			logger.WarnCF("gate", "save conflict, retrying turn", map[string]any{
				"soul_id": soulID,
				"attempt": attempt + 1,
			})
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("chat turn for %s kept conflicting: %w", soulID, lastErr)
}

func (g *Gate) handleTurn(ctx context.Context, soulID, message, requestedLanguage string) (*ChatResult, error) {
	// Load, or lazily create on first contact.
	s, err := g.store.Load(ctx, soulID)
	if errors.Is(err, soul.ErrNotFound) {
		s = soul.New(soulID)
	} else if err != nil {
		return nil, fmt.Errorf("load soul: %w", err)
	}

	// Listing freeze: no mutation, no collaborator calls.
	if s.IsListed {
		return nil, ErrListed
	}
	if g.listings != nil {
		listed, err := g.listings.IsListed(ctx, soulID)
		if err != nil {
			return nil, fmt.Errorf("check listing: %w", err)
		}
		if listed {
			return nil, ErrListed
		}
	}

	// Repair a stored tier that fell below the level-derived one before
	// the gate check; the fix is persisted with the turn's commit. A
	// tier pinned above the natural value is preserved as-is.
	if s.RepairRarity(g.table) {
		logger.InfoCF("gate", "repaired stored rarity upward", map[string]any{
			"soul_id": s.ID,
			"rarity":  s.Rarity.String(),
		})
	}

	// Language gate. The classifier is advisory: wrong guesses are an
	// accepted product trade-off, not a correctness bug.
	lang := requestedLanguage
	if lang == "" {
		lang = g.classifier.Classify(message)
	}
	if !language.IsUnlocked(lang, s.Level) {
		return nil, g.languageLocked(lang, s.Level)
	}

	// Reply generation is the one slow, unreliable hop. A failure or
	// timeout here aborts the turn before any state mutation.
	replyCtx := ctx
	if g.replyTimeout > 0 {
		var cancel context.CancelFunc
		replyCtx, cancel = context.WithTimeout(ctx, g.replyTimeout)
		defer cancel()
	}
	reply, err := g.replies.GenerateReply(replyCtx, persona.ReplyContext{
		Soul:        s.Clone(),
		UserMessage: message,
		Language:    lang,
	})
	if err != nil {
		return nil, err
	}

	// Accounting.
	gain := g.accountant.ComputeGain(message, reply.Text, s.Level)
	res := g.accountant.ApplyGain(s, gain)

	// Evolution, at most once per rarity transition. Its failure never
	// aborts the turn: the soul ends a tier higher with the personality
	// lagging until the backfill pass catches up.
	if res.RarityChanged {
		ev := evolution.NewEvent(s.ID, res.FromTier, res.ToTier, res.FromLevel, res.ToLevel)
		outcome := g.coordinator.Evolve(ctx, s, ev)
		if outcome.Err != nil {
			logger.ErrorCF("gate", "evolution degraded", map[string]any{
				"soul_id": s.ID,
				"to_tier": res.ToTier.String(),
				"error":   outcome.Err.Error(),
			})
		}
		g.recordEvolution(ctx, ev, outcome)
	}

	// Persist. A conflict restarts the turn; any other write failure is
	// absorbed: the reply and in-memory deltas still go back to the
	// user, and the next successful read simply reflects pre-turn state.
	if err := g.store.Save(ctx, s); err != nil {
		if errors.Is(err, soul.ErrConflict) {
			return nil, err
		}
		logger.ErrorCF("gate", "persist failed, returning unsaved turn", map[string]any{
			"soul_id": s.ID,
			"error":   err.Error(),
		})
	}

	return &ChatResult{
		Reply:              reply.Text,
		SkillsUsed:         reply.SkillsUsed,
		ExpGained:          res.Gain,
		Level:              s.Level,
		Rarity:             s.Rarity,
		LeveledUp:          res.LeveledUp,
		EvolutionTriggered: res.RarityChanged,
	}, nil
}

// languageLocked builds the rejection for a locked or unknown language.
// Known codes name their own unlock requirement; unknown codes fall back
// to the next unlockable language so the player still gets a target.
func (g *Gate) languageLocked(code string, level int) error {
	if l, ok := language.Lookup(code); ok {
		return &LanguageLockedError{
			Code:           l.Code,
			DisplayName:    l.DisplayName,
			RequiredLevel:  l.UnlockLevel,
			RequiredRarity: l.Rarity,
		}
	}
	if next, ok := language.NextUnlock(level); ok {
		return &LanguageLockedError{
			Code:           next.Code,
			DisplayName:    next.DisplayName,
			RequiredLevel:  next.UnlockLevel,
			RequiredRarity: next.Rarity,
		}
	}
	return &LanguageLockedError{Code: code, RequiredLevel: level, RequiredRarity: progression.Legendary}
}

func (g *Gate) recordEvolution(ctx context.Context, ev evolution.Event, outcome evolution.Outcome) {
	rec := soul.EvolutionRecord{
		ID:        ev.ID,
		SoulID:    ev.SoulID,
		FromTier:  ev.FromTier,
		ToTier:    ev.ToTier,
		FromLevel: ev.FromLevel,
		ToLevel:   ev.ToLevel,
		Outcome:   outcome.Status(),
		Summary:   outcome.Summary,
		CreatedAt: ev.Timestamp,
	}
	if err := g.store.RecordEvolution(ctx, rec); err != nil {
		logger.WarnCF("gate", "evolution audit write failed", map[string]any{
			"soul_id": ev.SoulID,
			"error":   err.Error(),
		})
	}
}

func (g *Gate) lockFor(soulID string) *sync.Mutex {
	if v, ok := g.locks.Load(soulID); ok {
		return v.(*sync.Mutex)
	}
	v, _ := g.locks.LoadOrStore(soulID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
