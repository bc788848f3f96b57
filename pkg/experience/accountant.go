// Package experience converts chat interactions into experience points
// and applies the resulting level and rarity transitions. All computation
// here is deterministic; the same inputs always yield the same gain.
package experience

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/soulmint/soulmint/pkg/config"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/soul"
)

// curiosityWords earn the keyword part of the quality bonus. Questions
// and reflective language are what make a companion grow.
var curiosityWords = []string{
	"why", "how", "what", "imagine", "wonder", "dream", "feel", "remember",
	"story", "believe", "think",
}

// Accountant computes and applies experience gains.
type Accountant struct {
	cfg   config.ProgressionConfig
	table *progression.Table
}

// NewAccountant wires the accountant to its tuning constants and the
// progression table every level lookup goes through.
func NewAccountant(cfg config.ProgressionConfig, table *progression.Table) *Accountant {
	return &Accountant{cfg: cfg, table: table}
}

// Result describes what a single applied gain did to a soul.
type Result struct {
	Gain          int
	LeveledUp     bool
	RarityChanged bool
	FromLevel     int
	ToLevel       int
	FromTier      progression.Rarity
	ToTier        progression.Rarity
}

// ComputeGain returns the experience earned by one accepted chat turn:
// a base constant, a length bonus capped at LengthBonusCap, a quality
// bonus (curiosity keywords plus lexical diversity) capped at
// QualityBonusCap, the sum scaled by a mild level multiplier.
func (a *Accountant) ComputeGain(userMessage, agentReply string, currentLevel int) int {
	if currentLevel < 1 {
		currentLevel = 1
	}

	gain := a.cfg.BaseGain

	length := utf8.RuneCountInString(userMessage)
	lengthBonus := length / a.cfg.LengthDivisor
	if lengthBonus > a.cfg.LengthBonusCap {
		lengthBonus = a.cfg.LengthBonusCap
	}
	gain += lengthBonus

	quality := 0
	lower := strings.ToLower(userMessage)
	for _, w := range curiosityWords {
		if strings.Contains(lower, w) {
			quality += 3
			break
		}
	}
	if lexicalDiversity(lower) >= 0.8 && wordCount(lower) >= 6 {
		quality += 2
	}
	if quality > a.cfg.QualityBonusCap {
		quality = a.cfg.QualityBonusCap
	}
	gain += quality

	multiplier := 1.0 + a.cfg.LevelMultiplierStep*float64(currentLevel-1)
	return int(float64(gain) * multiplier)
}

// ApplyGain adds gain to the soul's experience, recomputes level and the
// natural rarity tier, and flags transitions. A rarity transition is
// flagged only when the natural tier strictly exceeds the stored tier;
// a pinned tier that already sits at or above the natural value never
// re-triggers. Negative gain is a programmer error and panics.
func (a *Accountant) ApplyGain(s *soul.Soul, gain int) Result {
	if gain < 0 {
		panic(fmt.Sprintf("experience: negative gain %d for soul %s", gain, s.ID))
	}

	res := Result{
		Gain:      gain,
		FromLevel: s.Level,
		FromTier:  s.Rarity,
	}

	s.Experience += gain
	newLevel := a.table.LevelForExperience(s.Experience)
	if newLevel > s.Level {
		res.LeveledUp = true
		s.Level = newLevel
		s.Derive()
	}
	res.ToLevel = s.Level

	natural := s.NaturalRarity(a.table)
	if natural > s.Rarity {
		res.RarityChanged = true
		s.Rarity = natural
	}
	res.ToTier = s.Rarity

	return res
}

// lexicalDiversity is the ratio of distinct words to total words.
func lexicalDiversity(lower string) float64 {
	words := strings.Fields(lower)
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.Trim(w, ".,!?;:'\"")] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
