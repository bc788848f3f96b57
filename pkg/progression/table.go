// Package progression maps accumulated experience to levels and levels to
// rarity tiers. Everything here is a pure lookup over fixed tables; the
// package has no side effects and is safe to share across goroutines.
package progression

import "fmt"

// thresholds[i] is the minimum total experience for level i+1. The
// sequence is strictly increasing; deltas grow by 50 XP per level so
// early levels come quickly and later ones stretch out.
var thresholds = []int{
	0,     // level 1
	100,   // level 2
	250,   // level 3
	450,   // level 4
	700,   // level 5
	1000,  // level 6
	1350,  // level 7
	1750,  // level 8
	2200,  // level 9
	2700,  // level 10
	3250,  // level 11
	3850,  // level 12
	4500,  // level 13
	5200,  // level 14
	5950,  // level 15
	6750,  // level 16
	7600,  // level 17
	8500,  // level 18
	9450,  // level 19
	10450, // level 20
	11500, // level 21
	12600, // level 22
	13750, // level 23
	14950, // level 24
	16200, // level 25
	17500, // level 26
	18850, // level 27
	20250, // level 28
	21700, // level 29
	23200, // level 30
}

// Rarity band lower bounds by level. This is the single canonical table;
// every call site in the repository derives tiers from it.
const (
	rareMinLevel      = 6
	epicMinLevel      = 15
	legendaryMinLevel = 30
)

// DefaultExtrapolationStep is the XP added per level past the threshold
// table when no configured value is available.
const DefaultExtrapolationStep = 500

// Table answers level/threshold/rarity lookups. The zero value is not
// usable; construct via NewTable or use Default.
type Table struct {
	// extrapolationStep is the constant XP per level beyond the defined
	// thresholds (clamp-to-last plus constant policy).
	extrapolationStep int
}

// NewTable builds a Table with the given extrapolation step. A step <= 0
// falls back to DefaultExtrapolationStep.
func NewTable(extrapolationStep int) *Table {
	if extrapolationStep <= 0 {
		extrapolationStep = DefaultExtrapolationStep
	}
	return &Table{extrapolationStep: extrapolationStep}
}

// Default is the table used when no configuration is in play.
var Default = NewTable(DefaultExtrapolationStep)

// MaxDefinedLevel is the highest level with an explicit threshold entry.
func (t *Table) MaxDefinedLevel() int {
	return len(thresholds)
}

// LevelForExperience returns the greatest level whose threshold is <= xp.
// Experience below the first threshold yields level 1. Negative
// experience is a programmer error and panics.
func (t *Table) LevelForExperience(xp int) int {
	if xp < 0 {
		panic(fmt.Sprintf("progression: negative experience %d", xp))
	}

	// Binary search over the fixed thresholds.
	lo, hi := 0, len(thresholds)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if thresholds[mid] <= xp {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	level := lo + 1

	if level == len(thresholds) {
		// Past the table: one extra level per extrapolationStep XP.
		level += (xp - thresholds[len(thresholds)-1]) / t.extrapolationStep
	}
	return level
}

// ThresholdForLevel returns the minimum total experience for level.
// Levels beyond the defined table extrapolate as last threshold plus a
// constant step per extra level; levels below 1 clamp to level 1.
func (t *Table) ThresholdForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level <= len(thresholds) {
		return thresholds[level-1]
	}
	return thresholds[len(thresholds)-1] + (level-len(thresholds))*t.extrapolationStep
}

// RarityForLevel maps a level onto its natural rarity band.
func (t *Table) RarityForLevel(level int) Rarity {
	switch {
	case level >= legendaryMinLevel:
		return Legendary
	case level >= epicMinLevel:
		return Epic
	case level >= rareMinLevel:
		return Rare
	default:
		return Common
	}
}

// MinLevelForRarity returns the first level inside the given band. Used
// by the gate to name the unlock requirement in rejection messages.
func (t *Table) MinLevelForRarity(r Rarity) int {
	switch r {
	case Legendary:
		return legendaryMinLevel
	case Epic:
		return epicMinLevel
	case Rare:
		return rareMinLevel
	default:
		return 1
	}
}
