package experience

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulmint/soulmint/pkg/config"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/soul"
)

func newAccountant() *Accountant {
	return NewAccountant(config.DefaultConfig().Progression, progression.Default)
}

func TestComputeGainBase(t *testing.T) {
	a := newAccountant()

	// Nothing but the base: short, no curiosity, too few words.
	assert.Equal(t, 10, a.ComputeGain("hi", "hello!", 1))
}

func TestComputeGainDeterministic(t *testing.T) {
	a := newAccountant()
	msg := "why do stars burn out, and what happens after"
	first := a.ComputeGain(msg, "reply", 7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, a.ComputeGain(msg, "reply", 7))
	}
}

func TestComputeGainLengthBonusCapped(t *testing.T) {
	a := newAccountant()

	// 100 identical runes: length bonus 5, no quality bonus.
	assert.Equal(t, 15, a.ComputeGain(strings.Repeat("a", 100), "", 1))

	// Ten times longer still caps at the same bonus.
	assert.Equal(t, 15, a.ComputeGain(strings.Repeat("a", 1000), "", 1))
}

func TestComputeGainCuriosityBonus(t *testing.T) {
	a := newAccountant()

	assert.Equal(t, 13, a.ComputeGain("why", "", 1))
	assert.Equal(t, 13, a.ComputeGain("tell a story", "", 1))
}

func TestComputeGainDiversityBonus(t *testing.T) {
	a := newAccountant()

	// Six distinct words, 41 runes: length bonus 2, diversity bonus 2.
	assert.Equal(t, 14, a.ComputeGain("every single word here differs completely", "", 1))

	// Repetition kills the diversity bonus.
	assert.Equal(t, 11, a.ComputeGain("same same same same same same same same", "", 1))
}

func TestComputeGainCombinedBonuses(t *testing.T) {
	a := newAccountant()

	// 120 runes with a curiosity word: 10 base + 5 length + 3 quality.
	msg := "why " + strings.Repeat("a", 116)
	assert.Equal(t, 18, a.ComputeGain(msg, "", 1))
}

func TestComputeGainLevelMultiplier(t *testing.T) {
	a := newAccountant()

	// Level 11: multiplier 1.2, base 10 becomes 12.
	assert.Equal(t, 12, a.ComputeGain("hi", "", 11))
	// Levels below 1 are treated as level 1.
	assert.Equal(t, 10, a.ComputeGain("hi", "", 0))
}

func TestApplyGainLevelUp(t *testing.T) {
	a := newAccountant()
	s := soul.New("soul-1")

	res := a.ApplyGain(s, 100)
	assert.Equal(t, 100, res.Gain)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 1, res.FromLevel)
	assert.Equal(t, 2, res.ToLevel)
	assert.False(t, res.RarityChanged)

	assert.Equal(t, 2, s.Level)
	assert.Equal(t, 100, s.Experience)
	assert.Contains(t, s.Skills, "storytelling")
}

func TestApplyGainNoLevelUp(t *testing.T) {
	a := newAccountant()
	s := soul.New("soul-1")

	res := a.ApplyGain(s, 50)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, 50, s.Experience)
}

func TestApplyGainRarityTransition(t *testing.T) {
	a := newAccountant()
	s := soul.New("soul-1")
	s.Level = 5
	s.Experience = 700
	s.Derive()

	res := a.ApplyGain(s, 300)
	require.True(t, res.LeveledUp)
	require.True(t, res.RarityChanged)
	assert.Equal(t, progression.Common, res.FromTier)
	assert.Equal(t, progression.Rare, res.ToTier)
	assert.Equal(t, 6, s.Level)
	assert.Equal(t, progression.Rare, s.Rarity)
	assert.Contains(t, s.UnlockedLanguages, "id")
}

func TestApplyGainPreservesPinnedTier(t *testing.T) {
	a := newAccountant()
	s := soul.New("soul-1")
	s.Rarity = progression.Legendary // administrative pin

	res := a.ApplyGain(s, 150)
	assert.True(t, res.LeveledUp)
	assert.False(t, res.RarityChanged, "pinned tier at or above natural must not re-trigger")
	assert.Equal(t, progression.Legendary, s.Rarity)
}

func TestApplyGainCrossingSeveralLevels(t *testing.T) {
	a := newAccountant()
	s := soul.New("soul-1")

	// One huge gain jumps straight into the Epic band.
	res := a.ApplyGain(s, 5950)
	assert.Equal(t, 15, s.Level)
	assert.True(t, res.RarityChanged)
	assert.Equal(t, progression.Epic, res.ToTier)
}

func TestApplyGainNegativePanics(t *testing.T) {
	a := newAccountant()
	s := soul.New("soul-1")

	assert.Panics(t, func() {
		a.ApplyGain(s, -1)
	})
}

func TestApplyGainExperienceMonotone(t *testing.T) {
	a := newAccountant()
	s := soul.New("soul-1")

	prevLevel, prevXP := s.Level, s.Experience
	for i := 0; i < 200; i++ {
		a.ApplyGain(s, 37)
		require.GreaterOrEqual(t, s.Experience, prevXP)
		require.GreaterOrEqual(t, s.Level, prevLevel)
		prevLevel, prevXP = s.Level, s.Experience
	}
}
