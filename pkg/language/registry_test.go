package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulmint/soulmint/pkg/progression"
)

func TestCodesFor(t *testing.T) {
	assert.Equal(t, []string{"en"}, CodesFor(1))
	assert.Equal(t, []string{"en", "es"}, CodesFor(5))
	assert.Equal(t, []string{"en", "es", "id"}, CodesFor(6))
	assert.Len(t, CodesFor(30), len(catalog))
}

func TestLockedFor(t *testing.T) {
	locked := LockedFor(5)
	require.Len(t, locked, len(catalog)-2)
	assert.Equal(t, "id", locked[0].Code)
	for _, l := range locked {
		assert.Greater(t, l.UnlockLevel, 5)
	}

	assert.Empty(t, LockedFor(30))

	// Unlocked and locked partition the catalog at every level.
	for level := 1; level <= 31; level++ {
		assert.Equal(t, len(catalog), len(UnlockedFor(level))+len(LockedFor(level)),
			"level=%d", level)
	}
}

func TestIsUnlocked(t *testing.T) {
	assert.True(t, IsUnlocked("en", 1))
	assert.False(t, IsUnlocked("ja", 9))
	assert.True(t, IsUnlocked("ja", 10))
	assert.False(t, IsUnlocked("ar", 29))
	assert.True(t, IsUnlocked("ar", 30))

	// Unknown codes are never unlocked, whatever the level.
	assert.False(t, IsUnlocked("tlh", 99))
	assert.False(t, IsUnlocked("", 99))
}

func TestNextUnlock(t *testing.T) {
	next, ok := NextUnlock(1)
	require.True(t, ok)
	assert.Equal(t, "es", next.Code)

	next, ok = NextUnlock(10)
	require.True(t, ok)
	assert.Equal(t, "zh", next.Code)
	assert.Equal(t, progression.Epic, next.Rarity)

	_, ok = NextUnlock(30)
	assert.False(t, ok)
}

func TestRarityColumnMatchesUnlockLevel(t *testing.T) {
	for _, l := range All() {
		assert.Equal(t, progression.Default.RarityForLevel(l.UnlockLevel), l.Rarity,
			"language %s", l.Code)
	}
}
