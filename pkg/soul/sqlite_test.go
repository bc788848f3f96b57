package soul

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulmint/soulmint/pkg/progression"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "souls.db"), progression.Default)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := New("token-1")
	s.Level = 6
	s.Experience = 1000
	s.Rarity = progression.Rare
	s.LastEvolvedTier = progression.Rare
	s.Personality = "bolder now"
	s.Tagline = "tempered"
	s.Backstory = "minted at dawn"
	s.Derive()

	require.NoError(t, store.Save(ctx, s))
	assert.EqualValues(t, 1, s.Version)

	loaded, err := store.Load(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Level)
	assert.Equal(t, 1000, loaded.Experience)
	assert.Equal(t, progression.Rare, loaded.Rarity)
	assert.Equal(t, progression.Rare, loaded.LastEvolvedTier)
	assert.Equal(t, "bolder now", loaded.Personality)
	assert.Equal(t, "tempered", loaded.Tagline)
	assert.Equal(t, "minted at dawn", loaded.Backstory)
	assert.EqualValues(t, 1, loaded.Version)

	// Derived fields come from the level, not from storage.
	assert.Contains(t, loaded.Skills, "poetry")
	assert.Contains(t, loaded.UnlockedLanguages, "id")
}

func TestSaveDetectsConflictingUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := New("token-1")
	require.NoError(t, store.Save(ctx, s))

	a, err := store.Load(ctx, "token-1")
	require.NoError(t, err)
	b, err := store.Load(ctx, "token-1")
	require.NoError(t, err)

	a.Experience = 50
	require.NoError(t, store.Save(ctx, a))
	assert.EqualValues(t, 2, a.Version)

	b.Experience = 999
	err = store.Save(ctx, b)
	assert.ErrorIs(t, err, ErrConflict)

	// The first writer's state survived.
	loaded, err := store.Load(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, 50, loaded.Experience)
}

func TestSaveDetectsConcurrentCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := New("token-1")
	require.NoError(t, store.Save(ctx, first))

	second := New("token-1")
	assert.ErrorIs(t, store.Save(ctx, second), ErrConflict)
}

func TestOverrideProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Creates the soul when it does not exist yet.
	s, err := store.OverrideProgress(ctx, "token-1", 15, 5950, progression.Epic)
	require.NoError(t, err)
	assert.Equal(t, 15, s.Level)
	assert.Equal(t, 5950, s.Experience)
	assert.Equal(t, progression.Epic, s.Rarity)
	assert.Contains(t, s.Skills, "philosophy")

	// Bypasses the version guard on an existing row.
	stale, err := store.Load(ctx, "token-1")
	require.NoError(t, err)
	stale.Experience = 6000
	require.NoError(t, store.Save(ctx, stale))

	s, err = store.OverrideProgress(ctx, "token-1", 2, 100, progression.Legendary)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Level)
	assert.Equal(t, progression.Legendary, s.Rarity, "override pins above the natural tier")

	_, err = store.OverrideProgress(ctx, "token-1", 0, 0, progression.Common)
	assert.Error(t, err)
	_, err = store.OverrideProgress(ctx, "token-1", 1, -5, progression.Common)
	assert.Error(t, err)
}

func TestListLaggingEvolutions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fresh := New("fresh")
	require.NoError(t, store.Save(ctx, fresh))

	lagging := New("lagging")
	lagging.Level = 6
	lagging.Experience = 1000
	lagging.Rarity = progression.Rare
	lagging.LastEvolvedTier = progression.Common
	require.NoError(t, store.Save(ctx, lagging))

	caughtUp := New("caught-up")
	caughtUp.Level = 6
	caughtUp.Experience = 1000
	caughtUp.Rarity = progression.Rare
	caughtUp.LastEvolvedTier = progression.Rare
	require.NoError(t, store.Save(ctx, caughtUp))

	out, err := store.ListLaggingEvolutions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "lagging", out[0].ID)

	out, err = store.ListLaggingEvolutions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRecordEvolution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := EvolutionRecord{
		ID:        "ev-1",
		SoulID:    "token-1",
		FromTier:  progression.Common,
		ToTier:    progression.Rare,
		FromLevel: 5,
		ToLevel:   6,
		Outcome:   "applied",
		Summary:   "found confidence",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.RecordEvolution(ctx, rec))

	var count int
	row := store.DB().QueryRow(`SELECT COUNT(*) FROM evolution_events WHERE soul_id = ?`, "token-1")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}
