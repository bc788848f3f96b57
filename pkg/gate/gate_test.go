package gate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulmint/soulmint/pkg/config"
	"github.com/soulmint/soulmint/pkg/evolution"
	"github.com/soulmint/soulmint/pkg/experience"
	"github.com/soulmint/soulmint/pkg/persona"
	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/providers"
	"github.com/soulmint/soulmint/pkg/soul"
)

// memStore is an in-memory soul.Store with the same versioning contract
// as the SQLite implementation, plus error injection knobs.
type memStore struct {
	mu    sync.Mutex
	souls map[string]*soul.Soul
	audit []soul.EvolutionRecord

	saveErr       error
	conflictsLeft int
	saveCalls     int
}

func newMemStore() *memStore {
	return &memStore{souls: make(map[string]*soul.Soul)}
}

func (m *memStore) Load(ctx context.Context, id string) (*soul.Soul, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.souls[id]
	if !ok {
		return nil, soul.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, s *soul.Soul) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return soul.ErrConflict
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	current, ok := m.souls[s.ID]
	switch {
	case s.Version == 0:
		if ok {
			return soul.ErrConflict
		}
		s.Version = 1
	default:
		if !ok || current.Version != s.Version {
			return soul.ErrConflict
		}
		s.Version++
	}
	m.souls[s.ID] = s.Clone()
	return nil
}

func (m *memStore) OverrideProgress(ctx context.Context, id string, level, xp int, tier progression.Rarity) (*soul.Soul, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) RecordEvolution(ctx context.Context, rec soul.EvolutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, rec)
	return nil
}

func (m *memStore) ListLaggingEvolutions(ctx context.Context, limit int) ([]*soul.Soul, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) get(id string) *soul.Soul {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.souls[id].Clone()
}

func (m *memStore) put(s *soul.Soul) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Version = 1
	m.souls[s.ID] = s.Clone()
}

type fakeReplies struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeReplies) GenerateReply(ctx context.Context, rc persona.ReplyContext) (*persona.Reply, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &persona.Reply{Text: f.text}, nil
}

type stubRewriter struct {
	raw string
	err error
}

func (s *stubRewriter) Rewrite(ctx context.Context, req evolution.Request) (string, error) {
	return s.raw, s.err
}

type staticListings struct{ listed bool }

func (l staticListings) IsListed(ctx context.Context, soulID string) (bool, error) {
	return l.listed, nil
}

func newTestGate(store *memStore, replies *fakeReplies, rw evolution.Rewriter, opts Options) *Gate {
	if rw == nil {
		rw = &stubRewriter{raw: `{"updated_personality": "evolved"}`}
	}
	cfg := config.DefaultConfig().Progression
	table := progression.Default
	return New(store, replies,
		experience.NewAccountant(cfg, table),
		evolution.NewCoordinator(rw, 0),
		table, opts)
}

// almostRare returns a soul one short turn away from the Rare band.
func almostRare(id string) *soul.Soul {
	s := soul.New(id)
	s.Level = 5
	s.Experience = 990
	s.Derive()
	return s
}

func TestHandleCreatesSoulOnFirstContact(t *testing.T) {
	store := newMemStore()
	replies := &fakeReplies{text: "hello keeper"}
	g := newTestGate(store, replies, nil, Options{})

	result, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "hello keeper", result.Reply)
	assert.Equal(t, 10, result.ExpGained)
	assert.Equal(t, 1, result.Level)
	assert.Equal(t, progression.Common, result.Rarity)
	assert.False(t, result.LeveledUp)

	stored := store.get("token-1")
	assert.Equal(t, 10, stored.Experience)
	assert.EqualValues(t, 1, stored.Version)
}

func TestHandleRequiresSoulID(t *testing.T) {
	g := newTestGate(newMemStore(), &fakeReplies{text: "x"}, nil, Options{})
	_, err := g.Handle(context.Background(), "", "hi", "")
	assert.Error(t, err)
}

func TestHandleRejectsListedSoul(t *testing.T) {
	store := newMemStore()
	s := soul.New("token-1")
	s.IsListed = true
	store.put(s)

	replies := &fakeReplies{text: "x"}
	g := newTestGate(store, replies, nil, Options{})

	_, err := g.Handle(context.Background(), "token-1", "hi", "")
	assert.ErrorIs(t, err, ErrListed)
	assert.True(t, IsPolicyRejection(err))

	// Inert: no collaborator call, no write.
	assert.Equal(t, 0, replies.calls)
	assert.Equal(t, 0, store.saveCalls)
	assert.Equal(t, 0, store.get("token-1").Experience)
}

func TestHandleRejectsViaListingsCollaborator(t *testing.T) {
	store := newMemStore()
	replies := &fakeReplies{text: "x"}
	g := newTestGate(store, replies, nil, Options{Listings: staticListings{listed: true}})

	_, err := g.Handle(context.Background(), "token-1", "hi", "")
	assert.ErrorIs(t, err, ErrListed)
	assert.Equal(t, 0, replies.calls)
}

func TestHandleRejectsLockedLanguage(t *testing.T) {
	store := newMemStore()
	replies := &fakeReplies{text: "x"}
	g := newTestGate(store, replies, nil, Options{})

	_, err := g.Handle(context.Background(), "token-1", "hello", "ja")
	require.Error(t, err)
	assert.True(t, IsPolicyRejection(err))

	var lle *LanguageLockedError
	require.ErrorAs(t, err, &lle)
	assert.Equal(t, "ja", lle.Code)
	assert.Equal(t, 10, lle.RequiredLevel)
	assert.Equal(t, progression.Rare, lle.RequiredRarity)
	assert.Contains(t, err.Error(), "Japanese")
	assert.Contains(t, err.Error(), "level 10")

	// Inert.
	assert.Equal(t, 0, replies.calls)
	assert.Equal(t, 0, store.saveCalls)
}

func TestHandleRejectsUnknownLanguageWithNextUnlock(t *testing.T) {
	g := newTestGate(newMemStore(), &fakeReplies{text: "x"}, nil, Options{})

	_, err := g.Handle(context.Background(), "token-1", "hello", "tlh")
	var lle *LanguageLockedError
	require.ErrorAs(t, err, &lle)
	assert.Equal(t, "es", lle.Code, "unknown codes fall back to the next unlockable language")
}

func TestHandleClassifiesWhenLanguageOmitted(t *testing.T) {
	store := newMemStore()
	replies := &fakeReplies{text: "x"}
	g := newTestGate(store, replies, nil, Options{})

	// Japanese text, level 1 soul: detected and rejected.
	_, err := g.Handle(context.Background(), "token-1", "こんにちは", "")
	var lle *LanguageLockedError
	require.ErrorAs(t, err, &lle)
	assert.Equal(t, "ja", lle.Code)

	// Plain English sails through.
	_, err = g.Handle(context.Background(), "token-1", "hello there", "")
	assert.NoError(t, err)
}

func TestHandleRejectsClassifiedIndonesianBelowUnlock(t *testing.T) {
	store := newMemStore()
	s := soul.New("token-1")
	s.Level = 3
	s.Experience = 250
	s.Derive()
	store.put(s)

	g := newTestGate(store, &fakeReplies{text: "x"}, nil, Options{})

	_, err := g.Handle(context.Background(), "token-1", "apa kabar kamu hari ini", "")
	var lle *LanguageLockedError
	require.ErrorAs(t, err, &lle)
	assert.Equal(t, "id", lle.Code)
	assert.Equal(t, 6, lle.RequiredLevel)
	assert.Equal(t, progression.Rare, lle.RequiredRarity)
	assert.Equal(t, 250, store.get("token-1").Experience)
}

func TestHandleTransientReplyFailureIsInert(t *testing.T) {
	store := newMemStore()
	replies := &fakeReplies{err: &providers.TransientError{Reason: "rate_limit", Err: errors.New("429")}}
	g := newTestGate(store, replies, nil, Options{})

	_, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.Error(t, err)
	assert.True(t, providers.IsTransient(err))
	assert.False(t, IsPolicyRejection(err))
	assert.Equal(t, 0, store.saveCalls, "a failed turn must not persist anything")
}

func TestHandleEvolutionOnRarityTransition(t *testing.T) {
	store := newMemStore()
	store.put(almostRare("token-1"))
	replies := &fakeReplies{text: "x"}
	rw := &stubRewriter{raw: `{"updated_personality": "bolder now", "evolution_summary": "grew"}`}
	g := newTestGate(store, replies, rw, Options{})

	result, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.NoError(t, err)
	assert.True(t, result.LeveledUp)
	assert.True(t, result.EvolutionTriggered)
	assert.Equal(t, 6, result.Level)
	assert.Equal(t, progression.Rare, result.Rarity)

	stored := store.get("token-1")
	assert.Equal(t, "bolder now", stored.Personality)
	assert.Equal(t, progression.Rare, stored.LastEvolvedTier)

	require.Len(t, store.audit, 1)
	assert.Equal(t, "applied", store.audit[0].Outcome)
	assert.Equal(t, progression.Rare, store.audit[0].ToTier)
}

func TestHandleEvolutionFailureDoesNotFailTurn(t *testing.T) {
	store := newMemStore()
	store.put(almostRare("token-1"))
	replies := &fakeReplies{text: "x"}
	rw := &stubRewriter{err: errors.New("provider down")}
	g := newTestGate(store, replies, rw, Options{})

	result, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.NoError(t, err, "a degraded evolution must not fail the chat turn")
	assert.True(t, result.LeveledUp)
	assert.True(t, result.EvolutionTriggered)
	assert.Equal(t, progression.Rare, result.Rarity)

	// The tier advanced and was persisted; the personality lags behind
	// for the backfill pass to repair.
	stored := store.get("token-1")
	assert.Equal(t, progression.Rare, stored.Rarity)
	assert.Equal(t, progression.Common, stored.LastEvolvedTier)
	assert.Equal(t, soul.DefaultPersonality, stored.Personality)

	require.Len(t, store.audit, 1)
	assert.Equal(t, "degraded", store.audit[0].Outcome)
}

func TestHandlePersistFailureStillReturnsReply(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	replies := &fakeReplies{text: "hello keeper"}
	g := newTestGate(store, replies, nil, Options{})

	result, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "hello keeper", result.Reply)
	assert.Equal(t, 10, result.ExpGained)
}

func TestHandleRetriesOnSaveConflict(t *testing.T) {
	store := newMemStore()
	store.conflictsLeft = 1
	replies := &fakeReplies{text: "x"}
	g := newTestGate(store, replies, nil, Options{})

	result, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, 10, result.ExpGained)
	assert.Equal(t, 2, store.saveCalls)
}

func TestHandleGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := newMemStore()
	store.conflictsLeft = 100
	replies := &fakeReplies{text: "x"}
	g := newTestGate(store, replies, nil, Options{})

	_, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, soul.ErrConflict)
	assert.Equal(t, maxTurnRetries, store.saveCalls)
}

func TestHandleRepairsRarityOnAcceptedTurn(t *testing.T) {
	store := newMemStore()
	s := soul.New("token-1")
	s.Level = 8
	s.Experience = 1750
	s.Rarity = progression.Common // corrupted below the natural band
	s.LastEvolvedTier = progression.Rare
	s.Derive()
	store.put(s)

	g := newTestGate(store, &fakeReplies{text: "x"}, nil, Options{})

	result, err := g.Handle(context.Background(), "token-1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, progression.Rare, result.Rarity)
	assert.False(t, result.EvolutionTriggered, "a repair is not a transition")
	assert.Equal(t, progression.Rare, store.get("token-1").Rarity)
}

func TestHandleRejectedTurnDoesNotPersistRepair(t *testing.T) {
	store := newMemStore()
	s := soul.New("token-1")
	s.Level = 8
	s.Experience = 1750
	s.Rarity = progression.Common
	s.Derive()
	store.put(s)

	g := newTestGate(store, &fakeReplies{text: "x"}, nil, Options{})

	// Locked language: the turn is rejected after the in-memory repair.
	_, err := g.Handle(context.Background(), "token-1", "hello", "zh")
	require.Error(t, err)
	assert.Equal(t, progression.Common, store.get("token-1").Rarity,
		"repairs ride on accepted turns only")
}

func TestHandleSerializesConcurrentTurns(t *testing.T) {
	store := newMemStore()
	replies := &fakeReplies{text: "x"}
	g := newTestGate(store, replies, nil, Options{})

	const turns = 8
	results := make([]*ChatResult, turns)
	errs := make([]error, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Handle(context.Background(), "token-1", "hi", "")
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < turns; i++ {
		require.NoError(t, errs[i])
		total += results[i].ExpGained
	}
	stored := store.get("token-1")
	assert.Equal(t, total, stored.Experience, "no turn may be lost or double counted")
	assert.EqualValues(t, turns, stored.Version)
}
