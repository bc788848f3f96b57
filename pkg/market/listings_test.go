package market

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulmint/soulmint/pkg/progression"
	"github.com/soulmint/soulmint/pkg/soul"
)

func newTestListings(t *testing.T) *SQLiteListings {
	t.Helper()
	store, err := soul.OpenSQLite(filepath.Join(t.TempDir(), "souls.db"), progression.Default)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	listings, err := NewSQLiteListings(store.DB())
	require.NoError(t, err)
	return listings
}

func TestListingLifecycle(t *testing.T) {
	l := newTestListings(t)
	ctx := context.Background()

	listed, err := l.IsListed(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, l.List(ctx, "token-1", "1.5 ETH"))
	listed, err = l.IsListed(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, listed)

	// Relisting updates in place instead of failing.
	require.NoError(t, l.List(ctx, "token-1", "2 ETH"))

	require.NoError(t, l.Unlist(ctx, "token-1"))
	listed, err = l.IsListed(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, listed)

	// Unlisting something never listed is a no-op.
	assert.NoError(t, l.Unlist(ctx, "token-2"))
}
