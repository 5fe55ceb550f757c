//go:build integration

package replica

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delifood/delifood/internal/platform/db/dbtest"
	"github.com/delifood/delifood/internal/shared"
)

func TestPGStoreIntegration(t *testing.T) {
	store := NewPGStore(dbtest.Start(t, "schema.sql"))
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertUser(ctx, User{ID: "u-1", Email: "a@b.io", UpdatedAt: t0}))
	err := store.InsertUser(ctx, User{ID: "u-1", Email: "a@b.io", UpdatedAt: t0})
	assert.ErrorIs(t, err, shared.ErrConflict)

	applied, err := store.UpsertUser(ctx, User{ID: "u-1", Email: "new@b.io", UpdatedAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.UpsertUser(ctx, User{ID: "u-1", Email: "old@b.io", UpdatedAt: t0})
	require.NoError(t, err)
	assert.False(t, applied)

	u, err := store.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "new@b.io", u.Email)

	_, err = store.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	applied, err = store.UpsertProduct(ctx, Product{ID: "p-1", Name: "Pizza", SKU: "PZ", Price: 900, UpdatedAt: t0})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.ErrorIs(t, store.InsertProduct(ctx, Product{ID: "p-1", UpdatedAt: t0}), shared.ErrConflict)
}
