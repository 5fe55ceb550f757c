package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delifood/delifood/internal/replica"
	"github.com/delifood/delifood/internal/shared"
)

func seededService(t *testing.T) (*Service, *replicaStore) {
	t.Helper()
	store := newReplicaStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertUser(ctx, replica.User{ID: "u-1", Email: "ana@example.com", UpdatedAt: now}))
	require.NoError(t, store.InsertProduct(ctx, replica.Product{ID: "p-pizza", Name: "Pizza", SKU: "PZ", Price: 900, UpdatedAt: now}))
	require.NoError(t, store.InsertProduct(ctx, replica.Product{ID: "p-cola", Name: "Cola", SKU: "CL", Price: 250, UpdatedAt: now}))
	svc := NewService(newMemRepo(), store)
	svc.now = func() time.Time { return now }
	return svc, store
}

func TestAddItemAccumulatesAndPrices(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-1", "p-pizza", 1)
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, "u-1", "p-pizza", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)
	_, err = svc.AddItem(ctx, "u-1", "p-cola", 4)
	require.NoError(t, err)

	view, err := svc.Cart(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "Cola", view.Items[0].Name)
	assert.EqualValues(t, 1000, view.Items[0].Subtotal)
	assert.EqualValues(t, 2700, view.Items[1].Subtotal)
	assert.EqualValues(t, 3700, view.Total)
}

func TestCallerMissingFromReplicaIsForbidden(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-ghost", "p-pizza", 1)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Cart(ctx, "u-ghost")
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.ErrorIs(t, svc.RemoveItem(ctx, "u-ghost", "p-pizza"), shared.ErrForbidden)
}

func TestItemErrors(t *testing.T) {
	svc, _ := seededService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u-1", "p-missing", 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.AddItem(ctx, "u-1", "p-pizza", 0)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.SetQuantity(ctx, "u-1", "p-pizza", 2)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, svc.RemoveItem(ctx, "u-1", "p-pizza"), shared.ErrNotFound)

	_, err = svc.AddItem(ctx, "u-1", "p-pizza", 1)
	require.NoError(t, err)
	item, err := svc.SetQuantity(ctx, "u-1", "p-pizza", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity)
	require.NoError(t, svc.RemoveItem(ctx, "u-1", "p-pizza"))

	view, err := svc.Cart(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Total)
}
