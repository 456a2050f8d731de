package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/memstore"
)

const userID = int64(7)

var (
	whey    = catalog.ProductRef{Category: catalog.CategoryProtein, ID: 1}
	vitamin = catalog.ProductRef{Category: catalog.CategoryVitamin, ID: 1}
)

func setup(t *testing.T) (*cart.CartUseCase, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.PutProduct(catalog.Product{Ref: whey, Name: "Whey 1kg", Price: 1000, Stock: 5, ImageRef: "whey.png"})
	store.PutProduct(catalog.Product{Ref: vitamin, Name: "Vitamin C", Price: 500, Stock: 2})
	return cart.NewCartUseCase(store, store), store
}

func TestAddItem_MergesSameProduct(t *testing.T) {
	uc, _ := setup(t)
	ctx := context.Background()

	_, err := uc.AddItem(ctx, userID, whey, 2)
	require.NoError(t, err)
	view, err := uc.AddItem(ctx, userID, whey, 3)
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, int64(5000), view.Total)
}

func TestAddItem_SnapshotsProductFields(t *testing.T) {
	uc, _ := setup(t)

	view, err := uc.AddItem(context.Background(), userID, whey, 1)

	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	item := view.Items[0]
	assert.Equal(t, "Whey 1kg", item.Name)
	assert.Equal(t, int64(1000), item.UnitPrice)
	assert.Equal(t, "whey.png", item.ImageRef)
	assert.Equal(t, whey, item.Product)
}

func TestAddItem_InsufficientStockCountsCart(t *testing.T) {
	uc, _ := setup(t)
	ctx := context.Background()
	_, err := uc.AddItem(ctx, userID, whey, 4)
	require.NoError(t, err)

	_, err = uc.AddItem(ctx, userID, whey, 2)

	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 1, appErr.Details["available"])
	assert.Equal(t, 2, appErr.Details["requested"])
}

func TestAddItem_Errors(t *testing.T) {
	uc, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		ref      catalog.ProductRef
		quantity int
		want     error
	}{
		{"unknown product", catalog.ProductRef{Category: catalog.CategorySnack, ID: 9}, 1, catalog.ErrProductNotFound},
		{"zero quantity", whey, 0, catalog.ErrInvalidQuantity},
		{"bad category", catalog.ProductRef{Category: "candy", ID: 1}, 1, catalog.ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.AddItem(ctx, userID, tt.ref, tt.quantity)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateQuantity(t *testing.T) {
	uc, _ := setup(t)
	ctx := context.Background()
	view, err := uc.AddItem(ctx, userID, whey, 1)
	require.NoError(t, err)
	id := view.Items[0].ID

	view, err = uc.UpdateQuantity(ctx, userID, id, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Items[0].Quantity)

	_, err = uc.UpdateQuantity(ctx, userID, id, 6)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	view, err = uc.UpdateQuantity(ctx, userID, id, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestUpdateQuantity_OtherUsersItem(t *testing.T) {
	uc, _ := setup(t)
	ctx := context.Background()
	view, err := uc.AddItem(ctx, userID, whey, 1)
	require.NoError(t, err)

	_, err = uc.UpdateQuantity(ctx, userID+1, view.Items[0].ID, 2)

	assert.ErrorIs(t, err, cart.ErrItemNotFound)
}

func TestRemoveItem_SecondDeleteIsNotFound(t *testing.T) {
	uc, _ := setup(t)
	ctx := context.Background()
	view, err := uc.AddItem(ctx, userID, whey, 1)
	require.NoError(t, err)
	id := view.Items[0].ID

	require.NoError(t, uc.RemoveItem(ctx, userID, id))
	err = uc.RemoveItem(ctx, userID, id)

	assert.ErrorIs(t, err, cart.ErrItemNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestClearAndSummary(t *testing.T) {
	uc, _ := setup(t)
	ctx := context.Background()
	_, err := uc.AddItem(ctx, userID, whey, 2)
	require.NoError(t, err)
	_, err = uc.AddItem(ctx, userID, vitamin, 1)
	require.NoError(t, err)

	summary, err := uc.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, cart.Summary{ItemCount: 2, Total: 2500}, summary)

	removed, err := uc.Clear(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	summary, err = uc.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, cart.Summary{}, summary)
}

func TestView_EmptyCartCreatedLazily(t *testing.T) {
	uc, _ := setup(t)

	view, err := uc.View(context.Background(), userID)

	require.NoError(t, err)
	assert.NotNil(t, view.Items)
	assert.Zero(t, view.Total)
}
