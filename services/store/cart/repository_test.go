package cart

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/supplements-store/pkg/storage/storagetest"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

func TestPostgresRepository_DeductTx(t *testing.T) {
	// Arrange
	tx := new(storagetest.MockTx)
	repo := &PostgresRepository{}
	protein := catalog.ProductRef{Category: catalog.CategoryProtein, ID: 1}
	vitamin := catalog.ProductRef{Category: catalog.CategoryVitamin, ID: 2}
	tx.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(storagetest.Tag("DELETE 0"), nil)

	// Act
	err := repo.DeductTx(context.Background(), tx, 7, map[catalog.ProductRef]int{vitamin: 1, protein: 2})

	// Assert
	require.NoError(t, err)
	require.Len(t, tx.Calls, 4)
	expected := []struct {
		statement string
		args      []any
	}{
		{"DELETE FROM cart_items", []any{int64(7), catalog.CategoryProtein, int64(1), 2}},
		{"SET quantity = quantity - $4", []any{int64(7), catalog.CategoryProtein, int64(1), 2}},
		{"DELETE FROM cart_items", []any{int64(7), catalog.CategoryVitamin, int64(2), 1}},
		{"SET quantity = quantity - $4", []any{int64(7), catalog.CategoryVitamin, int64(2), 1}},
	}
	for i, want := range expected {
		call := tx.Calls[i]
		assert.True(t, strings.Contains(call.Arguments.String(1), want.statement), "call %d: %s", i, call.Arguments.String(1))
		assert.Equal(t, want.args, call.Arguments.Get(2))
	}
	// a linha com quantidade maior que a comprada fica, só diminui
	assert.Contains(t, tx.Calls[0].Arguments.String(1), "quantity <= $4")
	assert.Contains(t, tx.Calls[1].Arguments.String(1), "quantity > $4")
}

func TestPostgresRepository_DeductTx_StopsOnError(t *testing.T) {
	tx := new(storagetest.MockTx)
	repo := &PostgresRepository{}
	tx.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(storagetest.Tag(""), errors.New("deadlock detected"))

	err := repo.DeductTx(context.Background(), tx, 7, map[catalog.ProductRef]int{
		{Category: catalog.CategorySnack, ID: 3}: 1,
		{Category: catalog.CategoryVitamin, ID: 2}: 1,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to remove purchased cart item")
	tx.AssertNumberOfCalls(t, "Exec", 1)
}

func TestPostgresRepository_UpdateQuantity_NoRows(t *testing.T) {
	// Arrange
	db := new(storagetest.MockDB)
	repo := &PostgresRepository{db: db}
	db.On("Exec", mock.Anything, storagetest.SQL("WHERE user_id = $1 AND id = $2"), []any{int64(7), int64(99), 3}).
		Return(storagetest.Tag("UPDATE 0"), nil)

	// Act
	err := repo.UpdateQuantity(context.Background(), 7, 99, 3)

	// Assert
	assert.True(t, errors.Is(err, ErrItemNotFound))
	db.AssertExpectations(t)
}
