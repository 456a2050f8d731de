package storage_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/pkg/storage/storagetest"
)

type plainTx struct{}

func (plainTx) Commit() error   { return nil }
func (plainTx) Rollback() error { return nil }

func TestTxDB(t *testing.T) {
	tx := new(storagetest.MockTx)

	db, err := storage.TxDB(tx)
	require.NoError(t, err)
	assert.Same(t, tx, db)

	_, err = storage.TxDB(plainTx{})
	assert.ErrorIs(t, err, storage.ErrForeignTx)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, storage.IsUniqueViolation(storagetest.UniqueViolation("sales_external_transaction_id_key")))
	assert.True(t, storage.IsUniqueViolation(fmt.Errorf("insert: %w", storagetest.UniqueViolation("x"))))
	assert.False(t, storage.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, storage.IsUniqueViolation(errors.New("23505")))
	assert.False(t, storage.IsUniqueViolation(nil))
}
