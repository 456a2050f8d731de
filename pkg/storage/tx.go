package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// Beginner inicia transações compartilhadas entre repositórios
type Beginner interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// DB é o subconjunto de pgx usado pelos repositórios; *pgxpool.Pool e a
// PostgresTx implementam
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrForeignTx indica uma Tx de outra implementação passada para um repositório Postgres
var ErrForeignTx = errors.New("transaction does not belong to postgres storage")

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx  pgx.Tx
	ctx context.Context
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(t.ctx)
}

func (t *PostgresTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *PostgresTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *PostgresTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

// Rollback depois de Commit é no-op (pgx devolve ErrTxClosed, que ignoramos)
func (t *PostgresTx) Rollback() error {
	err := t.tx.Rollback(context.WithoutCancel(t.ctx))
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// PostgresBeginner abre transações no pool
type PostgresBeginner struct {
	pool *pgxpool.Pool
}

// NewPostgresBeginner cria uma nova instância de PostgresBeginner
func NewPostgresBeginner(pool *pgxpool.Pool) *PostgresBeginner {
	return &PostgresBeginner{pool: pool}
}

// BeginTx inicia uma nova transação
func (b *PostgresBeginner) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &PostgresTx{tx: tx, ctx: ctx}, nil
}

// TxDB devolve a Tx como DB; Tx de outra implementação devolve ErrForeignTx
func TxDB(tx Tx) (DB, error) {
	db, ok := tx.(DB)
	if !ok {
		return nil, ErrForeignTx
	}
	return db, nil
}

// IsUniqueViolation verifica se o erro é uma violação de chave única (23505)
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
