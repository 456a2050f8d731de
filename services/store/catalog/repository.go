package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/supplements-store/pkg/storage"
)

// Repository define a interface para operações de banco de dados do catálogo
type Repository interface {
	// GetProduct lê o estoque atual, sem lock
	GetProduct(ctx context.Context, ref ProductRef) (*Product, error)

	ListByCategory(ctx context.Context, category Category) ([]Product, error)

	// DecrementStock decrementa condicionalmente dentro da transação:
	// falha com ErrInsufficientStock se stock < quantity
	DecrementStock(ctx context.Context, tx storage.Tx, ref ProductRef, quantity int) error
}

// PostgresRepository implementa Repository usando PostgreSQL
type PostgresRepository struct {
	db storage.DB
}

// NewPostgresRepository cria uma nova instância de PostgresRepository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const productColumns = `category, id, name, price, stock, image_ref, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.Ref.Category,
		&p.Ref.ID,
		&p.Name,
		&p.Price,
		&p.Stock,
		&p.ImageRef,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct busca o produto pela referência
func (r *PostgresRepository) GetProduct(ctx context.Context, ref ProductRef) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category = $1 AND id = $2
	`, ref.Category, ref.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ProductNotFound(ref)
		}
		return nil, fmt.Errorf("failed to get product %s: %w", ref, err)
	}
	return p, nil
}

// ListByCategory lista os produtos de uma categoria
func (r *PostgresRepository) ListByCategory(ctx context.Context, category Category) ([]Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE category = $1
		ORDER BY name, id
	`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// DecrementStock diminui o estoque com UPDATE condicional e verifica a linha afetada
func (r *PostgresRepository) DecrementStock(ctx context.Context, tx storage.Tx, ref ProductRef, quantity int) error {
	pgTx, err := storage.TxDB(tx)
	if err != nil {
		return err
	}

	applied, err := decrement(ctx, pgTx, ref, quantity)
	if err != nil || applied {
		return err
	}

	// Nenhuma linha: produto sumiu ou estoque insuficiente. Linha que falha o
	// WHERE não fica travada, então a releitura trava com FOR UPDATE.
	var (
		name  string
		stock int
	)
	err = pgTx.QueryRow(ctx, `
		SELECT name, stock FROM products WHERE category = $1 AND id = $2 FOR UPDATE
	`, ref.Category, ref.ID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductNotFound(ref)
		}
		return fmt.Errorf("failed to read stock after conditional update: %w", err)
	}
	if stock < quantity {
		return InsufficientStock(ref, name, stock, quantity)
	}

	// estoque reposto entre o UPDATE e a releitura; com a linha travada o
	// segundo UPDATE não disputa com ninguém
	applied, err = decrement(ctx, pgTx, ref, quantity)
	if err != nil {
		return err
	}
	if !applied {
		return InsufficientStock(ref, name, stock, quantity)
	}
	return nil
}

func decrement(ctx context.Context, db storage.DB, ref ProductRef, quantity int) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE products
		SET stock = stock - $3,
		    updated_at = NOW()
		WHERE category = $1 AND id = $2
		  AND stock >= $3
	`, ref.Category, ref.ID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrease stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
