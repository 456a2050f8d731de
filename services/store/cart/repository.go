package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

// Repository define a interface para operações de banco de dados do carrinho
type Repository interface {
	// EnsureCart cria o carrinho do usuário no primeiro acesso
	EnsureCart(ctx context.Context, userID int64) error
	ListItems(ctx context.Context, userID int64) ([]Item, error)
	GetItem(ctx context.Context, userID, itemID int64) (*Item, error)
	// QuantityFor soma a quantidade do produto no carrinho, ignorando excludeItemID
	QuantityFor(ctx context.Context, userID int64, ref catalog.ProductRef, excludeItemID int64) (int, error)
	// UpsertItem insere o item ou soma a quantidade se o produto já estiver no carrinho
	UpsertItem(ctx context.Context, item *Item) error
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	DeleteItem(ctx context.Context, userID, itemID int64) (bool, error)
	Clear(ctx context.Context, userID int64) (int, error)
	// DeductTx tira do carrinho as quantidades compradas, dentro da transação
	// de checkout; itens que zeram são removidos
	DeductTx(ctx context.Context, tx storage.Tx, userID int64, purchased map[catalog.ProductRef]int) error
	Summary(ctx context.Context, userID int64) (Summary, error)
}

// PostgresRepository implementa Repository usando PostgreSQL
type PostgresRepository struct {
	db storage.DB
}

// NewPostgresRepository cria uma nova instância de PostgresRepository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const itemColumns = `id, user_id, category, product_id, name, unit_price, quantity, image_ref, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Product.Category,
		&item.Product.ID,
		&item.Name,
		&item.UnitPrice,
		&item.Quantity,
		&item.ImageRef,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *PostgresRepository) EnsureCart(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO carts (user_id, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure cart: %w", err)
	}
	return nil
}

// ListItems lista os itens do carrinho, mais recentes primeiro
func (r *PostgresRepository) ListItems(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) GetItem(ctx context.Context, userID, itemID int64) (*Item, error) {
	item, err := scanItem(r.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM cart_items
		WHERE user_id = $1 AND id = $2
	`, userID, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ItemNotFound(itemID)
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return item, nil
}

func (r *PostgresRepository) QuantityFor(ctx context.Context, userID int64, ref catalog.ProductRef, excludeItemID int64) (int, error) {
	var quantity int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM cart_items
		WHERE user_id = $1 AND category = $2 AND product_id = $3 AND id <> $4
	`, userID, ref.Category, ref.ID, excludeItemID).Scan(&quantity)
	if err != nil {
		return 0, fmt.Errorf("failed to sum cart quantity: %w", err)
	}
	return quantity, nil
}

func (r *PostgresRepository) UpsertItem(ctx context.Context, item *Item) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, category, product_id, name, unit_price, quantity, image_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (user_id, category, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity,
		    updated_at = NOW()
		RETURNING id, quantity, name, unit_price, image_ref, created_at, updated_at
	`,
		item.UserID,
		item.Product.Category,
		item.Product.ID,
		item.Name,
		item.UnitPrice,
		item.Quantity,
		item.ImageRef,
	).Scan(&item.ID, &item.Quantity, &item.Name, &item.UnitPrice, &item.ImageRef, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2
	`, userID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ItemNotFound(itemID)
	}
	return nil
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, userID, itemID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = $2`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID int64) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cart: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRepository) DeductTx(ctx context.Context, tx storage.Tx, userID int64, purchased map[catalog.ProductRef]int) error {
	pgTx, err := storage.TxDB(tx)
	if err != nil {
		return err
	}

	for _, ref := range SortedRefs(purchased) {
		quantity := purchased[ref]
		if _, err := pgTx.Exec(ctx, `
			DELETE FROM cart_items
			WHERE user_id = $1 AND category = $2 AND product_id = $3
			  AND quantity <= $4
		`, userID, ref.Category, ref.ID, quantity); err != nil {
			return fmt.Errorf("failed to remove purchased cart item: %w", err)
		}
		if _, err := pgTx.Exec(ctx, `
			UPDATE cart_items
			SET quantity = quantity - $4,
			    updated_at = NOW()
			WHERE user_id = $1 AND category = $2 AND product_id = $3
			  AND quantity > $4
		`, userID, ref.Category, ref.ID, quantity); err != nil {
			return fmt.Errorf("failed to deduct purchased quantity: %w", err)
		}
	}
	return nil
}

// Summary agrega no banco, sem carregar os itens
func (r *PostgresRepository) Summary(ctx context.Context, userID int64) (Summary, error) {
	var s Summary
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(unit_price * quantity), 0)
		FROM cart_items
		WHERE user_id = $1
	`, userID).Scan(&s.ItemCount, &s.Total)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize cart: %w", err)
	}
	return s, nil
}
