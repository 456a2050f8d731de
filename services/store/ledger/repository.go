package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

// Repository define a interface para operações de banco de dados do livro de vendas
type Repository interface {
	storage.Beginner

	// CreateSale insere a venda com total 0 e preenche folio e data
	CreateSale(ctx context.Context, tx storage.Tx, sale *Sale) error
	InsertLineItem(ctx context.Context, tx storage.Tx, item *LineItem) error
	// RecomputeTotal grava a soma dos subtotais como total e devolve o valor
	RecomputeTotal(ctx context.Context, tx storage.Tx, folio int64) (int64, error)

	GetSale(ctx context.Context, folio int64) (*Sale, error)
	GetByExternalTransactionID(ctx context.Context, externalID string) (*Sale, error)
	// ListForCustomer devolve as vendas mais recentes primeiro, com as linhas
	ListForCustomer(ctx context.Context, customerID int64) ([]Sale, error)
}

// PostgresRepository implementa Repository usando PostgreSQL
type PostgresRepository struct {
	*storage.PostgresBeginner
	db storage.DB
}

// NewPostgresRepository cria uma nova instância de PostgresRepository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		PostgresBeginner: storage.NewPostgresBeginner(db),
		db:               db,
	}
}

func (r *PostgresRepository) CreateSale(ctx context.Context, tx storage.Tx, sale *Sale) error {
	pgTx, err := storage.TxDB(tx)
	if err != nil {
		return err
	}

	var externalID *string
	if sale.ExternalTransactionID != "" {
		externalID = &sale.ExternalTransactionID
	}

	err = pgTx.QueryRow(ctx, `
		INSERT INTO sales (customer_id, sold_at, total, external_transaction_id)
		VALUES ($1, NOW(), 0, $2)
		RETURNING folio, sold_at
	`, sale.CustomerID, externalID).Scan(&sale.Folio, &sale.Date)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrDuplicateTransaction.With("external_transaction_id", sale.ExternalTransactionID)
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}
	sale.Total = 0
	return nil
}

func (r *PostgresRepository) InsertLineItem(ctx context.Context, tx storage.Tx, item *LineItem) error {
	pgTx, err := storage.TxDB(tx)
	if err != nil {
		return err
	}

	err = pgTx.QueryRow(ctx, `
		INSERT INTO sale_line_items (folio, category, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		item.Folio,
		item.Product.Category,
		item.Product.ID,
		item.Quantity,
		item.UnitPrice,
		item.Subtotal,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to insert line item: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecomputeTotal(ctx context.Context, tx storage.Tx, folio int64) (int64, error) {
	pgTx, err := storage.TxDB(tx)
	if err != nil {
		return 0, err
	}

	var total int64
	err = pgTx.QueryRow(ctx, `
		UPDATE sales
		SET total = (SELECT COALESCE(SUM(subtotal), 0) FROM sale_line_items WHERE folio = $1)
		WHERE folio = $1
		RETURNING total
	`, folio).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSaleNotFound.With("folio", folio)
		}
		return 0, fmt.Errorf("failed to recompute total: %w", err)
	}
	return total, nil
}

const saleWithItemsQuery = `
	SELECT s.folio, s.customer_id, s.sold_at, s.total, COALESCE(s.external_transaction_id, ''),
	       li.id, li.category, li.product_id, COALESCE(p.name, ''), li.quantity, li.unit_price, li.subtotal
	FROM sales s
	LEFT JOIN sale_line_items li ON li.folio = s.folio
	LEFT JOIN products p ON p.category = li.category AND p.id = li.product_id
`

// collectSales agrupa as linhas do JOIN por folio, preservando a ordem
func collectSales(rows pgx.Rows) ([]Sale, error) {
	defer rows.Close()

	sales := []Sale{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			sale      Sale
			lineID    *int64
			category  *string
			productID *int64
			name      string
			quantity  *int
			unitPrice *int64
			subtotal  *int64
		)
		err := rows.Scan(
			&sale.Folio,
			&sale.CustomerID,
			&sale.Date,
			&sale.Total,
			&sale.ExternalTransactionID,
			&lineID,
			&category,
			&productID,
			&name,
			&quantity,
			&unitPrice,
			&subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}

		pos, ok := index[sale.Folio]
		if !ok {
			sale.Items = []LineItem{}
			sales = append(sales, sale)
			pos = len(sales) - 1
			index[sale.Folio] = pos
		}
		if lineID == nil {
			continue
		}

		item := LineItem{
			ID:          *lineID,
			Folio:       sale.Folio,
			ProductName: name,
			Quantity:    *quantity,
			UnitPrice:   *unitPrice,
			Subtotal:    *subtotal,
		}
		item.Product.Category = catalog.Category(*category)
		item.Product.ID = *productID
		sales[pos].Items = append(sales[pos].Items, item)
	}
	return sales, rows.Err()
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*Sale, error) {
	rows, err := r.db.Query(ctx, saleWithItemsQuery+where+` ORDER BY li.id`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	sales, err := collectSales(rows)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, ErrSaleNotFound
	}
	return &sales[0], nil
}

func (r *PostgresRepository) GetSale(ctx context.Context, folio int64) (*Sale, error) {
	sale, err := r.getOne(ctx, `WHERE s.folio = $1`, folio)
	if errors.Is(err, ErrSaleNotFound) {
		return nil, ErrSaleNotFound.With("folio", folio)
	}
	return sale, err
}

func (r *PostgresRepository) GetByExternalTransactionID(ctx context.Context, externalID string) (*Sale, error) {
	return r.getOne(ctx, `WHERE s.external_transaction_id = $1`, externalID)
}

// ListForCustomer usa um único JOIN com os nomes dos produtos
func (r *PostgresRepository) ListForCustomer(ctx context.Context, customerID int64) ([]Sale, error) {
	rows, err := r.db.Query(ctx, saleWithItemsQuery+`
		WHERE s.customer_id = $1
		ORDER BY s.sold_at DESC, s.folio DESC, li.id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return collectSales(rows)
}
