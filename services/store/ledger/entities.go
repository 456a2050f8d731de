package ledger

import (
	"time"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

// Sale é uma venda finalizada. Total é sempre derivado das linhas.
type Sale struct {
	Folio                 int64      `json:"folio"`
	CustomerID            int64      `json:"customer_id"`
	Date                  time.Time  `json:"date"`
	Total                 int64      `json:"total"`
	ExternalTransactionID string     `json:"external_transaction_id,omitempty"`
	Items                 []LineItem `json:"items"`
}

// LineItem é uma linha de venda; subtotal congelado na escrita
type LineItem struct {
	ID          int64              `json:"id"`
	Folio       int64              `json:"folio"`
	Product     catalog.ProductRef `json:"product"`
	ProductName string             `json:"product_name"`
	Quantity    int                `json:"quantity"`
	UnitPrice   int64              `json:"unit_price"`
	Subtotal    int64              `json:"subtotal"`
}

// NewLineItem cria a linha calculando subtotal = quantity * unitPrice
func NewLineItem(folio int64, product catalog.ProductRef, name string, quantity int, unitPrice int64) *LineItem {
	return &LineItem{
		Folio:       folio,
		Product:     product,
		ProductName: name,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Subtotal:    int64(quantity) * unitPrice,
	}
}

// SumSubtotals soma os subtotais das linhas
func SumSubtotals(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal
	}
	return total
}

var (
	ErrSaleNotFound         = apperr.New(apperr.KindNotFound, "sale_not_found", "sale not found")
	ErrDuplicateTransaction = apperr.New(apperr.KindConflict, "duplicate_transaction", "a sale already exists for this external transaction")
)
