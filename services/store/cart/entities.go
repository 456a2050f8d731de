package cart

import (
	"sort"
	"time"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

// Item é uma linha do carrinho com o preço congelado no momento da adição
type Item struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	Product   catalog.ProductRef `json:"product"`
	Name      string             `json:"name"`
	UnitPrice int64              `json:"unit_price"`
	Quantity  int                `json:"quantity"`
	ImageRef  string             `json:"image_ref"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Subtotal calcula unit_price * quantity
func (i Item) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// View é o carrinho com o total derivado, nunca armazenado
type View struct {
	Items []Item `json:"items"`
	Total int64  `json:"total"`
}

// NewView monta a visão calculando o total
func NewView(items []Item) View {
	if items == nil {
		items = []Item{}
	}
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return View{Items: items, Total: total}
}

// Summary é o resumo agregado do carrinho
type Summary struct {
	ItemCount int   `json:"item_count"`
	Total     int64 `json:"total"`
}

// Quantities soma a quantidade dos itens por produto
func Quantities(items []Item) map[catalog.ProductRef]int {
	quantities := make(map[catalog.ProductRef]int, len(items))
	for _, item := range items {
		quantities[item.Product] += item.Quantity
	}
	return quantities
}

// SortedRefs devolve as chaves em ordem de lock
func SortedRefs(quantities map[catalog.ProductRef]int) []catalog.ProductRef {
	refs := make([]catalog.ProductRef, 0, len(quantities))
	for ref := range quantities {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Less(refs[j])
	})
	return refs
}

var ErrItemNotFound = apperr.New(apperr.KindNotFound, "cart_item_not_found", "cart item not found")

// ItemNotFound devolve o erro com o id do item
func ItemNotFound(itemID int64) error {
	return ErrItemNotFound.With("item_id", itemID)
}
