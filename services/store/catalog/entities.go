package catalog

import (
	"strconv"
	"time"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
)

// Category representa as cinco famílias de produto do catálogo
type Category string

const (
	CategoryProtein   Category = "protein"
	CategorySnack     Category = "snack"
	CategoryCreatine  Category = "creatine"
	CategoryAminoAcid Category = "amino_acid"
	CategoryVitamin   Category = "vitamin"
)

// Categories lista as categorias válidas
var Categories = []Category{
	CategoryProtein,
	CategorySnack,
	CategoryCreatine,
	CategoryAminoAcid,
	CategoryVitamin,
}

// Valid verifica se a categoria é conhecida
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory valida uma categoria vinda da borda
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", ErrInvalidCategory.With("category", raw)
	}
	return c, nil
}

// ProductRef é a referência tipada (categoria + id) para um produto
type ProductRef struct {
	Category Category `json:"category"`
	ID       int64    `json:"product_id"`
}

func (r ProductRef) String() string {
	return string(r.Category) + ":" + strconv.FormatInt(r.ID, 10)
}

// Less ordena referências para adquirir locks sempre na mesma ordem
func (r ProductRef) Less(other ProductRef) bool {
	if r.Category != other.Category {
		return r.Category < other.Category
	}
	return r.ID < other.ID
}

// Validate verifica a forma da referência
func (r ProductRef) Validate() error {
	if !r.Category.Valid() {
		return ErrInvalidCategory.With("category", string(r.Category))
	}
	if r.ID <= 0 {
		return ErrInvalidProductRef.With("product_id", r.ID)
	}
	return nil
}

// Product representa um produto do catálogo
type Product struct {
	Ref       ProductRef `json:"ref"`
	Name      string     `json:"name"`
	Price     int64      `json:"price"`
	Stock     int        `json:"stock"`
	ImageRef  string     `json:"image_ref"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Erros do catálogo
var (
	ErrProductNotFound   = apperr.New(apperr.KindNotFound, "product_not_found", "product not found")
	ErrInsufficientStock = apperr.New(apperr.KindConflict, "insufficient_stock", "insufficient stock")
	ErrInvalidCategory   = apperr.Validation("invalid_category", "unknown product category")
	ErrInvalidProductRef = apperr.Validation("invalid_product", "product id must be positive")
	ErrInvalidQuantity   = apperr.Validation("invalid_quantity", "quantity must be greater than 0")
)

// ProductNotFound devolve o erro com a referência anexada
func ProductNotFound(ref ProductRef) error {
	return ErrProductNotFound.
		WithMessage("product %s not found", ref).
		With("product", ref.String())
}

// InsufficientStock devolve o erro com disponível/solicitado anexados
func InsufficientStock(ref ProductRef, name string, available, requested int) error {
	label := name
	if label == "" {
		label = ref.String()
	}
	return ErrInsufficientStock.
		WithMessage("insufficient stock for %s: available %d, requested %d", label, available, requested).
		With("product", ref.String()).
		With("available", available).
		With("requested", requested)
}

// ValidateQuantity verifica a quantidade pedida
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity.With("quantity", quantity)
	}
	return nil
}
