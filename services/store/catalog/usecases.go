package catalog

import (
	"context"
)

// CatalogUseCase contém as leituras do catálogo expostas pela API
type CatalogUseCase struct {
	repository Repository
}

// NewCatalogUseCase cria uma nova instância de CatalogUseCase
func NewCatalogUseCase(repository Repository) *CatalogUseCase {
	return &CatalogUseCase{repository: repository}
}

// GetProduct valida a referência e busca o produto
func (uc *CatalogUseCase) GetProduct(ctx context.Context, ref ProductRef) (*Product, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return uc.repository.GetProduct(ctx, ref)
}

// ListByCategory lista os produtos de uma categoria válida
func (uc *CatalogUseCase) ListByCategory(ctx context.Context, category Category) ([]Product, error) {
	if !category.Valid() {
		return nil, ErrInvalidCategory.With("category", string(category))
	}
	return uc.repository.ListByCategory(ctx, category)
}
