package memstore

import (
	"context"
	"sort"

	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

func (s *Store) GetProduct(_ context.Context, ref catalog.ProductRef) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[ref]
	if !ok {
		return nil, catalog.ProductNotFound(ref)
	}
	return &p, nil
}

func (s *Store) ListByCategory(_ context.Context, category catalog.Category) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := []catalog.Product{}
	for _, p := range s.products {
		if p.Ref.Category == category {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].Ref.ID < products[j].Ref.ID
	})
	return products, nil
}

// DecrementStock aplica a mesma condição stock >= quantity do UPDATE
// condicional, descontando o que a transação já reservou
func (s *Store) DecrementStock(_ context.Context, tx storage.Tx, ref catalog.ProductRef, quantity int) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[ref]
	if !ok {
		return catalog.ProductNotFound(ref)
	}
	available := p.Stock - t.reserved[ref]
	if available < quantity {
		return catalog.InsufficientStock(ref, p.Name, available, quantity)
	}
	t.reserved[ref] += quantity
	return nil
}
