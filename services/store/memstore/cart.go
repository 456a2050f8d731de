package memstore

import (
	"context"
	"sort"

	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

func (s *Store) EnsureCart(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[userID]; !ok {
		s.carts[userID] = s.now()
	}
	return nil
}

func (s *Store) ListItems(_ context.Context, userID int64) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []cart.Item{}
	for _, item := range s.items {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

func (s *Store) GetItem(_ context.Context, userID, itemID int64) (*cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.UserID != userID {
		return nil, cart.ItemNotFound(itemID)
	}
	return &item, nil
}

func (s *Store) QuantityFor(_ context.Context, userID int64, ref catalog.ProductRef, excludeItemID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for id, item := range s.items {
		if item.UserID == userID && item.Product == ref && id != excludeItemID {
			total += item.Quantity
		}
	}
	return total, nil
}

// UpsertItem respeita a unicidade (usuário, produto) somando a quantidade
func (s *Store) UpsertItem(_ context.Context, item *cart.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, existing := range s.items {
		if existing.UserID == item.UserID && existing.Product == item.Product {
			existing.Quantity += item.Quantity
			existing.UpdatedAt = now
			s.items[id] = existing
			*item = existing
			return nil
		}
	}

	s.nextItem++
	item.ID = s.nextItem
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = *item
	return nil
}

func (s *Store) UpdateQuantity(_ context.Context, userID, itemID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.UserID != userID {
		return cart.ItemNotFound(itemID)
	}
	item.Quantity = quantity
	item.UpdatedAt = s.now()
	s.items[itemID] = item
	return nil
}

func (s *Store) DeleteItem(_ context.Context, userID, itemID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.UserID != userID {
		return false, nil
	}
	delete(s.items, itemID)
	return true, nil
}

func (s *Store) Clear(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, item := range s.items {
		if item.UserID == userID {
			delete(s.items, id)
			removed++
		}
	}
	return removed, nil
}

// DeductTx marca as quantidades a tirar; o carrinho só muda no Commit
func (s *Store) DeductTx(_ context.Context, tx storage.Tx, userID int64, purchased map[catalog.ProductRef]int) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := make(map[catalog.ProductRef]int, len(purchased))
	for ref, quantity := range purchased {
		remaining[ref] = quantity
	}
	for id, item := range s.items {
		left := remaining[item.Product]
		if item.UserID != userID || left <= 0 {
			continue
		}
		quantity := min(item.Quantity, left)
		remaining[item.Product] = left - quantity
		t.deducted = append(t.deducted, deduction{itemID: id, quantity: quantity})
	}
	return nil
}

func (s *Store) Summary(_ context.Context, userID int64) (cart.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var summary cart.Summary
	for _, item := range s.items {
		if item.UserID == userID {
			summary.ItemCount++
			summary.Total += item.Subtotal()
		}
	}
	return summary, nil
}
