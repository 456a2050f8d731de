package memstore

import (
	"context"
	"sort"

	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/ledger"
)

// CreateSale emula a restrição UNIQUE de external_transaction_id
func (s *Store) CreateSale(_ context.Context, tx storage.Tx, sale *ledger.Sale) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if externalID := sale.ExternalTransactionID; externalID != "" {
		_, exists := s.byExternal[externalID]
		for _, staged := range t.sales {
			exists = exists || staged.ExternalTransactionID == externalID
		}
		if exists {
			return ledger.ErrDuplicateTransaction.With("external_transaction_id", externalID)
		}
	}

	// como uma sequence, o folio não volta no rollback
	s.nextFolio++
	sale.Folio = s.nextFolio
	sale.Date = s.now()
	sale.Total = 0

	stored := *sale
	stored.Items = nil
	t.sales[sale.Folio] = stored
	return nil
}

func (s *Store) InsertLineItem(_ context.Context, tx storage.Tx, item *ledger.LineItem) error {
	t, err := s.own(tx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, staged := t.sales[item.Folio]
	_, committed := s.sales[item.Folio]
	if !staged && !committed {
		return ledger.ErrSaleNotFound.With("folio", item.Folio)
	}
	s.nextLine++
	item.ID = s.nextLine
	t.lines[item.Folio] = append(t.lines[item.Folio], *item)
	return nil
}

func (s *Store) RecomputeTotal(_ context.Context, tx storage.Tx, folio int64) (int64, error) {
	t, err := s.own(tx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sale, ok := t.sales[folio]; ok {
		sale.Total = ledger.SumSubtotals(t.lines[folio])
		t.sales[folio] = sale
		return sale.Total, nil
	}
	if _, ok := s.sales[folio]; !ok {
		return 0, ledger.ErrSaleNotFound.With("folio", folio)
	}
	total := ledger.SumSubtotals(s.lines[folio]) + ledger.SumSubtotals(t.lines[folio])
	t.totals[folio] = total
	return total, nil
}

// load monta a venda com linhas e nomes atuais dos produtos. Chamar com mu travado.
func (s *Store) load(folio int64) ledger.Sale {
	sale := s.sales[folio]
	sale.Items = []ledger.LineItem{}
	for _, line := range s.lines[folio] {
		if p, ok := s.products[line.Product]; ok {
			line.ProductName = p.Name
		}
		sale.Items = append(sale.Items, line)
	}
	return sale
}

func (s *Store) GetSale(_ context.Context, folio int64) (*ledger.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sales[folio]; !ok {
		return nil, ledger.ErrSaleNotFound.With("folio", folio)
	}
	sale := s.load(folio)
	return &sale, nil
}

func (s *Store) GetByExternalTransactionID(_ context.Context, externalID string) (*ledger.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folio, ok := s.byExternal[externalID]
	if !ok {
		return nil, ledger.ErrSaleNotFound
	}
	sale := s.load(folio)
	return &sale, nil
}

func (s *Store) ListForCustomer(_ context.Context, customerID int64) ([]ledger.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sales := []ledger.Sale{}
	for folio, sale := range s.sales {
		if sale.CustomerID == customerID {
			sales = append(sales, s.load(folio))
		}
	}
	sort.Slice(sales, func(i, j int) bool {
		if !sales[i].Date.Equal(sales[j].Date) {
			return sales[i].Date.After(sales[j].Date)
		}
		return sales[i].Folio > sales[j].Folio
	})
	return sales, nil
}

// SaleCount devolve quantas vendas existem (testes)
func (s *Store) SaleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales)
}

// LineItemCount devolve quantas linhas de venda existem (testes)
func (s *Store) LineItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, lines := range s.lines {
		count += len(lines)
	}
	return count
}
