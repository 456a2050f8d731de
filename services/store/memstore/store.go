// Package memstore guarda catálogo, carrinhos, vendas e intenções em memória.
// Transações são serializadas: BeginTx segura um lock até Commit ou Rollback.
// As escritas ficam no Tx até o Commit, então Rollback só as descarta.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/ledger"
	"github.com/matheusmosca/supplements-store/services/store/payments"
)

var ErrTxDone = errors.New("transaction already finished")

var (
	_ catalog.Repository        = (*Store)(nil)
	_ cart.Repository           = (*Store)(nil)
	_ ledger.Repository         = (*Store)(nil)
	_ payments.IntentRepository = (*Store)(nil)
)

// Store implementa os repositórios de catálogo, carrinho, livro e pagamentos
type Store struct {
	txLock chan struct{}

	mu         sync.Mutex
	products   map[catalog.ProductRef]catalog.Product
	carts      map[int64]time.Time
	items      map[int64]cart.Item
	sales      map[int64]ledger.Sale
	lines      map[int64][]ledger.LineItem
	byExternal map[string]int64
	intents    map[uuid.UUID]payments.Intent
	nextItem   int64
	nextFolio  int64
	nextLine   int64

	now func() time.Time
}

// New cria um Store vazio
func New() *Store {
	return &Store{
		txLock:     make(chan struct{}, 1),
		products:   map[catalog.ProductRef]catalog.Product{},
		carts:      map[int64]time.Time{},
		items:      map[int64]cart.Item{},
		sales:      map[int64]ledger.Sale{},
		lines:      map[int64][]ledger.LineItem{},
		byExternal: map[string]int64{},
		intents:    map[uuid.UUID]payments.Intent{},
		now:        time.Now,
	}
}

// Tx é a transação em memória. As escritas ficam no Tx e só chegam aos
// mapas do Store no Commit; leituras fora da transação nunca as veem.
type Tx struct {
	store *Store
	done  bool

	reserved map[catalog.ProductRef]int
	sales    map[int64]ledger.Sale
	lines    map[int64][]ledger.LineItem
	totals   map[int64]int64
	deducted []deduction
}

type deduction struct {
	itemID   int64
	quantity int
}

// BeginTx espera a transação anterior terminar ou o contexto ser cancelado
func (s *Store) BeginTx(ctx context.Context) (storage.Tx, error) {
	select {
	case s.txLock <- struct{}{}:
		return &Tx{
			store:    s,
			reserved: map[catalog.ProductRef]int{},
			sales:    map[int64]ledger.Sale{},
			lines:    map[int64][]ledger.LineItem{},
			totals:   map[int64]int64{},
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Commit aplica as escritas de uma vez, sob o mesmo lock dos leitores
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	now := s.now()
	for ref, quantity := range t.reserved {
		p := s.products[ref]
		p.Stock -= quantity
		p.UpdatedAt = now
		s.products[ref] = p
	}
	for folio, sale := range t.sales {
		s.sales[folio] = sale
		if sale.ExternalTransactionID != "" {
			s.byExternal[sale.ExternalTransactionID] = folio
		}
	}
	for folio, lines := range t.lines {
		s.lines[folio] = append(s.lines[folio], lines...)
	}
	for folio, total := range t.totals {
		sale := s.sales[folio]
		sale.Total = total
		s.sales[folio] = sale
	}
	for _, d := range t.deducted {
		item, ok := s.items[d.itemID]
		if !ok {
			continue
		}
		if item.Quantity <= d.quantity {
			delete(s.items, d.itemID)
			continue
		}
		item.Quantity -= d.quantity
		item.UpdatedAt = now
		s.items[d.itemID] = item
	}
	s.mu.Unlock()

	<-s.txLock
	return nil
}

// Rollback descarta as escritas; depois de Commit é no-op
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	<-t.store.txLock
	return nil
}

func (s *Store) own(tx storage.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, storage.ErrForeignTx
	}
	if t.done {
		return nil, ErrTxDone
	}
	return t, nil
}

// PutProduct insere ou substitui um produto (seed e testes)
func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.Ref] = p
}
