package checkout

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/ledger"
	"github.com/matheusmosca/supplements-store/services/store/notification"
)

// State é a etapa de uma tentativa de checkout. Não é persistida.
type State string

const (
	StateValidating State = "validating"
	StateReserving  State = "reserving"
	StateRecording  State = "recording"
	StateCommitted  State = "committed"
	StateAborted    State = "aborted"
)

var (
	ErrEmptyCart = apperr.New(apperr.KindValidation, "empty_cart", "cart is empty")
	ErrForbidden = apperr.New(apperr.KindForbidden, "forbidden", "administrative accounts cannot purchase")
)

// ProductStore é o que o checkout precisa do catálogo
type ProductStore interface {
	GetProduct(ctx context.Context, ref catalog.ProductRef) (*catalog.Product, error)
	DecrementStock(ctx context.Context, tx storage.Tx, ref catalog.ProductRef, quantity int) error
}

// SaleWriter é o que o checkout precisa do livro de vendas
type SaleWriter interface {
	CreateSale(ctx context.Context, tx storage.Tx, sale *ledger.Sale) error
	InsertLineItem(ctx context.Context, tx storage.Tx, item *ledger.LineItem) error
	RecomputeTotal(ctx context.Context, tx storage.Tx, folio int64) (int64, error)
}

// CartStore é o que o checkout precisa do carrinho
type CartStore interface {
	ListItems(ctx context.Context, userID int64) ([]cart.Item, error)
	DeductTx(ctx context.Context, tx storage.Tx, userID int64, purchased map[catalog.ProductRef]int) error
}

// SaleNotifier agenda a confirmação depois do commit
type SaleNotifier interface {
	Dispatch(ctx context.Context, msg notification.SaleConfirmation) notification.Status
}

// Request é uma tentativa de checkout sobre um snapshot do carrinho
type Request struct {
	Customer              auth.Principal
	Items                 []cart.Item
	ExternalTransactionID string
	// Source identifica o ponto de entrada (direct, paypal, mercadopago)
	Source string
}

// Receipt é o resultado de um checkout confirmado
type Receipt struct {
	Sale         *ledger.Sale        `json:"sale"`
	Notification notification.Status `json:"notification"`
}

// Engine converte um carrinho em venda numa única transação local
type Engine struct {
	tx       storage.Beginner
	products ProductStore
	sales    SaleWriter
	carts    CartStore
	notifier SaleNotifier
	tracer   trace.Tracer
	attempts metric.Int64Counter
}

// NewEngine cria uma nova instância de Engine
func NewEngine(
	tx storage.Beginner,
	products ProductStore,
	sales SaleWriter,
	carts CartStore,
	notifier SaleNotifier,
	tracer trace.Tracer,
	meter metric.Meter,
) (*Engine, error) {
	attempts, err := meter.Int64Counter(
		"checkout.attempts",
		metric.WithDescription("Checkout attempts by result and error code"),
	)
	if err != nil {
		return nil, err
	}
	return &Engine{
		tx:       tx,
		products: products,
		sales:    sales,
		carts:    carts,
		notifier: notifier,
		tracer:   tracer,
		attempts: attempts,
	}, nil
}

// CheckoutCart faz o pagamento direto do carrinho atual do usuário
func (e *Engine) CheckoutCart(ctx context.Context, customer auth.Principal) (*Receipt, error) {
	items, err := e.carts.ListItems(ctx, customer.UserID)
	if err != nil {
		return nil, err
	}
	return e.Checkout(ctx, Request{Customer: customer, Items: items, Source: "direct"})
}

// Checkout valida, reserva estoque, grava a venda e esvazia o carrinho.
// Ou tudo é commitado, ou nada persiste.
func (e *Engine) Checkout(ctx context.Context, req Request) (*Receipt, error) {
	ctx, span := e.tracer.Start(ctx, "checkout")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", req.Customer.UserID),
		attribute.String("source", req.Source),
		attribute.String("external_transaction_id", req.ExternalTransactionID),
		attribute.Int("items", len(req.Items)),
	)

	log := logrus.WithFields(logrus.Fields{
		"user_id":                 req.Customer.UserID,
		"source":                  req.Source,
		"external_transaction_id": req.ExternalTransactionID,
	})
	log.Info("➡️ [CHECKOUT] started")

	state := StateValidating
	sale, err := e.run(ctx, req, &state, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("state", string(StateAborted)), attribute.String("aborted_at", string(state)))
		e.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("result", "aborted"),
			attribute.String("code", apperr.CodeOf(err)),
		))
		log.WithField("state", state).WithError(err).Info("❌ [CHECKOUT] aborted")
		return nil, err
	}

	span.SetAttributes(attribute.String("state", string(StateCommitted)), attribute.Int64("folio", sale.Folio))
	e.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", "committed"),
		attribute.String("code", "ok"),
	))
	log.WithFields(logrus.Fields{"folio": sale.Folio, "total": sale.Total}).Info("✅ [CHECKOUT] committed")

	// efeitos colaterais só depois do commit, e nunca falham o checkout
	status := notification.StatusDisabled
	if e.notifier != nil {
		status = e.notifier.Dispatch(ctx, notification.SaleConfirmation{
			Sale:       *sale,
			CustomerID: req.Customer.UserID,
			Email:      req.Customer.Email,
			Name:       req.Customer.Name,
		})
	}

	return &Receipt{Sale: sale, Notification: status}, nil
}

func (e *Engine) run(ctx context.Context, req Request, state *State, log *logrus.Entry) (*ledger.Sale, error) {
	// 1. Pré-condições, sem mutação
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if req.Customer.IsAdmin {
		return nil, ErrForbidden
	}

	// 2. Validação de estoque com leitura atual, sem lock
	products, err := e.Validate(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	// 3. Commit atômico
	*state = StateReserving
	tx, err := e.tx.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	sale := &ledger.Sale{
		CustomerID:            req.Customer.UserID,
		ExternalTransactionID: req.ExternalTransactionID,
	}
	if err := e.sales.CreateSale(ctx, tx, sale); err != nil {
		return nil, err
	}

	// Ordem fixa de locks entre checkouts concorrentes
	items := make([]cart.Item, len(req.Items))
	copy(items, req.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Product.Less(items[j].Product)
	})

	for _, item := range items {
		line := ledger.NewLineItem(sale.Folio, item.Product, products[item.Product].Name, item.Quantity, item.UnitPrice)
		if err := e.sales.InsertLineItem(ctx, tx, line); err != nil {
			return nil, err
		}
		// condição stock >= quantity checada de novo dentro da transação
		if err := e.products.DecrementStock(ctx, tx, item.Product, item.Quantity); err != nil {
			log.WithField("product", item.Product.String()).WithError(err).Info("❌ [RESERVE] decrement failed")
			return nil, err
		}
		sale.Items = append(sale.Items, *line)
	}

	*state = StateRecording
	total, err := e.sales.RecomputeTotal(ctx, tx, sale.Folio)
	if err != nil {
		return nil, err
	}
	sale.Total = total

	// só o que foi pago sai do carrinho; o que o cliente adicionou depois da
	// cobrança continua lá
	if err := e.carts.DeductTx(ctx, tx, req.Customer.UserID, cart.Quantities(req.Items)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("erro ao comitar checkout: %w", err)
	}
	*state = StateCommitted
	return sale, nil
}

// Validate confere cada produto contra o estoque atual, somando a
// quantidade pedida por produto. Não trava linhas.
func (e *Engine) Validate(ctx context.Context, items []cart.Item) (map[catalog.ProductRef]*catalog.Product, error) {
	requested := map[catalog.ProductRef]int{}
	order := []catalog.ProductRef{}
	for _, item := range items {
		if err := catalog.ValidateQuantity(item.Quantity); err != nil {
			return nil, err
		}
		if _, seen := requested[item.Product]; !seen {
			order = append(order, item.Product)
		}
		requested[item.Product] += item.Quantity
	}

	products := make(map[catalog.ProductRef]*catalog.Product, len(order))
	for _, ref := range order {
		product, err := e.products.GetProduct(ctx, ref)
		if err != nil {
			return nil, err
		}
		if product.Stock < requested[ref] {
			return nil, catalog.InsufficientStock(ref, product.Name, product.Stock, requested[ref])
		}
		products[ref] = product
	}
	return products, nil
}
