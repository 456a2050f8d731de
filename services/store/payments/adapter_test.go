package payments_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
	"github.com/matheusmosca/supplements-store/pkg/storage"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/checkout"
	"github.com/matheusmosca/supplements-store/services/store/ledger"
	"github.com/matheusmosca/supplements-store/services/store/memstore"
	"github.com/matheusmosca/supplements-store/services/store/payments"
)

var (
	productA = catalog.ProductRef{Category: catalog.CategoryProtein, ID: 1}
	productB = catalog.ProductRef{Category: catalog.CategoryVitamin, ID: 2}

	customer = auth.Principal{UserID: 10, Email: "ana@example.com", Name: "Ana"}
)

type fakeProcessor struct {
	name     payments.Provider
	currency string

	mu           sync.Mutex
	charges      map[string]uuid.UUID
	amounts      map[string]decimal.Decimal
	status       payments.ChargeStatus
	confirmCalls int
	confirmErr   error
}

func newFakeProcessor(name payments.Provider, currency string) *fakeProcessor {
	return &fakeProcessor{
		name:     name,
		currency: currency,
		charges:  map[string]uuid.UUID{},
		amounts:  map[string]decimal.Decimal{},
		status:   payments.ChargeApproved,
	}
}

func (p *fakeProcessor) Name() payments.Provider { return p.name }

func (p *fakeProcessor) Currency() string { return p.currency }

func (p *fakeProcessor) CreateCharge(_ context.Context, charge payments.Charge) (payments.ChargeRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := fmt.Sprintf("%s-%d", p.name, len(p.charges)+1)
	p.charges[id] = charge.IntentID
	p.amounts[id] = charge.Amount
	return payments.ChargeRef{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func (p *fakeProcessor) ConfirmCharge(_ context.Context, id string) (payments.Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmCalls++
	if p.confirmErr != nil {
		return payments.Confirmation{}, p.confirmErr
	}
	intentID, ok := p.charges[id]
	if !ok {
		return payments.Confirmation{}, errors.New("unknown charge")
	}
	return payments.Confirmation{
		ChargeID:      id,
		Status:        p.status,
		Reference:     intentID.String(),
		TransactionID: id,
	}, nil
}

func (p *fakeProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.confirmCalls
}

type fixture struct {
	store   *memstore.Store
	sales   *lookupRecorder
	carts   *cart.CartUseCase
	adapter *payments.Adapter
	paypal  *fakeProcessor
	mp      *fakeProcessor
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith troca o catálogo visto pelo engine quando products não é nil
func newFixtureWith(t *testing.T, products func(*memstore.Store) checkout.ProductStore) *fixture {
	t.Helper()

	store := memstore.New()
	store.PutProduct(catalog.Product{Ref: productA, Name: "Whey 1kg", Price: 1000, Stock: 10})
	store.PutProduct(catalog.Product{Ref: productB, Name: "Vitamin C", Price: 500, Stock: 10})

	var productStore checkout.ProductStore = store
	if products != nil {
		productStore = products(store)
	}

	engine, err := checkout.NewEngine(
		store, productStore, store, store, nil,
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"),
	)
	require.NoError(t, err)

	carts := cart.NewCartUseCase(store, store)
	paypal := newFakeProcessor(payments.ProviderPayPal, "USD")
	mp := newFakeProcessor(payments.ProviderMercadoPago, "CLP")
	converter := payments.NewConverter("CLP", map[string]decimal.Decimal{"USD": decimal.NewFromInt(950)})
	sales := &lookupRecorder{SaleFinder: ledger.NewLedgerUseCase(store)}

	adapter, err := payments.NewAdapter(
		[]payments.Processor{paypal, mp},
		store,
		carts,
		sales,
		engine,
		converter,
		metricnoop.NewMeterProvider().Meter("test"),
	)
	require.NoError(t, err)

	return &fixture{store: store, sales: sales, carts: carts, adapter: adapter, paypal: paypal, mp: mp}
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, customer.UserID, productA, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, customer.UserID, productB, 1)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, ref catalog.ProductRef) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), ref)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateCharge_SnapshotsCartAndConverts(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	intent, ref, err := f.adapter.CreateCharge(context.Background(), customer, payments.ProviderPayPal)

	require.NoError(t, err)
	assert.Equal(t, payments.IntentPending, intent.Status)
	assert.Equal(t, int64(2500), intent.StoreAmount)
	assert.Equal(t, "2.63", intent.ChargeAmount.StringFixed(2))
	assert.Equal(t, "USD", intent.Currency)
	assert.Len(t, intent.Items, 2)
	assert.Equal(t, ref.ID, intent.ChargeID)
	assert.NotEmpty(t, ref.RedirectURL)

	stored, err := f.store.GetByCharge(context.Background(), payments.ProviderPayPal, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, stored.ID)
}

func TestCreateCharge_StoreCurrencyNotConverted(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	intent, _, err := f.adapter.CreateCharge(context.Background(), customer, payments.ProviderMercadoPago)

	require.NoError(t, err)
	assert.True(t, intent.ChargeAmount.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, "CLP", intent.Currency)
}

func TestCreateCharge_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderPayPal)
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, _, err = f.adapter.CreateCharge(ctx, auth.Principal{UserID: 1, IsAdmin: true}, payments.ProviderPayPal)
	assert.ErrorIs(t, err, checkout.ErrForbidden)

	_, _, err = f.adapter.CreateCharge(ctx, customer, "stripe")
	assert.ErrorIs(t, err, payments.ErrUnknownProvider)
}

func TestCapture_RecordsSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	intent, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderPayPal)
	require.NoError(t, err)

	result, err := f.adapter.Capture(ctx, customer, payments.ProviderPayPal, ref.ID)

	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, int64(2500), result.Sale.Total)
	assert.Equal(t, ref.ID, result.Sale.ExternalTransactionID)
	assert.Equal(t, 8, f.stock(t, productA))
	assert.Equal(t, 9, f.stock(t, productB))

	stored, err := f.store.Get(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.IntentCompleted, stored.Status)
	assert.Equal(t, result.Sale.Folio, stored.Folio)
}

func TestCapture_OtherCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	_, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderPayPal)
	require.NoError(t, err)

	_, err = f.adapter.Capture(ctx, auth.Principal{UserID: 99}, payments.ProviderPayPal, ref.ID)

	assert.ErrorIs(t, err, payments.ErrIntentOwnership)
	assert.Equal(t, 10, f.stock(t, productA))
}

func TestConfirm_DuplicateIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	_, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderMercadoPago)
	require.NoError(t, err)
	in := payments.ConfirmInput{
		Provider:   payments.ProviderMercadoPago,
		PaymentID:  ref.ID,
		Status:     "approved",
		CustomerID: customer.UserID,
	}

	first, err := f.adapter.Confirm(ctx, in)
	require.NoError(t, err)
	second, err := f.adapter.Confirm(ctx, in)
	require.NoError(t, err)
	third, err := f.adapter.Notify(ctx, payments.ProviderMercadoPago, ref.ID)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.True(t, third.Replayed)
	assert.Equal(t, first.Sale.Folio, second.Sale.Folio)
	assert.Equal(t, first.Sale.Folio, third.Sale.Folio)
	assert.Equal(t, 8, f.stock(t, productA))
	assert.Equal(t, 1, f.store.SaleCount())
	assert.Equal(t, 1, f.mp.calls())
}

func TestConfirm_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	_, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderMercadoPago)
	require.NoError(t, err)

	var wg sync.WaitGroup
	folios := make([]int64, 8)
	for i := range folios {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := f.adapter.Notify(ctx, payments.ProviderMercadoPago, ref.ID)
			if assert.NoError(t, err) {
				folios[i] = result.Sale.Folio
			}
		}(i)
	}
	wg.Wait()

	for _, folio := range folios {
		assert.Equal(t, folios[0], folio)
	}
	assert.Equal(t, 1, f.store.SaleCount())
	assert.Equal(t, 8, f.stock(t, productA))
}

func TestConfirm_NotApprovedStatusSkipsProcessor(t *testing.T) {
	f := newFixture(t)

	_, err := f.adapter.Confirm(context.Background(), payments.ConfirmInput{
		Provider:   payments.ProviderMercadoPago,
		PaymentID:  "123",
		Status:     "pending",
		CustomerID: customer.UserID,
	})

	assert.ErrorIs(t, err, payments.ErrPaymentNotApproved)
	assert.Zero(t, f.mp.calls())
	assert.Zero(t, f.store.SaleCount())
}

func TestConfirm_DeclinedByProcessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	intent, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderMercadoPago)
	require.NoError(t, err)
	f.mp.status = payments.ChargeDeclined

	_, err = f.adapter.Notify(ctx, payments.ProviderMercadoPago, ref.ID)

	assert.ErrorIs(t, err, payments.ErrPaymentNotApproved)
	stored, err := f.store.Get(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.IntentDeclined, stored.Status)
	assert.Equal(t, 10, f.stock(t, productA))
}

func TestConfirm_ProcessorUnavailable(t *testing.T) {
	f := newFixture(t)
	f.mp.confirmErr = errors.New("connection refused")

	_, err := f.adapter.Notify(context.Background(), payments.ProviderMercadoPago, "123")

	assert.ErrorIs(t, err, payments.ErrProcessorUnavailable)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
}

func TestConfirm_UsesSnapshotNotLiveCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	_, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderMercadoPago)
	require.NoError(t, err)

	// o cliente muda o carrinho depois de criar a cobrança
	_, err = f.carts.AddItem(ctx, customer.UserID, productA, 5)
	require.NoError(t, err)

	result, err := f.adapter.Notify(ctx, payments.ProviderMercadoPago, ref.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(2500), result.Sale.Total)
	assert.Equal(t, 8, f.stock(t, productA))

	// só o que foi cobrado sai do carrinho
	items, err := f.carts.Items(ctx, customer.UserID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, productA, items[0].Product)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestConfirm_ReconciliationWhenStockGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fillCart(t)
	intent, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderPayPal)
	require.NoError(t, err)

	// outra compra esgota o produto entre a cobrança e a captura
	p, err := f.store.GetProduct(ctx, productA)
	require.NoError(t, err)
	p.Stock = 1
	f.store.PutProduct(*p)

	_, err = f.adapter.Capture(ctx, customer, payments.ProviderPayPal, ref.ID)

	require.ErrorIs(t, err, payments.ErrReconciliation)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Equal(t, apperr.KindReconciliation, apperr.KindOf(err))
	assert.Equal(t, 1, f.stock(t, productA))
	assert.Zero(t, f.store.SaleCount())

	stored, err := f.store.Get(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, payments.IntentReconciliationRequired, stored.Status)
	assert.NotEmpty(t, stored.FailureReason)

	count, err := f.store.CountByStatus(ctx, payments.IntentReconciliationRequired)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// nova tentativa não roda o checkout de novo
	p.Stock = 10
	f.store.PutProduct(*p)
	_, err = f.adapter.Capture(ctx, customer, payments.ProviderPayPal, ref.ID)
	assert.ErrorIs(t, err, payments.ErrReconciliation)
	assert.Equal(t, 10, f.stock(t, productA))
	assert.Zero(t, f.store.SaleCount())
}

func TestConverter(t *testing.T) {
	c := payments.NewConverter("clp", map[string]decimal.Decimal{"usd": decimal.RequireFromString("950.5")})

	amount, err := c.Convert(10000, "USD")
	require.NoError(t, err)
	assert.Equal(t, "10.52", amount.StringFixed(2))

	amount, err = c.Convert(10000, "CLP")
	require.NoError(t, err)
	assert.Equal(t, "10000", amount.String())

	_, err = c.Convert(10000, "EUR")
	assert.ErrorIs(t, err, payments.ErrUnsupportedCurrency)
}

type lookup struct {
	sale *ledger.Sale
	err  error
}

// lookupRecorder repassa as buscas por transação externa e avisa cada resultado
type lookupRecorder struct {
	payments.SaleFinder

	mu      sync.Mutex
	lookups chan lookup
}

func (r *lookupRecorder) FindByExternalTransactionID(ctx context.Context, externalID string) (*ledger.Sale, error) {
	sale, err := r.SaleFinder.FindByExternalTransactionID(ctx, externalID)
	r.mu.Lock()
	lookups := r.lookups
	r.mu.Unlock()
	if lookups != nil {
		lookups <- lookup{sale: sale, err: err}
	}
	return sale, err
}

func (r *lookupRecorder) watch() <-chan lookup {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = make(chan lookup, 16)
	return r.lookups
}

// gatedCatalog segura o primeiro decremento até release e depois falha todos,
// como se o estoque tivesse acabado no meio da transação
type gatedCatalog struct {
	*memstore.Store
	paused  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedCatalog) DecrementStock(ctx context.Context, _ storage.Tx, ref catalog.ProductRef, quantity int) error {
	g.once.Do(func() {
		close(g.paused)
		<-g.release
	})
	return catalog.InsufficientStock(ref, "", 0, quantity)
}

func TestConfirm_DuplicateDuringFailingCheckoutSeesNoSale(t *testing.T) {
	gate := &gatedCatalog{paused: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWith(t, func(store *memstore.Store) checkout.ProductStore {
		gate.Store = store
		return gate
	})
	ctx := context.Background()
	f.fillCart(t)
	_, ref, err := f.adapter.CreateCharge(ctx, customer, payments.ProviderMercadoPago)
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := f.adapter.Notify(ctx, payments.ProviderMercadoPago, ref.ID)
		first <- err
	}()
	// a primeira confirmação já criou a venda dentro da transação
	<-gate.paused

	lookups := f.sales.watch()
	var secondResult *payments.Result
	second := make(chan error, 1)
	go func() {
		result, err := f.adapter.Notify(ctx, payments.ProviderMercadoPago, ref.ID)
		secondResult = result
		second <- err
	}()

	seen := <-lookups
	assert.Nil(t, seen.sale)
	assert.ErrorIs(t, seen.err, ledger.ErrSaleNotFound)

	close(gate.release)

	assert.ErrorIs(t, <-first, payments.ErrReconciliation)
	assert.ErrorIs(t, <-second, payments.ErrReconciliation)
	assert.Nil(t, secondResult)
	assert.Zero(t, f.store.SaleCount())
	assert.Equal(t, 10, f.stock(t, productA))
}
