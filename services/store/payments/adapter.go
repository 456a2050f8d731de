package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
	"github.com/matheusmosca/supplements-store/services/store/cart"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
	"github.com/matheusmosca/supplements-store/services/store/checkout"
	"github.com/matheusmosca/supplements-store/services/store/ledger"
	"github.com/matheusmosca/supplements-store/services/store/notification"
)

// CheckoutEngine é o que o adaptador precisa do motor de checkout
type CheckoutEngine interface {
	Validate(ctx context.Context, items []cart.Item) (map[catalog.ProductRef]*catalog.Product, error)
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Receipt, error)
}

// CartReader lê o carrinho atual para montar o snapshot da cobrança
type CartReader interface {
	Items(ctx context.Context, userID int64) ([]cart.Item, error)
}

// SaleFinder busca vendas já registradas por transação externa
type SaleFinder interface {
	FindByExternalTransactionID(ctx context.Context, externalID string) (*ledger.Sale, error)
}

// Result é o resultado de uma confirmação de pagamento
type Result struct {
	Sale         *ledger.Sale        `json:"sale"`
	Notification notification.Status `json:"notification,omitempty"`
	// Replayed indica que a venda já existia e nada foi executado de novo
	Replayed bool `json:"replayed"`
}

// ConfirmInput é a confirmação assíncrona vinda do cliente ou do processador
type ConfirmInput struct {
	Provider  Provider
	PaymentID string
	Status    string
	// CustomerID 0 significa notificação servidor-a-servidor (webhook)
	CustomerID int64
}

// Adapter transforma confirmações dos processadores em checkouts
type Adapter struct {
	processors      map[Provider]Processor
	intents         IntentRepository
	carts           CartReader
	sales           SaleFinder
	engine          CheckoutEngine
	converter       *Converter
	reconciliations metric.Int64Counter
}

// NewAdapter cria uma nova instância de Adapter
func NewAdapter(
	processors []Processor,
	intents IntentRepository,
	carts CartReader,
	sales SaleFinder,
	engine CheckoutEngine,
	converter *Converter,
	meter metric.Meter,
) (*Adapter, error) {
	reconciliations, err := meter.Int64Counter(
		"payments.reconciliation_required",
		metric.WithDescription("Charges approved externally whose sale could not be recorded"),
	)
	if err != nil {
		return nil, err
	}

	byName := make(map[Provider]Processor, len(processors))
	for _, p := range processors {
		byName[p.Name()] = p
	}

	return &Adapter{
		processors:      byName,
		intents:         intents,
		carts:           carts,
		sales:           sales,
		engine:          engine,
		converter:       converter,
		reconciliations: reconciliations,
	}, nil
}

// Providers lista os processadores configurados
func (a *Adapter) Providers() []Provider {
	providers := make([]Provider, 0, len(a.processors))
	for name := range a.processors {
		providers = append(providers, name)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}

func (a *Adapter) processor(provider Provider) (Processor, error) {
	p, ok := a.processors[provider]
	if !ok {
		return nil, ErrUnknownProvider.With("provider", string(provider))
	}
	return p, nil
}

// CreateCharge congela o carrinho atual numa intenção e cria a cobrança externa
func (a *Adapter) CreateCharge(ctx context.Context, customer auth.Principal, provider Provider) (*Intent, ChargeRef, error) {
	proc, err := a.processor(provider)
	if err != nil {
		return nil, ChargeRef{}, err
	}
	if customer.IsAdmin {
		return nil, ChargeRef{}, checkout.ErrForbidden
	}

	items, err := a.carts.Items(ctx, customer.UserID)
	if err != nil {
		return nil, ChargeRef{}, err
	}
	if len(items) == 0 {
		return nil, ChargeRef{}, checkout.ErrEmptyCart
	}
	// falha cedo, antes de cobrar, se já não há estoque
	if _, err := a.engine.Validate(ctx, items); err != nil {
		return nil, ChargeRef{}, err
	}

	var storeAmount int64
	for _, item := range items {
		storeAmount += item.Subtotal()
	}
	chargeAmount, err := a.converter.Convert(storeAmount, proc.Currency())
	if err != nil {
		return nil, ChargeRef{}, err
	}

	intent := &Intent{
		ID:           uuid.New(),
		Provider:     provider,
		Customer:     customer,
		Items:        items,
		StoreAmount:  storeAmount,
		ChargeAmount: chargeAmount,
		Currency:     proc.Currency(),
		Status:       IntentPending,
	}

	ref, err := proc.CreateCharge(ctx, Charge{
		IntentID:    intent.ID,
		Amount:      chargeAmount,
		Currency:    proc.Currency(),
		Description: fmt.Sprintf("Supplements order (%d items)", len(items)),
		Items:       items,
		Metadata: map[string]string{
			"user_id": fmt.Sprint(customer.UserID),
		},
	})
	if err != nil {
		return nil, ChargeRef{}, externalError(err)
	}
	intent.ChargeID = ref.ID

	if err := a.intents.Create(ctx, intent); err != nil {
		return nil, ChargeRef{}, err
	}

	logrus.WithFields(logrus.Fields{
		"intent_id":     intent.ID,
		"provider":      provider,
		"charge_id":     ref.ID,
		"user_id":       customer.UserID,
		"store_amount":  storeAmount,
		"charge_amount": chargeAmount.String(),
		"currency":      intent.Currency,
	}).Info("💳 [CHARGE] created")

	return intent, ref, nil
}

// Capture confirma sincronamente uma cobrança criada pelo próprio cliente
func (a *Adapter) Capture(ctx context.Context, customer auth.Principal, provider Provider, chargeID string) (*Result, error) {
	proc, err := a.processor(provider)
	if err != nil {
		return nil, err
	}

	intent, err := a.intents.GetByCharge(ctx, provider, chargeID)
	if err != nil {
		return nil, err
	}
	if intent.Customer.UserID != customer.UserID {
		return nil, ErrIntentOwnership
	}

	return a.settle(ctx, proc, chargeID, customer.UserID, intent)
}

// Confirm trata a volta do cliente com o status informado pelo processador.
// Status diferente de approved falha sem mutação.
func (a *Adapter) Confirm(ctx context.Context, in ConfirmInput) (*Result, error) {
	proc, err := a.processor(in.Provider)
	if err != nil {
		return nil, err
	}
	if in.Status != string(ChargeApproved) {
		return nil, ErrPaymentNotApproved.With("status", in.Status)
	}
	return a.settle(ctx, proc, in.PaymentID, in.CustomerID, nil)
}

// Notify trata a notificação servidor-a-servidor; o status vem do processador
func (a *Adapter) Notify(ctx context.Context, provider Provider, paymentID string) (*Result, error) {
	proc, err := a.processor(provider)
	if err != nil {
		return nil, err
	}
	return a.settle(ctx, proc, paymentID, 0, nil)
}

func (a *Adapter) settle(ctx context.Context, proc Processor, id string, customerID int64, intent *Intent) (*Result, error) {
	log := logrus.WithFields(logrus.Fields{
		"provider": proc.Name(),
		"charge":   id,
		"user_id":  customerID,
	})

	// 1. Idempotência: a venda desta transação já existe?
	if result, err := a.existing(ctx, id, customerID); result != nil || err != nil {
		if result != nil {
			log.WithField("folio", result.Sale.Folio).Info("ℹ️ [IDEMPOTENCY] sale already recorded")
		}
		return result, err
	}

	// 2. Veredito do processador
	conf, err := proc.ConfirmCharge(ctx, id)
	if err != nil {
		log.WithError(err).Warn("❌ [CONFIRM] processor call failed")
		return nil, externalError(err)
	}

	// 3. Intenção com o snapshot do carrinho
	if intent == nil {
		intent, err = a.resolveIntent(ctx, proc.Name(), conf)
		if err != nil {
			return nil, err
		}
	}
	if customerID != 0 && intent.Customer.UserID != customerID {
		return nil, ErrIntentOwnership
	}

	if conf.Status != ChargeApproved {
		if conf.Status == ChargeDeclined && intent.Status == IntentPending {
			if err := a.intents.MarkStatus(ctx, intent.ID, IntentDeclined, "declined by processor"); err != nil {
				log.WithError(err).Warn("⚠️ [CONFIRM] failed to mark intent declined")
			}
		}
		log.WithField("status", conf.Status).Info("ℹ️ [CONFIRM] payment not approved")
		return nil, ErrPaymentNotApproved.With("status", string(conf.Status))
	}

	if conf.TransactionID != id {
		if result, err := a.existing(ctx, conf.TransactionID, customerID); result != nil || err != nil {
			return result, err
		}
	}

	switch intent.Status {
	case IntentReconciliationRequired:
		// nunca repetir automaticamente: pode reservar duas vezes
		return nil, ErrReconciliation.With("intent_id", intent.ID.String())
	case IntentCompleted:
		sale, err := a.sales.FindByExternalTransactionID(ctx, conf.TransactionID)
		if err != nil {
			return nil, err
		}
		return &Result{Sale: sale, Replayed: true}, nil
	}

	// 4. Checkout do snapshot
	receipt, err := a.engine.Checkout(ctx, checkout.Request{
		Customer:              intent.Customer,
		Items:                 intent.Items,
		ExternalTransactionID: conf.TransactionID,
		Source:                string(proc.Name()),
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		// confirmação concorrente gravou primeiro
		sale, findErr := a.sales.FindByExternalTransactionID(ctx, conf.TransactionID)
		if findErr != nil {
			return nil, findErr
		}
		a.complete(ctx, intent, sale.Folio, log)
		return &Result{Sale: sale, Replayed: true}, nil
	}
	if err != nil {
		return nil, a.reconcile(ctx, intent, conf, err)
	}

	a.complete(ctx, intent, receipt.Sale.Folio, log)
	log.WithFields(logrus.Fields{
		"folio":     receipt.Sale.Folio,
		"intent_id": intent.ID,
	}).Info("✅ [CONFIRM] sale recorded")

	return &Result{Sale: receipt.Sale, Notification: receipt.Notification}, nil
}

func (a *Adapter) existing(ctx context.Context, externalID string, customerID int64) (*Result, error) {
	if externalID == "" {
		return nil, nil
	}
	sale, err := a.sales.FindByExternalTransactionID(ctx, externalID)
	if errors.Is(err, ledger.ErrSaleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if customerID != 0 && sale.CustomerID != customerID {
		return nil, ErrIntentOwnership
	}
	return &Result{Sale: sale, Replayed: true}, nil
}

func (a *Adapter) resolveIntent(ctx context.Context, provider Provider, conf Confirmation) (*Intent, error) {
	if id, err := uuid.Parse(conf.Reference); err == nil {
		return a.intents.Get(ctx, id)
	}
	return a.intents.GetByCharge(ctx, provider, conf.ChargeID)
}

func (a *Adapter) complete(ctx context.Context, intent *Intent, folio int64, log *logrus.Entry) {
	if err := a.intents.MarkCompleted(ctx, intent.ID, folio); err != nil {
		log.WithError(err).WithField("folio", folio).Warn("⚠️ [CONFIRM] sale recorded but intent not updated")
	}
}

// reconcile registra a inconsistência: dinheiro cobrado, venda não gravada
func (a *Adapter) reconcile(ctx context.Context, intent *Intent, conf Confirmation, cause error) error {
	fields := logrus.Fields{
		"reconciliation":          true,
		"intent_id":               intent.ID,
		"provider":                intent.Provider,
		"charge_id":               conf.ChargeID,
		"external_transaction_id": conf.TransactionID,
		"user_id":                 intent.Customer.UserID,
		"store_amount":            intent.StoreAmount,
		"charge_amount":           intent.ChargeAmount.String(),
		"currency":                intent.Currency,
	}
	logrus.WithFields(fields).WithError(cause).Error("🚨 [RECONCILIATION] charge approved but checkout failed")

	if err := a.intents.MarkStatus(context.WithoutCancel(ctx), intent.ID, IntentReconciliationRequired, cause.Error()); err != nil {
		logrus.WithFields(fields).WithError(err).Error("🚨 [RECONCILIATION] failed to flag intent")
	}
	a.reconciliations.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("provider", string(intent.Provider)),
		attribute.String("code", apperr.CodeOf(cause)),
	))

	return ErrReconciliation.
		With("intent_id", intent.ID.String()).
		With("external_transaction_id", conf.TransactionID).
		WithCause(cause)
}

func externalError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return ErrProcessorUnavailable.WithCause(err)
}
