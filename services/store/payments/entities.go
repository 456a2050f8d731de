package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
	"github.com/matheusmosca/supplements-store/services/store/cart"
)

// Provider identifica o processador de pagamento
type Provider string

const (
	ProviderPayPal      Provider = "paypal"
	ProviderMercadoPago Provider = "mercadopago"
)

// ChargeStatus é o veredito final do processador
type ChargeStatus string

const (
	ChargeApproved ChargeStatus = "approved"
	ChargeDeclined ChargeStatus = "declined"
	ChargePending  ChargeStatus = "pending"
)

// Charge é o pedido de cobrança enviado ao processador
type Charge struct {
	IntentID    uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Description string
	Items       []cart.Item
	Metadata    map[string]string
}

// ChargeRef identifica a cobrança criada no processador
type ChargeRef struct {
	ID          string `json:"charge_id"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Confirmation é o resultado de consultar/capturar uma cobrança
type Confirmation struct {
	ChargeID string
	Status   ChargeStatus
	// Reference é o id da intenção que enviamos na criação
	Reference string
	// TransactionID vira o external_transaction_id da venda
	TransactionID string
}

// Processor é a interface estreita de um processador externo
type Processor interface {
	Name() Provider
	Currency() string
	CreateCharge(ctx context.Context, charge Charge) (ChargeRef, error)
	ConfirmCharge(ctx context.Context, chargeID string) (Confirmation, error)
}

// IntentStatus é o estado da intenção de pagamento
type IntentStatus string

const (
	IntentPending                IntentStatus = "pending"
	IntentCompleted              IntentStatus = "completed"
	IntentDeclined               IntentStatus = "declined"
	IntentExpired                IntentStatus = "expired"
	IntentReconciliationRequired IntentStatus = "reconciliation_required"
)

// Intent guarda o snapshot do carrinho no momento da cobrança.
// A confirmação faz checkout deste snapshot, nunca do carrinho atual.
type Intent struct {
	ID            uuid.UUID       `json:"id"`
	Provider      Provider        `json:"provider"`
	ChargeID      string          `json:"charge_id"`
	Customer      auth.Principal  `json:"customer"`
	Items         []cart.Item     `json:"items"`
	StoreAmount   int64           `json:"store_amount"`
	ChargeAmount  decimal.Decimal `json:"charge_amount"`
	Currency      string          `json:"currency"`
	Status        IntentStatus    `json:"status"`
	Folio         int64           `json:"folio,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

var (
	ErrIntentNotFound       = apperr.New(apperr.KindNotFound, "payment_intent_not_found", "payment intent not found")
	ErrPaymentNotApproved   = apperr.New(apperr.KindConflict, "payment_not_approved", "payment was not approved")
	ErrUnknownProvider      = apperr.Validation("unknown_provider", "unknown payment provider")
	ErrProcessorUnavailable = apperr.New(apperr.KindExternal, "processor_unavailable", "payment processor request failed")
	ErrReconciliation       = apperr.New(apperr.KindReconciliation, "reconciliation_required", "payment captured but the sale could not be recorded")
	ErrIntentOwnership      = apperr.New(apperr.KindForbidden, "payment_intent_forbidden", "payment intent belongs to another customer")
)
