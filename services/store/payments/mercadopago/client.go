package mercadopago

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/matheusmosca/supplements-store/services/store/payments"
)

const currency = "CLP"

// Config contém o access token e as URLs de retorno do Mercado Pago
type Config struct {
	BaseURL         string
	AccessToken     string
	SuccessURL      string
	FailureURL      string
	PendingURL      string
	NotificationURL string
	Timeout         time.Duration
}

// Client implementa payments.Processor sobre Checkout Pro
type Client struct {
	http *resty.Client
	cfg  Config
}

// New cria uma nova instância de Client
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, cfg: cfg}
}

func (c *Client) Name() payments.Provider {
	return payments.ProviderMercadoPago
}

func (c *Client) Currency() string {
	return currency
}

type preferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceRequest struct {
	Items             []preferenceItem  `json:"items"`
	ExternalReference string            `json:"external_reference"`
	BackURLs          map[string]string `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type apiError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// CreateCharge cria uma preferência; external_reference carrega o id da intenção
func (c *Client) CreateCharge(ctx context.Context, charge payments.Charge) (payments.ChargeRef, error) {
	body := preferenceRequest{
		ExternalReference: charge.IntentID.String(),
		NotificationURL:   c.cfg.NotificationURL,
		Metadata:          charge.Metadata,
	}
	if c.cfg.SuccessURL != "" {
		body.BackURLs = map[string]string{
			"success": c.cfg.SuccessURL,
			"failure": c.cfg.FailureURL,
			"pending": c.cfg.PendingURL,
		}
		body.AutoReturn = "approved"
	}
	for _, item := range charge.Items {
		body.Items = append(body.Items, preferenceItem{
			ID:         item.Product.String(),
			Title:      item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  float64(item.UnitPrice),
			CurrencyID: currency,
		})
	}
	if len(body.Items) == 0 {
		body.Items = []preferenceItem{{
			ID:         charge.IntentID.String(),
			Title:      charge.Description,
			Quantity:   1,
			UnitPrice:  charge.Amount.InexactFloat64(),
			CurrencyID: currency,
		}}
	}

	var out preferenceResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Key", charge.IntentID.String()).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/checkout/preferences")
	if err != nil {
		return payments.ChargeRef{}, fmt.Errorf("mercadopago create preference: %w", err)
	}
	if resp.IsError() {
		return payments.ChargeRef{}, fmt.Errorf("mercadopago create preference: status %d: %s", resp.StatusCode(), apiErr.Message)
	}

	redirect := out.InitPoint
	if redirect == "" {
		redirect = out.SandboxInitPoint
	}
	return payments.ChargeRef{ID: out.ID, RedirectURL: redirect}, nil
}

type paymentResponse struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"status_detail"`
	ExternalReference string `json:"external_reference"`
}

// ConfirmCharge consulta o pagamento; o id do pagamento é a transação externa
func (c *Client) ConfirmCharge(ctx context.Context, paymentID string) (payments.Confirmation, error) {
	var out paymentResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", paymentID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/payments/{id}")
	if err != nil {
		return payments.Confirmation{}, fmt.Errorf("mercadopago get payment: %w", err)
	}
	if resp.IsError() {
		return payments.Confirmation{}, fmt.Errorf("mercadopago get payment: status %d: %s", resp.StatusCode(), apiErr.Message)
	}

	id := strconv.FormatInt(out.ID, 10)
	return payments.Confirmation{
		ChargeID:      id,
		TransactionID: id,
		Reference:     out.ExternalReference,
		Status:        mapStatus(out.Status),
	}, nil
}

func mapStatus(status string) payments.ChargeStatus {
	switch status {
	case "approved":
		return payments.ChargeApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return payments.ChargeDeclined
	default:
		return payments.ChargePending
	}
}
