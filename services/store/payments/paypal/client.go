package paypal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/matheusmosca/supplements-store/services/store/payments"
)

const currency = "USD"

// Config contém as credenciais e URLs do PayPal
type Config struct {
	BaseURL   string
	ClientID  string
	Secret    string
	ReturnURL string
	CancelURL string
	Timeout   time.Duration
}

// Client implementa payments.Processor sobre a API de Orders v2
type Client struct {
	http *resty.Client
	cfg  Config

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New cria uma nova instância de Client
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, cfg: cfg}
}

func (c *Client) Name() payments.Provider {
	return payments.ProviderPayPal
}

func (c *Client) Currency() string {
	return currency
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *apiError) hasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.ClientID, c.cfg.Secret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&out).
		Post("/v1/oauth2/token")
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	if resp.IsError() || out.AccessToken == "" {
		return "", fmt.Errorf("paypal token request: status %d", resp.StatusCode())
	}

	c.token = out.AccessToken
	// margem para não usar um token prestes a expirar
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string  `json:"reference_id,omitempty"`
	CustomID    string  `json:"custom_id,omitempty"`
	Description string  `json:"description,omitempty"`
	Amount      *amount `json:"amount,omitempty"`
	Payments    *struct {
		Captures []capture `json:"captures"`
	} `json:"payments,omitempty"`
}

type capture struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	CustomID string `json:"custom_id"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
	Links         []link         `json:"links"`
}

type createOrderRequest struct {
	Intent             string         `json:"intent"`
	PurchaseUnits      []purchaseUnit `json:"purchase_units"`
	ApplicationContext struct {
		ReturnURL string `json:"return_url,omitempty"`
		CancelURL string `json:"cancel_url,omitempty"`
	} `json:"application_context"`
}

// CreateCharge cria uma order com intent CAPTURE; custom_id carrega o id da intenção
func (c *Client) CreateCharge(ctx context.Context, charge payments.Charge) (payments.ChargeRef, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return payments.ChargeRef{}, err
	}

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: charge.IntentID.String(),
			CustomID:    charge.IntentID.String(),
			Description: charge.Description,
			Amount: &amount{
				CurrencyCode: currency,
				Value:        charge.Amount.StringFixed(2),
			},
		}},
	}
	body.ApplicationContext.ReturnURL = c.cfg.ReturnURL
	body.ApplicationContext.CancelURL = c.cfg.CancelURL

	var out order
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("PayPal-Request-Id", charge.IntentID.String()).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v2/checkout/orders")
	if err != nil {
		return payments.ChargeRef{}, fmt.Errorf("paypal create order: %w", err)
	}
	if resp.IsError() {
		return payments.ChargeRef{}, fmt.Errorf("paypal create order: status %d: %s", resp.StatusCode(), apiErr.Message)
	}

	ref := payments.ChargeRef{ID: out.ID}
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			ref.RedirectURL = l.Href
		}
	}
	return ref, nil
}

var errAlreadyCaptured = errors.New("order already captured")

// ConfirmCharge captura a order. Uma order já capturada é consultada em vez de falhar.
func (c *Client) ConfirmCharge(ctx context.Context, orderID string) (payments.Confirmation, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return payments.Confirmation{}, err
	}

	out, err := c.capture(ctx, token, orderID)
	if errors.Is(err, errAlreadyCaptured) {
		out, err = c.getOrder(ctx, token, orderID)
	}
	if err != nil {
		return payments.Confirmation{}, err
	}
	return toConfirmation(out), nil
}

func (c *Client) capture(ctx context.Context, token, orderID string) (*order, error) {
	var out order
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Prefer", "return=representation").
		SetPathParam("id", orderID).
		SetBody(map[string]any{}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v2/checkout/orders/{id}/capture")
	if err != nil {
		return nil, fmt.Errorf("paypal capture: %w", err)
	}
	if resp.IsError() {
		if apiErr.hasIssue("ORDER_ALREADY_CAPTURED") {
			return nil, errAlreadyCaptured
		}
		return nil, fmt.Errorf("paypal capture: status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return &out, nil
}

func (c *Client) getOrder(ctx context.Context, token, orderID string) (*order, error) {
	var out order
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("id", orderID).
		SetResult(&out).
		Get("/v2/checkout/orders/{id}")
	if err != nil {
		return nil, fmt.Errorf("paypal get order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("paypal get order: status %d", resp.StatusCode())
	}
	return &out, nil
}

func toConfirmation(o *order) payments.Confirmation {
	conf := payments.Confirmation{
		ChargeID:      o.ID,
		TransactionID: o.ID,
		Status:        payments.ChargePending,
	}

	captureStatus := ""
	for _, pu := range o.PurchaseUnits {
		if pu.CustomID != "" {
			conf.Reference = pu.CustomID
		}
		if pu.Payments == nil {
			continue
		}
		for _, cp := range pu.Payments.Captures {
			captureStatus = cp.Status
			if conf.Reference == "" {
				conf.Reference = cp.CustomID
			}
		}
	}

	switch {
	case o.Status == "COMPLETED" && (captureStatus == "" || captureStatus == "COMPLETED"):
		conf.Status = payments.ChargeApproved
	case o.Status == "VOIDED" || captureStatus == "DECLINED" || captureStatus == "FAILED":
		conf.Status = payments.ChargeDeclined
	}
	return conf
}
