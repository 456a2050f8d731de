package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
)

// CaptureRequest é o payload da captura direta
type CaptureRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// ConfirmRequest é o payload da volta do cliente depois do checkout externo
type ConfirmRequest struct {
	Status    string `json:"status" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
}

// WebhookRequest é a notificação enviada pelo processador
type WebhookRequest struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

var errInvalidBody = apperr.Validation("invalid_body", "invalid request body")

// PaymentHandler contém os handlers HTTP de pagamento
type PaymentHandler struct {
	adapter *Adapter
	tracer  trace.Tracer
}

// NewPaymentHandler cria uma nova instância de PaymentHandler
func NewPaymentHandler(adapter *Adapter, tracer trace.Tracer) *PaymentHandler {
	return &PaymentHandler{
		adapter: adapter,
		tracer:  tracer,
	}
}

// Register registra as rotas autenticadas
func (h *PaymentHandler) Register(r gin.IRouter) {
	r.POST("/payments/paypal/orders", h.createCharge(ProviderPayPal))
	r.POST("/payments/paypal/capture", h.Capture)
	r.POST("/payments/mercadopago/preferences", h.createCharge(ProviderMercadoPago))
	r.POST("/payments/mercadopago/confirm", h.Confirm)
}

// RegisterWebhooks registra as rotas sem token de usuário
func (h *PaymentHandler) RegisterWebhooks(r gin.IRouter) {
	r.POST("/payments/mercadopago/webhook", h.Webhook)
}

func (h *PaymentHandler) createCharge(provider Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := auth.FromContext(c)
		if !ok {
			apperr.Render(c, auth.ErrUnauthenticated)
			return
		}

		ctx, span := h.tracer.Start(c.Request.Context(), "create_charge")
		defer span.End()
		span.SetAttributes(
			attribute.String("provider", string(provider)),
			attribute.Int64("user_id", p.UserID),
		)

		intent, ref, err := h.adapter.CreateCharge(ctx, p, provider)
		if err != nil {
			apperr.Render(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"intent_id":    intent.ID,
			"charge_id":    ref.ID,
			"redirect_url": ref.RedirectURL,
			"amount":       intent.ChargeAmount.String(),
			"currency":     intent.Currency,
			"store_amount": intent.StoreAmount,
		})
	}
}

// Capture é a captura direta (processador A)
func (h *PaymentHandler) Capture(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apperr.Render(c, auth.ErrUnauthenticated)
		return
	}

	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, errInvalidBody.WithCause(err))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "capture_payment")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", req.OrderID), attribute.Int64("user_id", p.UserID))

	result, err := h.adapter.Capture(ctx, p, ProviderPayPal, req.OrderID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(statusFor(result), result)
}

// Confirm é a confirmação vinda do retorno do cliente (processador B)
func (h *PaymentHandler) Confirm(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apperr.Render(c, auth.ErrUnauthenticated)
		return
	}

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, errInvalidBody.WithCause(err))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "confirm_payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment_id", req.PaymentID),
		attribute.String("status", req.Status),
		attribute.Int64("user_id", p.UserID),
	)

	result, err := h.adapter.Confirm(ctx, ConfirmInput{
		Provider:   ProviderMercadoPago,
		PaymentID:  req.PaymentID,
		Status:     req.Status,
		CustomerID: p.UserID,
	})
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(statusFor(result), result)
}

// Webhook recebe notificações do processador B. Pagamentos ainda não aprovados
// respondem 200 para o processador não reenviar.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, errInvalidBody.WithCause(err))
		return
	}
	paymentID := req.Data.ID
	if paymentID == "" {
		paymentID = c.Query("data.id")
	}
	if (req.Type != "" && req.Type != "payment") || paymentID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "payment_webhook")
	defer span.End()
	span.SetAttributes(attribute.String("payment_id", paymentID))

	result, err := h.adapter.Notify(ctx, ProviderMercadoPago, paymentID)
	if errors.Is(err, ErrPaymentNotApproved) {
		logrus.WithField("payment_id", paymentID).Info("ℹ️ [WEBHOOK] payment not approved yet")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processed", "folio": result.Sale.Folio, "replayed": result.Replayed})
}

func statusFor(result *Result) int {
	if result.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}
