package checkout

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
)

// CheckoutHandler expõe o pagamento direto do carrinho
type CheckoutHandler struct {
	engine *Engine
}

// NewCheckoutHandler cria uma nova instância de CheckoutHandler
func NewCheckoutHandler(engine *Engine) *CheckoutHandler {
	return &CheckoutHandler{engine: engine}
}

func (h *CheckoutHandler) Register(r gin.IRouter) {
	r.POST("/cart/checkout", h.Checkout)
}

// Checkout converte o carrinho atual em venda
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apperr.Render(c, auth.ErrUnauthenticated)
		return
	}

	receipt, err := h.engine.CheckoutCart(c.Request.Context(), p)
	if err != nil {
		apperr.Render(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"folio":        receipt.Sale.Folio,
		"total":        receipt.Sale.Total,
		"date":         receipt.Sale.Date,
		"sale":         receipt.Sale,
		"notification": receipt.Notification,
	})
}
