package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
)

// LedgerHandler expõe o histórico de compras do cliente
type LedgerHandler struct {
	useCase *LedgerUseCase
}

// NewLedgerHandler cria uma nova instância de LedgerHandler
func NewLedgerHandler(useCase *LedgerUseCase) *LedgerHandler {
	return &LedgerHandler{useCase: useCase}
}

func (h *LedgerHandler) Register(r gin.IRouter) {
	r.GET("/sales", h.List)
	r.GET("/sales/:folio", h.Get)
}

func (h *LedgerHandler) List(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apperr.Render(c, auth.ErrUnauthenticated)
		return
	}

	sales, err := h.useCase.ListForCustomer(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *LedgerHandler) Get(c *gin.Context) {
	p, ok := auth.FromContext(c)
	if !ok {
		apperr.Render(c, auth.ErrUnauthenticated)
		return
	}

	folio, err := strconv.ParseInt(c.Param("folio"), 10, 64)
	if err != nil {
		apperr.Render(c, apperr.Validation("invalid_folio", "folio must be an integer").With("folio", c.Param("folio")))
		return
	}

	sale, err := h.useCase.GetForCustomer(c.Request.Context(), p.UserID, folio)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
