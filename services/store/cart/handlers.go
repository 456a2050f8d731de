package cart

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
	"github.com/matheusmosca/supplements-store/pkg/auth"
	"github.com/matheusmosca/supplements-store/services/store/catalog"
)

// AddItemRequest é o payload de POST /cart/items
type AddItemRequest struct {
	Category  catalog.Category `json:"category" binding:"required"`
	ProductID int64            `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity"`
}

// UpdateQuantityRequest é o payload de PATCH /cart/items/:id
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

var errInvalidBody = apperr.Validation("invalid_body", "invalid request body")

// CartHandler contém os handlers HTTP do carrinho
type CartHandler struct {
	useCase *CartUseCase
	tracer  trace.Tracer
}

// NewCartHandler cria uma nova instância de CartHandler
func NewCartHandler(useCase *CartUseCase, tracer trace.Tracer) *CartHandler {
	return &CartHandler{
		useCase: useCase,
		tracer:  tracer,
	}
}

// Register registra as rotas do carrinho; exige o middleware de autenticação
func (h *CartHandler) Register(r gin.IRouter) {
	r.GET("/cart", h.View)
	r.GET("/cart/summary", h.Summary)
	r.POST("/cart/items", h.AddItem)
	r.PATCH("/cart/items/:id", h.UpdateQuantity)
	r.DELETE("/cart/items/:id", h.RemoveItem)
	r.DELETE("/cart", h.Clear)
}

func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.FromContext(c)
	if !ok {
		apperr.Render(c, auth.ErrUnauthenticated)
	}
	return p, ok
}

func itemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		apperr.Render(c, apperr.Validation("invalid_item_id", "item id must be a positive integer").With("item_id", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (h *CartHandler) View(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	view, err := h.useCase.View(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) Summary(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	summary, err := h.useCase.Summary(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// AddItem adiciona um produto ao carrinho
func (h *CartHandler) AddItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, errInvalidBody.WithCause(err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ref := catalog.ProductRef{Category: req.Category, ID: req.ProductID}

	ctx, span := h.tracer.Start(c.Request.Context(), "cart_add_item")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", p.UserID),
		attribute.String("product", ref.String()),
		attribute.Int("quantity", req.Quantity),
	)

	view, err := h.useCase.AddItem(ctx, p.UserID, ref, req.Quantity)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// UpdateQuantity troca a quantidade de um item
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := itemID(c)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Render(c, errInvalidBody.WithCause(err))
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "cart_update_quantity")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user_id", p.UserID),
		attribute.Int64("item_id", id),
		attribute.Int("quantity", *req.Quantity),
	)

	view, err := h.useCase.UpdateQuantity(ctx, p.UserID, id, *req.Quantity)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := itemID(c)
	if !ok {
		return
	}

	if err := h.useCase.RemoveItem(c.Request.Context(), p.UserID, id); err != nil {
		apperr.Render(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) Clear(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	removed, err := h.useCase.Clear(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Render(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
