package catalog

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/supplements-store/pkg/apperr"
)

// CatalogHandler contém os handlers HTTP de leitura do catálogo
type CatalogHandler struct {
	useCase *CatalogUseCase
	tracer  trace.Tracer
}

// NewCatalogHandler cria uma nova instância de CatalogHandler
func NewCatalogHandler(useCase *CatalogUseCase, tracer trace.Tracer) *CatalogHandler {
	return &CatalogHandler{useCase: useCase, tracer: tracer}
}

// Register registra as rotas do catálogo
func (h *CatalogHandler) Register(r gin.IRouter) {
	r.GET("/products/:category", h.ListProducts)
	r.GET("/products/:category/:id", h.GetProduct)
}

// ListProducts lista os produtos de uma categoria
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	category, err := ParseCategory(c.Param("category"))
	if err != nil {
		apperr.Render(c, err)
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "list_products")
	defer span.End()
	span.SetAttributes(attribute.String("category", string(category)))

	products, err := h.useCase.ListByCategory(ctx, category)
	if err != nil {
		apperr.Render(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetProduct devolve um produto
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	category, err := ParseCategory(c.Param("category"))
	if err != nil {
		apperr.Render(c, err)
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apperr.Render(c, ErrInvalidProductRef.With("product_id", c.Param("id")))
		return
	}

	ref := ProductRef{Category: category, ID: id}
	ctx, span := h.tracer.Start(c.Request.Context(), "get_product")
	defer span.End()
	span.SetAttributes(attribute.String("product", ref.String()))

	product, err := h.useCase.GetProduct(ctx, ref)
	if err != nil {
		apperr.Render(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}
