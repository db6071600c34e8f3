package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/utils"
	"github.com/gin-gonic/gin"
)

type CatalogService interface {
	ListProducts(ctx context.Context, filter product.ListFilter) ([]product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
}

type ProductsHandler struct {
	svc CatalogService
	log *slog.Logger
}

func NewProductsHandler(svc CatalogService, log *slog.Logger) *ProductsHandler {
	return &ProductsHandler{svc: svc, log: log}
}

// GET /api/products?category=Electronics&search=USB
func (h *ProductsHandler) List(ctx *gin.Context) {
	filter := product.ListFilter{
		Category: optionalQuery(ctx, "category"),
		Search:   optionalQuery(ctx, "search"),
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	items, err := h.svc.ListProducts(cctx, filter)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Failed to fetch products")
		return
	}

	if items == nil {
		items = []product.Product{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

// GET /api/products/:id
func (h *ProductsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	// not a uuid means it cannot exist
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Product not found")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	p, err := h.svc.GetProduct(cctx, id)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Failed to fetch product")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

// optionalQuery treats an absent or blank parameter as no filter.
func optionalQuery(ctx *gin.Context, name string) *string {
	v := ctx.Query(name)
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
