package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/orders"
	"github.com/geocoder89/storefront/internal/utils"
	"github.com/gin-gonic/gin"
)

const idempotencyHeader = "Idempotency-Key"

type OrderService interface {
	PlaceOrder(ctx context.Context, in orders.PlaceInput) (order.Order, error)
	ListOrders(ctx context.Context, userID string) ([]order.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (order.Order, error)
}

type OrdersHandler struct {
	svc OrderService
	log *slog.Logger
}

func NewOrdersHandler(svc OrderService, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{svc: svc, log: log}
}

// POST /api/orders
func (h *OrdersHandler) Create(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "missing_token", "Missing bearer token")
		return
	}

	var req order.CreateOrderRequest
	if !BindJSON(ctx, &req) {
		return
	}

	key := ctx.GetHeader(idempotencyHeader)
	if len(key) > 255 {
		RespondBadRequest(ctx, idempotencyHeader+" must be at most 255 characters", nil)
		return
	}

	// the service applies its own deadline; this only detaches from gin's writer
	o, err := h.svc.PlaceOrder(ctx.Request.Context(), orders.PlaceInput{
		UserID:         userID,
		Items:          req.Items,
		IdempotencyKey: key,
		RequestID:      requestIDFrom(ctx),
	})
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Failed to create order")
		return
	}

	ctx.Set(middlewares.CtxOrderID, o.ID)
	ctx.JSON(http.StatusOK, o)
}

// GET /api/orders
func (h *OrdersHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "missing_token", "Missing bearer token")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	items, err := h.svc.ListOrders(cctx, userID)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Failed to fetch orders")
		return
	}

	if items == nil {
		items = []order.Order{}
	}

	ctx.JSON(http.StatusOK, items)
}

// GET /api/orders/:id
func (h *OrdersHandler) Get(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "missing_token", "Missing bearer token")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Order not found")
		return
	}
	ctx.Set(middlewares.CtxOrderID, id)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	o, err := h.svc.GetOrder(cctx, userID, id)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Failed to fetch order")
		return
	}

	ctx.JSON(http.StatusOK, o)
}
