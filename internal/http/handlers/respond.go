package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/payment"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

// RespondServiceError maps domain errors onto the HTTP error envelope.
// Anything unrecognised is logged with the request id and answered with a
// generic 500 so storage details never reach the client.
func RespondServiceError(ctx *gin.Context, log *slog.Logger, err error, fallback string) {
	var (
		notFound *order.ProductNotFoundError
		short    *order.InsufficientStockError
	)

	switch {
	case errors.Is(err, auth.ErrDuplicateUser):
		RespondError(ctx, http.StatusBadRequest, "duplicate_user", "User already exists", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		RespondError(ctx, http.StatusBadRequest, "invalid_credentials", "Invalid credentials", nil)
	case errors.Is(err, auth.ErrMissingToken):
		RespondUnauthorized(ctx, "missing_token", "Missing bearer token")
	case errors.Is(err, auth.ErrInvalidToken):
		RespondError(ctx, http.StatusForbidden, "invalid_token", "Invalid or expired token", nil)
	case errors.Is(err, auth.ErrExpiredRefresh):
		RespondUnauthorized(ctx, "expired_refresh", "Refresh token expired")
	case errors.Is(err, auth.ErrInvalidRefresh):
		RespondUnauthorized(ctx, "invalid_refresh", "Invalid refresh token")

	case errors.As(err, &notFound):
		RespondError(ctx, http.StatusBadRequest, "product_not_found", "Product "+notFound.ProductID+" not found",
			gin.H{"productId": notFound.ProductID})
	case errors.As(err, &short):
		RespondError(ctx, http.StatusBadRequest, "insufficient_stock", "Insufficient stock for product "+short.ProductID, short)
	case errors.Is(err, order.ErrEmptyOrder):
		RespondError(ctx, http.StatusBadRequest, "empty_order", "Order must contain at least one item", nil)
	case errors.Is(err, order.ErrInvalidQuantity):
		RespondBadRequest(ctx, "Quantity must be a positive integer", nil)
	case errors.Is(err, order.ErrDuplicateRequest):
		RespondConflict(ctx, "duplicate_request", "An order with this Idempotency-Key is already being processed")
	case errors.Is(err, order.ErrTimeout):
		RespondError(ctx, http.StatusGatewayTimeout, "timeout", "Order placement timed out", nil)
	case errors.Is(err, order.ErrNotFound):
		RespondNotFound(ctx, "Order not found")
	case errors.Is(err, product.ErrNotFound):
		RespondNotFound(ctx, "Product not found")

	case errors.Is(err, payment.ErrDisabled):
		RespondError(ctx, http.StatusServiceUnavailable, "payment_disabled", "Payments are not configured", nil)
	case errors.Is(err, payment.ErrUpstream):
		logError(ctx, log, err)
		RespondError(ctx, http.StatusBadGateway, "payment_upstream_error", "Payment gateway request failed", nil)

	default:
		logError(ctx, log, err)
		RespondInternal(ctx, fallback)
	}
}

func logError(ctx *gin.Context, log *slog.Logger, err error) {
	if log == nil {
		log = slog.Default()
	}
	log.ErrorContext(ctx.Request.Context(), "request failed",
		"err", err,
		"route", ctx.FullPath(),
		"request_id", requestIDFrom(ctx),
	)
}
