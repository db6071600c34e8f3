package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/payment"
	"github.com/geocoder89/storefront/internal/utils"
	"github.com/gin-gonic/gin"
)

const txRefPrefix = "TX-"

type PaymentGateway interface {
	Enabled() bool
	Initialize(ctx context.Context, in payment.InitializeRequest) (payment.InitializeResult, error)
	Verify(ctx context.Context, txRef string) (payment.VerifyResult, error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, userID, orderID string) (order.Order, error)
}

type ProfileReader interface {
	Me(ctx context.Context, userID string) (user.Summary, error)
}

type PaymentHandler struct {
	gateway  PaymentGateway
	orders   OrderReader
	profiles ProfileReader
	log      *slog.Logger
	now      func() time.Time
}

func NewPaymentHandler(gateway PaymentGateway, orders OrderReader, profiles ProfileReader, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		gateway:  gateway,
		orders:   orders,
		profiles: profiles,
		log:      log,
		now:      time.Now,
	}
}

type InitializePaymentRequest struct {
	OrderID   string `json:"orderId" binding:"required,uuid"`
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
	Phone     string `json:"phone" binding:"max=32"`
}

type VerifyPaymentRequest struct {
	TxRef string `json:"txRef" binding:"required,max=128"`
}

// POST /api/payment
// Amount and email come from the caller's own order and profile, never from the body.
func (h *PaymentHandler) Initialize(ctx *gin.Context) {
	if !h.gateway.Enabled() {
		RespondServiceError(ctx, h.log, payment.ErrDisabled, "")
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "missing_token", "Missing bearer token")
		return
	}

	var req InitializePaymentRequest
	if !BindJSON(ctx, &req) {
		return
	}
	ctx.Set(middlewares.CtxOrderID, req.OrderID)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	o, err := h.orders.GetOrder(cctx, userID, req.OrderID)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Payment initialization failed")
		return
	}

	profile, err := h.profiles.Me(cctx, userID)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Payment initialization failed")
		return
	}

	first, last := req.FirstName, req.LastName
	if first == "" && last == "" {
		first, last = splitName(profile.Name)
	}

	res, err := h.gateway.Initialize(cctx, payment.InitializeRequest{
		TxRef:     buildTxRef(o.ID, h.now()),
		Amount:    o.Total,
		Email:     profile.Email,
		FirstName: first,
		LastName:  last,
		Phone:     req.Phone,
	})
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Payment initialization failed")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"txRef":       res.TxRef,
		"checkoutUrl": res.CheckoutURL,
		"payment_url": res.CheckoutURL,
	})
}

// POST /api/payment/verify
func (h *PaymentHandler) Verify(ctx *gin.Context) {
	if !h.gateway.Enabled() {
		RespondServiceError(ctx, h.log, payment.ErrDisabled, "")
		return
	}

	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "missing_token", "Missing bearer token")
		return
	}

	var req VerifyPaymentRequest
	if !BindJSON(ctx, &req) {
		return
	}

	orderID, ok := orderIDFromTxRef(req.TxRef)
	if !ok {
		RespondBadRequest(ctx, "txRef is not a storefront transaction reference", nil)
		return
	}
	ctx.Set(middlewares.CtxOrderID, orderID)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	// only the order's owner may verify its payment
	if _, err := h.orders.GetOrder(cctx, userID, orderID); err != nil {
		RespondServiceError(ctx, h.log, err, "Payment verification failed")
		return
	}

	res, err := h.gateway.Verify(cctx, req.TxRef)
	if err != nil {
		RespondServiceError(ctx, h.log, err, "Payment verification failed")
		return
	}

	message := "Payment failed"
	if res.Paid() {
		message = "Payment successful"
	}

	ctx.JSON(http.StatusOK, gin.H{
		"txRef":    res.TxRef,
		"status":   res.Status,
		"paid":     res.Paid(),
		"amount":   res.Amount,
		"currency": res.Currency,
		"message":  message,
	})
}

func buildTxRef(orderID string, now time.Time) string {
	return txRefPrefix + orderID + "-" + strconv.FormatInt(now.Unix(), 10)
}

// orderIDFromTxRef reverses buildTxRef: TX-<uuid>-<unix>.
func orderIDFromTxRef(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, txRefPrefix)
	if !ok || len(rest) < 38 {
		return "", false
	}

	id, ts := rest[:36], rest[36:]
	if !utils.IsUUID(id) || ts[0] != '-' {
		return "", false
	}
	if _, err := strconv.ParseInt(ts[1:], 10, 64); err != nil {
		return "", false
	}
	return id, true
}

func splitName(full string) (string, string) {
	first, last, _ := strings.Cut(strings.TrimSpace(full), " ")
	return first, strings.TrimSpace(last)
}
