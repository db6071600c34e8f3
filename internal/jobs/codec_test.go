package jobs

import (
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/shopspring/decimal"
)

func TestEncodeDecode_OrderConfirmation(t *testing.T) {
	payload := OrderConfirmationPayload{
		OrderID:     "order-123",
		UserID:      "user-456",
		Total:       decimal.RequireFromString("30.00"),
		ItemCount:   1,
		RequestedAt: time.Now().UTC(),
	}

	b, err := EncodePayload(TypeOrderConfirmation, payload)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	j := job.New(job.CreateRequest{Type: string(TypeOrderConfirmation), Payload: b})

	decoded, err := DecodePayload(j)
	if err != nil {
		t.Fatalf("DecodePayload error: %v", err)
	}

	p, ok := decoded.(OrderConfirmationPayload)
	if !ok {
		t.Fatalf("expected OrderConfirmationPayload, got %T", decoded)
	}

	if p.OrderID != payload.OrderID || !p.Total.Equal(payload.Total) {
		t.Fatalf("round trip mismatch: got %+v", p)
	}
}

func TestEncodePayload_TypeMismatch(t *testing.T) {
	_, err := EncodePayload(TypeOrderConfirmation, struct{ OrderID string }{OrderID: "o1"})
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Fatalf("expected ErrPayloadTypeMismatch, got %v", err)
	}
}

func TestEncodePayload_UnknownType(t *testing.T) {
	_, err := EncodePayload(JobType("nope"), OrderConfirmationPayload{OrderID: "o", UserID: "u"})
	if !errors.Is(err, ErrInvalidJobType) {
		t.Fatalf("expected ErrInvalidJobType, got %v", err)
	}
}

func TestValidatePayload_RequiredIDs(t *testing.T) {
	err := ValidatePayload(TypeOrderConfirmation, OrderConfirmationPayload{OrderID: "o1"})
	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload, got %v", err)
	}
}

func TestDecodePayload_EmptyPayload(t *testing.T) {
	_, err := DecodePayload(job.Job{Type: string(TypeOrderConfirmation)})
	if !errors.Is(err, ErrInvalidJobPayload) {
		t.Fatalf("expected ErrInvalidJobPayload, got %v", err)
	}
}
