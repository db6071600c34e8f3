package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInitialize_SendsOrderAmountAndKey(t *testing.T) {
	var got initializeBody
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"success","message":"ok","data":{"checkout_url":"https://pay.example/c/1"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", ReturnURL: "https://shop.example/done"})

	res, err := c.Initialize(context.Background(), InitializeRequest{
		TxRef:  "TX-1",
		Amount: decimal.RequireFromString("430.68"),
		Email:  "ada@example.com",
	})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if res.CheckoutURL != "https://pay.example/c/1" {
		t.Fatalf("unexpected checkout url %q", res.CheckoutURL)
	}
	if auth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.Amount != "430.68" || got.Currency != "ETB" || got.TxRef != "TX-1" || got.ReturnURL != "https://shop.example/done" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/TX-9" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","message":"ok","data":{"status":"success","amount":"12.50","currency":"ETB","tx_ref":"TX-9"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk"})

	res, err := c.Verify(context.Background(), "TX-9")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Paid() || !res.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUpstreamFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":"failed","message":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk"})

	_, err := c.Verify(context.Background(), "TX-1")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestDisabledWithoutKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"})

	if c.Enabled() {
		t.Fatal("expected disabled")
	}
	if _, err := c.Initialize(context.Background(), InitializeRequest{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
