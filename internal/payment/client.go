package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/geocoder89/storefront/internal/breaker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrDisabled = errors.New("payment gateway not configured")
	ErrUpstream = errors.New("payment gateway error")
)

type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	ReturnURL   string
	Currency    string
	Timeout     time.Duration
}

type InitializeRequest struct {
	TxRef     string
	Amount    decimal.Decimal
	Currency  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

type InitializeResult struct {
	TxRef       string `json:"txRef"`
	CheckoutURL string `json:"checkoutUrl"`
}

type VerifyResult struct {
	TxRef    string          `json:"txRef"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (r VerifyResult) Paid() bool {
	return r.Status == "success"
}

// Client talks to a Chapa-compatible gateway. Calls go through a circuit
// breaker so a gateway outage fails fast instead of tying up handlers.
type Client struct {
	cfg  Config
	http *http.Client
	cb   *breaker.Breaker
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "ETB"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: breaker.New(breaker.Config{
			Timeout:          cfg.Timeout,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		}),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.cfg.SecretKey != ""
}

type initializeBody struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	TxRef       string `json:"tx_ref"`
	CallbackURL string `json:"callback_url,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (InitializeResult, error) {
	if !c.Enabled() {
		return InitializeResult{}, ErrDisabled
	}

	currency := in.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}

	body := initializeBody{
		Amount:      in.Amount.StringFixed(2),
		Currency:    currency,
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		PhoneNumber: in.Phone,
		TxRef:       in.TxRef,
		CallbackURL: c.cfg.CallbackURL,
		ReturnURL:   c.cfg.ReturnURL,
	}

	var data struct {
		CheckoutURL string `json:"checkout_url"`
	}

	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return InitializeResult{}, err
	}
	if data.CheckoutURL == "" {
		return InitializeResult{}, fmt.Errorf("%w: missing checkout_url", ErrUpstream)
	}

	return InitializeResult{TxRef: in.TxRef, CheckoutURL: data.CheckoutURL}, nil
}

func (c *Client) Verify(ctx context.Context, txRef string) (VerifyResult, error) {
	if !c.Enabled() {
		return VerifyResult{}, ErrDisabled
	}

	var data struct {
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
		TxRef    string          `json:"tx_ref"`
	}

	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(txRef), nil, &data); err != nil {
		return VerifyResult{}, err
	}

	ref := data.TxRef
	if ref == "" {
		ref = txRef
	}
	return VerifyResult{TxRef: ref, Status: data.Status, Amount: data.Amount, Currency: data.Currency}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	err := c.cb.Do(ctx, func(ctx context.Context) error {
		var reader io.Reader
		if in != nil {
			b, err := json.Marshal(in)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200))
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode response: %v", err)
		}
		if env.Status != "success" {
			return fmt.Errorf("gateway status %q: %s", env.Status, truncate(env.Message, 200))
		}
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("decode data: %v", err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
