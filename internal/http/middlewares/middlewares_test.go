package middlewares

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/actorctx"
	"github.com/geocoder89/storefront/internal/auth"
	"github.com/gin-gonic/gin"
)

type fakeAuthenticator struct {
	claims *auth.Claims
	err    error
}

func (f fakeAuthenticator) Authenticate(string) (*auth.Claims, error) {
	return f.claims, f.err
}

func newAuthRouter(authn Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)

	m := NewAuthMiddleware(authn)
	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		id, _ := UserIDFromContext(c)
		fromCtx, _ := actorctx.UserIDFrom(c.Request.Context())
		c.String(http.StatusOK, id+"|"+fromCtx)
	})
	r.GET("/admin", m.RequireAuth(), m.RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name   string
		authn  fakeAuthenticator
		status int
		code   string
	}{
		{"missing token", fakeAuthenticator{err: auth.ErrMissingToken}, http.StatusUnauthorized, "missing_token"},
		{"invalid token", fakeAuthenticator{err: fmt.Errorf("%w: bad sig", auth.ErrInvalidToken)}, http.StatusForbidden, "invalid_token"},
		{"valid", fakeAuthenticator{claims: &auth.Claims{UserID: "u-1", Role: "customer"}}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newAuthRouter(tt.authn).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tt.status, w.Body.String())
			}
			if tt.code != "" && !strings.Contains(w.Body.String(), `"code":"`+tt.code+`"`) {
				t.Fatalf("body %s missing code %s", w.Body.String(), tt.code)
			}
			if tt.code == "" && w.Body.String() != "u-1|u-1" {
				t.Fatalf("identity not propagated: %s", w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	customer := newAuthRouter(fakeAuthenticator{claims: &auth.Claims{UserID: "u-1", Role: "customer"}})
	w := httptest.NewRecorder()
	customer.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("customer got %d", w.Code)
	}

	admin := newAuthRouter(fakeAuthenticator{claims: &auth.Claims{UserID: "u-2", Role: "admin"}})
	w = httptest.NewRecorder()
	admin.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("admin got %d", w.Code)
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("k"); !ok {
			t.Fatalf("request %d should pass", i)
		}
	}

	ok, retry := rl.Allow("k")
	if ok || retry != time.Minute {
		t.Fatalf("third request: ok=%v retry=%v", ok, retry)
	}

	if ok, _ := rl.Allow("other"); !ok {
		t.Fatalf("keys must be independent")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _ := rl.Allow("k"); !ok {
		t.Fatalf("window should have reset")
	}
}

func TestRateLimiter_MiddlewareSetsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(1, time.Minute)
	r := gin.New()
	r.Use(rl.Middleware(KeyByIP))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestRequireJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequireJSON())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("form body: %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("empty body: %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("json body: %d", w.Code)
	}
}

func TestRequestID_EchoesOrGenerates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(CtxRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc" || w.Header().Get("X-Request-Id") != "abc" {
		t.Fatalf("request id not echoed: %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Body.String()) != 36 {
		t.Fatalf("expected generated uuid, got %q", w.Body.String())
	}
}

func TestMaxBodyBytes_RejectsDeclaredOversizeBody(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reached := false
	r := gin.New()
	r.POST("/api/orders", MaxBodyBytes(16), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[{"productId":"x","quantity":1}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge || !strings.Contains(w.Body.String(), "payload_too_large") {
		t.Fatalf("expected 413 payload_too_large, got %d %s", w.Code, w.Body.String())
	}
	if reached {
		t.Fatal("handler must not run for an oversize body")
	}
}
