package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth     handlers.AuthService
	Authn    middlewares.Authenticator
	Catalog  handlers.CatalogService
	Orders   handlers.OrderService
	Payments handlers.PaymentGateway
	Jobs     handlers.AdminJobsRepo
	DB       handlers.Pinger

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("storefront-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	health := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	authMw := middlewares.NewAuthMiddleware(deps.Authn)

	authLimiter := middlewares.NewRateLimiter(20, time.Minute)
	writeLimiter := middlewares.NewRateLimiter(60, time.Minute)

	api := r.Group("/api")
	api.Use(middlewares.RequireJSON())
	api.Use(middlewares.MaxBodyBytes(1 << 20))

	authH := handlers.NewAuthHandler(deps.Auth, log, cfg.Env == "prod")
	authGroup := api.Group("/auth")
	authGroup.Use(authLimiter.Middleware(middlewares.KeyByIP))
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/refresh", authH.Refresh)
		authGroup.POST("/logout", authH.Logout)
		authGroup.GET("/me", authMw.RequireAuth(), authH.Me)
	}

	productsH := handlers.NewProductsHandler(deps.Catalog, log)
	api.GET("/products", productsH.List)
	api.GET("/products/:id", productsH.Get)

	ordersH := handlers.NewOrdersHandler(deps.Orders, log)
	ordersGroup := api.Group("/orders", authMw.RequireAuth())
	{
		ordersGroup.POST("", writeLimiter.Middleware(middlewares.KeyByUserOrIP), ordersH.Create)
		ordersGroup.GET("", ordersH.List)
		ordersGroup.GET("/:id", ordersH.Get)
	}

	if deps.Payments != nil {
		payH := handlers.NewPaymentHandler(deps.Payments, deps.Orders, deps.Auth, log)
		payGroup := api.Group("/payment", authMw.RequireAuth(), writeLimiter.Middleware(middlewares.KeyByUserOrIP))
		{
			payGroup.POST("", payH.Initialize)
			payGroup.POST("/verify", payH.Verify)
		}
	}

	if deps.Jobs != nil {
		jobsH := handlers.NewAdminJobsHandler(deps.Jobs, log)
		admin := api.Group("/admin", authMw.RequireAuth(), authMw.RequireRole(user.RoleAdmin))
		{
			admin.GET("/jobs", jobsH.List)
			admin.GET("/jobs/:id", jobsH.Get)
			admin.POST("/jobs/:id/retry", jobsH.Retry)
			admin.POST("/jobs/reprocess-failed", jobsH.ReprocessFailed)
		}
	}

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Route not found")
	})

	return r
}

// NewServer applies the timeouts used by both binaries.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
