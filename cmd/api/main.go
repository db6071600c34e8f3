package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/breaker"
	"github.com/geocoder89/storefront/internal/cache"
	"github.com/geocoder89/storefront/internal/catalog"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/db"
	httpx "github.com/geocoder89/storefront/internal/http"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/orders"
	"github.com/geocoder89/storefront/internal/payment"
	"github.com/geocoder89/storefront/internal/queue/worker"
	"github.com/geocoder89/storefront/internal/redisclient"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/geocoder89/storefront/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// backend bundles one storage driver behind the interfaces the services need.
type backend struct {
	users    auth.UserStore
	sessions auth.SessionStore
	products interface {
		catalog.ProductStore
		catalog.Seeder
	}
	orders orders.Store
	jobs   handlers.AdminJobsRepo
	ping   handlers.Pinger
	close  func()

	// set only for the memory driver, which has no separate worker process
	inline *memory.Store
}

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "storefront-api",
			Environment: cfg.Env,
			Endpoint:    cfg.OTELEndpoint,
			SampleRatio: cfg.OTELSampleRatio,
		})
		if err != nil {
			log.Warn("tracing disabled", "err", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	be, err := openBackend(ctx, cfg, prom)
	if err != nil {
		log.Error("storage init failed", "driver", cfg.StorageDriver, "err", err)
		os.Exit(1)
	}
	defer be.close()

	hasher := security.NewHasher(cfg.BcryptCost)

	if created, err := db.EnsureAdminUser(ctx, be.users, hasher, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
	} else if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	if cfg.SeedCatalog || cfg.StorageDriver == "memory" {
		seeded, err := catalog.SeedIfEmpty(ctx, be.products)
		if err != nil {
			log.Error("catalog seed failed", "err", err)
		} else if seeded {
			log.Info("catalog seeded", "products", len(catalog.DefaultProducts()))
		}
	}

	catalogCache, idem, closeRedis := buildCaches(ctx, cfg, log)
	defer closeRedis()

	gateway, err := auth.NewGateway(be.users, be.sessions, hasher, auth.NewManager(cfg.SigningSecret(), cfg.AccessTTL(), cfg.RefreshTTL()))
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	catalogSvc := catalog.NewService(be.products, catalogCache, prom, log)
	ordersSvc := orders.NewService(be.orders, catalogSvc, idem, prom, log, orders.Config{Timeout: cfg.OrderTimeout})

	payments := payment.NewClient(payment.Config{
		BaseURL:     cfg.PaymentBaseURL,
		SecretKey:   cfg.PaymentSecretKey,
		CallbackURL: cfg.PaymentCallbackURL,
		ReturnURL:   cfg.PaymentReturnURL,
		Currency:    cfg.PaymentCurrency,
	})
	if !payments.Enabled() {
		log.Warn("PAYMENT_SECRET_KEY not set; payment endpoints answer 503")
	}

	router := httpx.NewRouter(log, cfg, httpx.Deps{
		Auth:     gateway,
		Authn:    gateway,
		Catalog:  catalogSvc,
		Orders:   ordersSvc,
		Payments: payments,
		Jobs:     be.jobs,
		DB:       be.ping,
		Prom:     prom,
		Gatherer: reg,
	})
	srv := httpx.NewServer(fmt.Sprintf(":%d", cfg.Port), router)

	if be.inline != nil {
		w := worker.New(worker.Config{
			PollInterval: time.Duration(cfg.WorkerPollMillis) * time.Millisecond,
			WorkerID:     "api-inline",
			Concurrency:  1,
		}, be.inline, be.inline, be.inline,
			notifications.NewProtectedNotifier(notifications.NewLogNotifier(log), breaker.Config{}),
			prom, log)

		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("inline worker stopped", "err", err)
			}
		}()
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageDriver)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}
	log.Info("shutdown complete")
}

func openBackend(ctx context.Context, cfg config.Config, prom *observability.Prom) (*backend, error) {
	if cfg.StorageDriver == "memory" {
		st := memory.New()
		return &backend{
			users:    st,
			sessions: st,
			products: st,
			orders:   st,
			jobs:     st,
			ping:     st,
			close:    func() {},
			inline:   st,
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, int32(cfg.DBMaxConns))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	jobsRepo := postgres.NewJobsRepo(pool, prom)

	return &backend{
		users:    postgres.NewUsersRepo(pool, prom),
		sessions: postgres.NewSessionsRepo(pool, prom),
		products: postgres.NewProductsRepo(pool, prom),
		orders:   postgres.NewOrdersRepo(pool, prom, jobsRepo),
		jobs:     jobsRepo,
		ping:     pool,
		close:    pool.Close,
	}, nil
}

// buildCaches prefers Redis and falls back to in-process caches when REDIS_ADDR
// is empty or unreachable at startup.
func buildCaches(ctx context.Context, cfg config.Config, log *slog.Logger) (catalog.Cache, orders.IdempotencyGuard, func()) {
	local := func() (catalog.Cache, orders.IdempotencyGuard, func()) {
		return cache.NewLocal(cache.New(cfg.CatalogCacheTTL)), cache.NewGuard(cache.New(24 * time.Hour)), func() {}
	}

	if cfg.RedisAddr == "" {
		return local()
	}

	rc := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable, using in-process caches", "addr", cfg.RedisAddr, "err", err)
		_ = rc.Close()
		return local()
	}

	log.Info("redis connected", "addr", cfg.RedisAddr)
	return redisclient.NewCatalogCache(rc, cfg.CatalogCacheTTL, log), redisclient.NewIdempotencyGuard(rc), func() { _ = rc.Close() }
}
