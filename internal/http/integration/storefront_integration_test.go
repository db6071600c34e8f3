package integration_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
	"github.com/geocoder89/storefront/internal/cache"
	"github.com/geocoder89/storefront/internal/catalog"
	"github.com/geocoder89/storefront/internal/db"
	"github.com/geocoder89/storefront/internal/domain/order"
	"github.com/geocoder89/storefront/internal/domain/product"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/orders"
	"github.com/geocoder89/storefront/internal/queue/worker"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/geocoder89/storefront/internal/security"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type stack struct {
	pool       *pgxpool.Pool
	users      *postgres.UsersRepo
	products   *postgres.ProductsRepo
	orders     *postgres.OrdersRepo
	jobs       *postgres.JobsRepo
	deliveries *postgres.NotificationDeliveriesRepo
	gateway    *auth.Gateway
	svc        *orders.Service
}

func setupStack(t *testing.T) *stack {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn, 10)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema: %v", err)
	}

	_, err = pool.Exec(ctx, `TRUNCATE notification_deliveries, jobs, order_items, orders, refresh_tokens, products, users CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &stack{pool: pool}
	s.users = postgres.NewUsersRepo(pool, nil)
	s.products = postgres.NewProductsRepo(pool, nil)
	s.jobs = postgres.NewJobsRepo(pool, nil)
	s.orders = postgres.NewOrdersRepo(pool, nil, s.jobs)
	s.deliveries = postgres.NewNotificationDeliveriesRepo(pool, nil)
	gw, err := auth.NewGateway(s.users, postgres.NewSessionsRepo(pool, nil),
		security.NewHasher(bcrypt.MinCost), auth.NewManager("integration-secret", time.Hour, 24*time.Hour))
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	s.gateway = gw

	cat := catalog.NewService(s.products, cache.NewLocal(cache.New(time.Minute)), nil, log)
	s.svc = orders.NewService(s.orders, cat, cache.NewGuard(cache.New(time.Minute)), nil, log, orders.Config{Timeout: 5 * time.Second})

	return s
}

func (s *stack) addProduct(t *testing.T, name, price string, stock int) product.Product {
	t.Helper()
	p := product.New(product.NewProductInput{
		Name: name, Price: decimal.RequireFromString(price), Category: "Test", Stock: stock,
	})
	if err := s.products.InsertProducts(context.Background(), []product.Product{p}); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return p
}

func (s *stack) customer(t *testing.T, email string) string {
	t.Helper()
	res, err := s.gateway.Register(context.Background(), email, "password123", "Test Customer")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res.User.ID
}

func (s *stack) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := s.products.GetProduct(context.Background(), id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.Stock
}

func TestPostgres_AuthRoundTrip(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	reg, err := s.gateway.Register(ctx, "Ada@Example.com", "password123", "Ada")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := s.gateway.Register(ctx, "Ada@Example.com", "password123", "Ada"); !errors.Is(err, auth.ErrDuplicateUser) {
		t.Fatalf("duplicate register err = %v", err)
	}

	// email uniqueness is case-sensitive as stored
	if _, err := s.gateway.Register(ctx, "ada@example.com", "password123", "Ada"); err != nil {
		t.Fatalf("different case should register: %v", err)
	}

	login, err := s.gateway.Login(ctx, "Ada@Example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := s.gateway.Authenticate("Bearer " + login.AccessToken)
	if err != nil || claims.UserID != reg.User.ID {
		t.Fatalf("authenticate: %v %+v", err, claims)
	}

	rotated, err := s.gateway.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := s.gateway.Refresh(ctx, login.RefreshToken); !errors.Is(err, auth.ErrInvalidRefresh) {
		t.Fatalf("reused refresh err = %v", err)
	}
	if err := s.gateway.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
}

func TestPostgres_PlaceOrderCommitsAtomically(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	uid := s.customer(t, "buyer@example.com")

	p := s.addProduct(t, "Widget", "10.00", 5)

	o, err := s.svc.PlaceOrder(ctx, orders.PlaceInput{
		UserID: uid,
		Items:  []order.ItemRequest{{ProductID: p.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !o.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("total = %s", o.Total)
	}
	if got := s.stock(t, p.ID); got != 2 {
		t.Fatalf("stock = %d, want 2", got)
	}

	_, err = s.svc.PlaceOrder(ctx, orders.PlaceInput{
		UserID: uid,
		Items:  []order.ItemRequest{{ProductID: p.ID, Quantity: 3}},
	})
	var short *order.InsufficientStockError
	if !errors.As(err, &short) || short.Available != 2 || short.Requested != 3 {
		t.Fatalf("err = %v", err)
	}

	// a missing product later in the list rolls back everything before it
	_, err = s.svc.PlaceOrder(ctx, orders.PlaceInput{
		UserID: uid,
		Items: []order.ItemRequest{
			{ProductID: p.ID, Quantity: 1},
			{ProductID: "00000000-0000-0000-0000-0000000000aa", Quantity: 1},
		},
	})
	if !errors.Is(err, order.ErrProductNotFound) {
		t.Fatalf("err = %v", err)
	}
	if got := s.stock(t, p.ID); got != 2 {
		t.Fatalf("stock changed on failed order: %d", got)
	}

	list, err := s.svc.ListOrders(ctx, uid)
	if err != nil || len(list) != 1 {
		t.Fatalf("orders = %d err=%v", len(list), err)
	}
	if list[0].Items[0].Product == nil || list[0].Items[0].Product.Name != "Widget" {
		t.Fatalf("line item not expanded: %+v", list[0].Items[0])
	}
}

func TestPostgres_ConcurrentOrdersNeverOversell(t *testing.T) {
	s := setupStack(t)
	uid := s.customer(t, "crowd@example.com")

	const n = 20
	p := s.addProduct(t, "Limited", "1.00", n-1)

	var (
		wg        sync.WaitGroup
		ok, short atomic.Int32
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.PlaceOrder(context.Background(), orders.PlaceInput{
				UserID: uid,
				Items:  []order.ItemRequest{{ProductID: p.ID, Quantity: 1}},
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, order.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != n-1 || short.Load() != 1 {
		t.Fatalf("ok=%d short=%d", ok.Load(), short.Load())
	}
	if got := s.stock(t, p.ID); got != 0 {
		t.Fatalf("final stock = %d", got)
	}
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) SendOrderConfirmation(context.Context, notifications.SendOrderConfirmationInput) error {
	c.n.Add(1)
	return nil
}

func TestPostgres_ConfirmationPipeline(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	uid := s.customer(t, "notify@example.com")
	p := s.addProduct(t, "Gadget", "5.00", 3)

	if _, err := s.svc.PlaceOrder(ctx, orders.PlaceInput{
		UserID: uid,
		Items:  []order.ItemRequest{{ProductID: p.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("place: %v", err)
	}

	notifier := &countingNotifier{}
	w := worker.New(worker.Config{WorkerID: "it-worker"}, s.jobs, s.deliveries, s.users, notifier, nil, nil)

	processed, err := w.ProcessOne(ctx)
	if err != nil || !processed {
		t.Fatalf("process: processed=%v err=%v", processed, err)
	}
	if notifier.n.Load() != 1 {
		t.Fatalf("sent = %d", notifier.n.Load())
	}

	processed, err = w.ProcessOne(ctx)
	if err != nil || processed {
		t.Fatalf("queue should be drained: processed=%v err=%v", processed, err)
	}

	var status string
	if err := s.pool.QueryRow(ctx, `SELECT status FROM notification_deliveries WHERE kind = 'order.confirmation'`).Scan(&status); err != nil {
		t.Fatalf("delivery row: %v", err)
	}
	if status != "sent" {
		t.Fatalf("delivery status = %q", status)
	}

}
