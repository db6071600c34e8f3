package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// DeliveryLedger records per-order sends so a redelivered job cannot notify twice.
type DeliveryLedger interface {
	TryStartDelivery(ctx context.Context, jobID, orderID, recipient string) error
	MarkDeliverySent(ctx context.Context, orderID string) error
	MarkDeliveryFailed(ctx context.Context, orderID, errMsg string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	LockTTL       time.Duration
}

type Worker struct {
	cfg        Config
	repo       JobsRepository
	deliveries DeliveryLedger
	users      UserLookup
	notifier   notifications.Notifier
	prom       *observability.Prom
	metrics    *observability.JobMetrics
	log        *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(
	cfg Config,
	repo JobsRepository,
	deliveries DeliveryLedger,
	users UserLookup,
	notifier notifications.Notifier,
	prom *observability.Prom,
	log *slog.Logger,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker"
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:        cfg,
		repo:       repo,
		deliveries: deliveries,
		users:      users,
		notifier:   notifier,
		prom:       prom,
		metrics:    observability.NewJobMetrics(),
		log:        log.With("worker_id", cfg.WorkerID),
	}
}

func (w *Worker) Metrics() observability.JobMetricsSnapShot {
	return w.metrics.Snapshot()
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) isReady() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run polls until ctx is cancelled, then waits up to ShutdownGrace for in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	staleTicker := time.NewTicker(w.cfg.LockTTL)
	defer staleTicker.Stop()

	slots := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	// in-flight jobs outlive the poll loop's cancellation
	jobCtx := context.WithoutCancel(ctx)

	w.setReady(true)
	w.log.Info("worker started", "concurrency", w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			w.setReady(false)
			w.log.Info("worker received shutdown signal")
			return w.drain(&wg)

		case <-staleTicker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.Error("requeue stale failed", "err", err)
			} else if n > 0 {
				w.log.Warn("requeued stale jobs", "count", n)
			}

		case <-ticker.C:
			w.fill(jobCtx, slots, &wg)
		}
	}
}

// fill starts one claim attempt per free slot.
func (w *Worker) fill(ctx context.Context, slots chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case slots <- struct{}{}:
		default:
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()

			if _, err := w.ProcessOne(ctx); err != nil {
				w.log.Error("process job failed", "err", err)
			}
		}()
	}
}

func (w *Worker) drain(wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("shutdown grace elapsed with jobs in flight")
		return nil
	}
}
