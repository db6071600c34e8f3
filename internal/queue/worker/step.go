package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/jobs"
	"github.com/geocoder89/storefront/internal/notifications"
)

var errPermanent = errors.New("permanent job failure")

// ProcessOne claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.metrics.IncClaimed()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.observe(j.Type, result, elapsed)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.metrics.IncDone()
	w.observe(j.Type, "done", elapsed)
	return true, nil
}

func (w *Worker) observe(jobType, result string, d time.Duration) {
	if w.prom == nil {
		return
	}
	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(d.Seconds())
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	switch p := payload.(type) {
	case jobs.OrderConfirmationPayload:
		return w.sendOrderConfirmation(ctx, j, p)
	default:
		return fmt.Errorf("%w: unhandled job type %s", errPermanent, j.Type)
	}
}

func (w *Worker) sendOrderConfirmation(ctx context.Context, j job.Job, p jobs.OrderConfirmationPayload) error {
	u, err := w.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("%w: user %s not found", errPermanent, p.UserID)
		}
		return err
	}

	email := p.Email
	if email == "" {
		email = u.Email
	}

	err = w.deliveries.TryStartDelivery(ctx, j.ID, p.OrderID, email)
	if errors.Is(err, notifications.ErrAlreadySent) {
		w.metrics.IncConfirmationSkipped()
		w.log.InfoContext(ctx, "confirmation already sent", "order_id", p.OrderID, "job_id", j.ID)
		return nil
	}
	if err != nil {
		return err
	}

	err = w.notifier.SendOrderConfirmation(ctx, notifications.SendOrderConfirmationInput{
		Email:     email,
		Name:      u.Name,
		OrderID:   p.OrderID,
		Total:     p.Total,
		ItemCount: p.ItemCount,
	})
	if err != nil {
		if merr := w.deliveries.MarkDeliveryFailed(ctx, p.OrderID, err.Error()); merr != nil {
			w.log.ErrorContext(ctx, "mark delivery failed", "order_id", p.OrderID, "err", merr)
		}
		return err
	}

	w.metrics.IncConfirmationSent()
	return w.deliveries.MarkDeliverySent(ctx, p.OrderID)
}

// handleFailure reschedules with backoff, or parks the job as failed once it
// is permanent or out of attempts. It returns the metrics result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	attempt := j.Attempts + 1
	msg := cause.Error()

	if errors.Is(cause, errPermanent) || attempt >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			w.log.ErrorContext(ctx, "mark failed", "job_id", j.ID, "err", err)
		}
		w.metrics.IncFailed()
		w.log.WarnContext(ctx, "job failed", "job_id", j.ID, "type", j.Type, "attempt", attempt, "err", msg)
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))
	if err := w.repo.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		w.log.ErrorContext(ctx, "reschedule failed", "job_id", j.ID, "err", err)
	}
	w.metrics.IncRetried()
	w.log.InfoContext(ctx, "job rescheduled", "job_id", j.ID, "attempt", attempt, "run_at", runAt, "err", msg)
	return "retry"
}
