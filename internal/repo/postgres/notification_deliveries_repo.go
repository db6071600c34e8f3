package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const kindOrderConfirmation = "order.confirmation"

// NotificationDeliveriesRepo is the per-order send ledger that keeps a
// redelivered job from emailing the customer twice.
type NotificationDeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNotificationDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationDeliveriesRepo {
	return &NotificationDeliveriesRepo{pool: pool, prom: prom}
}

func (r *NotificationDeliveriesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *NotificationDeliveriesRepo) TryStartDelivery(ctx context.Context, jobID, orderID, recipient string) error {
	return r.observe("deliveries.try_start", func() error {
		// 1) Insert if missing
		_, err := r.pool.Exec(ctx, `
			INSERT INTO notification_deliveries (kind, order_id, job_id, recipient, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
		`, kindOrderConfirmation, orderID, jobID, recipient)

		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}

		// 2) Row exists. A failed row is claimed for retry; only one worker can flip failed -> sending.
		tag, uErr := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sending',
			    job_id = $3,
			    recipient = $4,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND order_id = $2 AND status = 'failed'
		`, kindOrderConfirmation, orderID, jobID, recipient)
		if uErr != nil {
			return uErr
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		// 3) Not failed: already sent, or another worker is sending.
		var status string
		var sentAt *time.Time

		qErr := r.pool.QueryRow(ctx, `
			SELECT status, sent_at
			FROM notification_deliveries
			WHERE kind = $1 AND order_id = $2
		`, kindOrderConfirmation, orderID).Scan(&status, &sentAt)
		if qErr != nil {
			if errors.Is(qErr, pgx.ErrNoRows) {
				// row disappeared; let caller retry
				return nil
			}
			return qErr
		}

		if sentAt != nil || status == "sent" {
			return notifications.ErrAlreadySent
		}
		return notifications.ErrInProgress
	})
}

func (r *NotificationDeliveriesRepo) MarkDeliverySent(ctx context.Context, orderID string) error {
	return r.observe("deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sent',
			    sent_at = NOW(),
			    last_error = NULL,
			    updated_at = NOW()
			WHERE kind = $1 AND order_id = $2
		`, kindOrderConfirmation, orderID)
		return err
	})
}

func (r *NotificationDeliveriesRepo) MarkDeliveryFailed(ctx context.Context, orderID, errMsg string) error {
	return r.observe("deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'failed',
			    last_error = $3,
			    updated_at = NOW()
			WHERE kind = $1 AND order_id = $2
		`, kindOrderConfirmation, orderID, errMsg)
		return err
	})
}
