package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/jobs"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/orders"
	"github.com/geocoder89/storefront/internal/repo/memory"
	"github.com/shopspring/decimal"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.SendOrderConfirmationInput
	err  error
}

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, in notifications.SendOrderConfirmationInput) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, in)
	return nil
}

// enqueue commits a confirmation job through an order transaction, the same path the API uses.
func enqueue(t *testing.T, st *memory.Store, payload any, maxAttempts int) job.Job {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	err = st.WithinTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		return tx.EnqueueJob(ctx, job.CreateRequest{
			Type:        string(jobs.TypeOrderConfirmation),
			Payload:     raw,
			MaxAttempts: maxAttempts,
		})
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending := string(job.StatusPending)
	far := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	list, _, _, err := st.ListCursor(context.Background(), &pending, 100, far, "")
	if err != nil || len(list) == 0 {
		t.Fatalf("expected a pending job, err=%v", err)
	}

	newest := list[0]
	for _, j := range list[1:] {
		if j.CreatedAt.After(newest.CreatedAt) {
			newest = j
		}
	}
	return newest
}

func setup(t *testing.T, notifier notifications.Notifier) (*Worker, *memory.Store, user.User) {
	t.Helper()
	st := memory.New()
	u, err := st.CreateUser(context.Background(), user.New("ada@example.com", "h", "Ada", ""))
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	w := New(Config{WorkerID: "w-test"}, st, st, st, notifier, nil, nil)
	return w, st, u
}

func TestProcessOne_SendsConfirmation(t *testing.T) {
	n := &recordingNotifier{}
	w, st, u := setup(t, n)

	j := enqueue(t, st, jobs.OrderConfirmationPayload{
		OrderID: "o1", UserID: u.ID, Total: decimal.RequireFromString("20.00"), ItemCount: 1,
	}, 5)

	claimed, err := w.ProcessOne(context.Background())
	if err != nil || !claimed {
		t.Fatalf("expected claim, got claimed=%v err=%v", claimed, err)
	}

	if len(n.sent) != 1 || n.sent[0].Email != "ada@example.com" || n.sent[0].OrderID != "o1" {
		t.Fatalf("unexpected sends: %+v", n.sent)
	}

	got, _ := st.GetJob(context.Background(), j.ID)
	if got.Status != job.StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}

	claimed, err = w.ProcessOne(context.Background())
	if claimed || err != nil {
		t.Fatalf("queue should be empty, got claimed=%v err=%v", claimed, err)
	}
	if w.Metrics().Done != 1 {
		t.Fatalf("expected one done in metrics")
	}
}

func TestProcessOne_RedeliveryDoesNotResend(t *testing.T) {
	n := &recordingNotifier{}
	w, st, u := setup(t, n)
	payload := jobs.OrderConfirmationPayload{OrderID: "o1", UserID: u.ID, Total: decimal.NewFromInt(1), ItemCount: 1}

	enqueue(t, st, payload, 5)
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}

	// a second job for the same order, as after a crash between send and MarkDone
	enqueue(t, st, payload, 5)
	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("second: %v", err)
	}

	if len(n.sent) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(n.sent))
	}

	m := w.Metrics()
	if m.ConfirmationsSent != 1 || m.ConfirmationsSkipped != 1 || m.Done != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestProcessOne_TransientFailureReschedules(t *testing.T) {
	n := &recordingNotifier{err: errors.New("provider down")}
	w, st, u := setup(t, n)

	j := enqueue(t, st, jobs.OrderConfirmationPayload{OrderID: "o1", UserID: u.ID, Total: decimal.NewFromInt(1)}, 5)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := st.GetJob(context.Background(), j.ID)
	if got.Status != job.StatusPending || got.Attempts != 1 || !got.RunAt.After(time.Now()) {
		t.Fatalf("expected rescheduled job, got %+v", got)
	}
	if got.LastError == nil || *got.LastError != "provider down" {
		t.Fatalf("expected last error recorded, got %v", got.LastError)
	}
}

func TestProcessOne_PermanentFailure(t *testing.T) {
	w, st, _ := setup(t, &recordingNotifier{})

	j := enqueue(t, st, jobs.OrderConfirmationPayload{OrderID: "o1", UserID: "ghost", Total: decimal.NewFromInt(1)}, 5)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := st.GetJob(context.Background(), j.ID)
	if got.Status != job.StatusFailed {
		t.Fatalf("missing user must fail permanently, got %s", got.Status)
	}
}

func TestExponentialBackoff_Bounds(t *testing.T) {
	if d := ExponentialBackoff(0); d < 2*time.Second || d >= 2*time.Second+250*time.Millisecond {
		t.Fatalf("attempt 0: %v", d)
	}
	if d := ExponentialBackoff(100); d < 5*time.Minute || d >= 5*time.Minute+250*time.Millisecond {
		t.Fatalf("attempt 100 must cap: %v", d)
	}
}
