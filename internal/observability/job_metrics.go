package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics are per-process worker counters served on the worker's /stats endpoint.
type JobMetrics struct {
	claimed atomic.Uint64
	done    atomic.Uint64
	retried atomic.Uint64
	failed  atomic.Uint64

	confirmationsSent    atomic.Uint64
	confirmationsSkipped atomic.Uint64

	// nanoseconds
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed() { m.claimed.Add(1) }
func (m *JobMetrics) IncDone()    { m.done.Add(1) }
func (m *JobMetrics) IncRetried() { m.retried.Add(1) }
func (m *JobMetrics) IncFailed()  { m.failed.Add(1) }

func (m *JobMetrics) IncConfirmationSent() { m.confirmationsSent.Add(1) }

// IncConfirmationSkipped counts redelivered jobs whose order was already notified.
func (m *JobMetrics) IncConfirmationSkipped() { m.confirmationsSkipped.Add(1) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr || m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type JobMetricsSnapShot struct {
	Claimed              uint64        `json:"claimed"`
	Done                 uint64        `json:"done"`
	Retried              uint64        `json:"retried"`
	Failed               uint64        `json:"failed"`
	ConfirmationsSent    uint64        `json:"confirmationsSent"`
	ConfirmationsSkipped uint64        `json:"confirmationsSkipped"`
	DurationCount        uint64        `json:"durationCount"`
	AverageDuration      time.Duration `json:"avgDurationNs"`
	MaxDuration          time.Duration `json:"maxDurationNs"`
}

func (m *JobMetrics) Snapshot() JobMetricsSnapShot {
	count := m.durationCount.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(m.durationTotal.Load() / int64(count))
	}

	return JobMetricsSnapShot{
		Claimed:              m.claimed.Load(),
		Done:                 m.done.Load(),
		Retried:              m.retried.Load(),
		Failed:               m.failed.Load(),
		ConfirmationsSent:    m.confirmationsSent.Load(),
		ConfirmationsSkipped: m.confirmationsSkipped.Load(),
		DurationCount:        count,
		AverageDuration:      avg,
		MaxDuration:          time.Duration(m.durationMax.Load()),
	}
}
