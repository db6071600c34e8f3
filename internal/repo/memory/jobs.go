package memory

import (
	"context"
	"sort"
	"time"

	"github.com/geocoder89/storefront/internal/domain/job"
	"github.com/geocoder89/storefront/internal/utils"
)

func (s *Store) hasJobKeyLocked(key string) bool {
	for _, j := range s.jobs {
		if j.IdempotencyKey != nil && *j.IdempotencyKey == key {
			return true
		}
	}
	return false
}

func (s *Store) ClaimNext(_ context.Context, workerID string) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var next *job.Job

	for id := range s.jobs {
		j := s.jobs[id]
		if j.Status != job.StatusPending || j.RunAt.After(now) || j.Attempts >= j.MaxAttempts {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) ||
			(j.RunAt.Equal(next.RunAt) && j.CreatedAt.Before(next.CreatedAt)) {
			next = &j
		}
	}

	if next == nil {
		return job.Job{}, job.ErrJobNotFound
	}

	next.Status = job.StatusProcessing
	next.LockedAt = &now
	next.LockedBy = &workerID
	next.UpdatedAt = now
	s.jobs[next.ID] = *next

	return *next, nil
}

func (s *Store) update(id string, fn func(j *job.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}
	if err := fn(&j); err != nil {
		return err
	}
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
	return nil
}

func (s *Store) MarkDone(_ context.Context, id string) error {
	return s.update(id, func(j *job.Job) error {
		j.Status = job.StatusDone
		j.Attempts++
		j.LockedAt, j.LockedBy, j.LastError = nil, nil, nil
		return nil
	})
}

func (s *Store) MarkFailed(_ context.Context, id string, errMsg string) error {
	return s.update(id, func(j *job.Job) error {
		j.Status = job.StatusFailed
		j.Attempts++
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
		return nil
	})
}

func (s *Store) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return s.update(id, func(j *job.Job) error {
		j.Status = job.StatusPending
		j.Attempts++
		j.RunAt = runAt
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
		return nil
	})
}

func (s *Store) RequeueStaleProcessing(_ context.Context, lockTTL time.Duration) (int64, error) {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-lockTTL)
	var n int64

	for id, j := range s.jobs {
		if j.Status == job.StatusProcessing && j.LockedAt != nil && j.LockedAt.Before(cutoff) {
			j.Status = job.StatusPending
			j.LockedAt, j.LockedBy = nil, nil
			j.UpdatedAt = time.Now().UTC()
			s.jobs[id] = j
			n++
		}
	}
	return n, nil
}

func (s *Store) ListCursor(
	_ context.Context,
	status *string,
	limit int,
	afterUpdatedAt time.Time,
	afterID string,
) ([]job.Job, *string, bool, error) {
	s.mu.RLock()
	out := make([]job.Job, 0)
	for _, j := range s.jobs {
		if status != nil && string(j.Status) != *status {
			continue
		}
		// (updated_at, id) < cursor
		if j.UpdatedAt.After(afterUpdatedAt) || (j.UpdatedAt.Equal(afterUpdatedAt) && j.ID >= afterID) {
			continue
		}
		out = append(out, j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].UpdatedAt.Equal(out[b].UpdatedAt) {
			return out[a].UpdatedAt.After(out[b].UpdatedAt)
		}
		return out[a].ID > out[b].ID
	})

	if len(out) <= limit {
		return out, nil, false, nil
	}

	out = out[:limit]
	last := out[len(out)-1]
	cur, err := utils.EncodeJobCursor(last.UpdatedAt, last.ID)
	if err != nil {
		return nil, nil, false, err
	}
	return out, &cur, true, nil
}

func (s *Store) GetJob(_ context.Context, id string) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, nil
}

func (s *Store) Retry(_ context.Context, id string) error {
	return s.update(id, func(j *job.Job) error {
		if j.Status != job.StatusFailed {
			return job.ErrJobNotFailed
		}
		requeue(j)
		return nil
	})
}

func (s *Store) RetryManyFailed(_ context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, j := range s.jobs {
		if int(n) >= limit {
			break
		}
		if j.Status != job.StatusFailed {
			continue
		}
		requeue(&j)
		j.UpdatedAt = time.Now().UTC()
		s.jobs[id] = j
		n++
	}
	return n, nil
}

func requeue(j *job.Job) {
	j.Status = job.StatusPending
	j.Attempts = 0
	j.RunAt = time.Now().UTC()
	j.LockedAt, j.LockedBy, j.LastError = nil, nil, nil
}
