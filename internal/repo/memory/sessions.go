package memory

import (
	"context"
	"time"

	"github.com/geocoder89/storefront/internal/auth"
)

func (s *Store) CreateSession(_ context.Context, sess auth.Session) error {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return nil
}

func (s *Store) RotateSession(_ context.Context, id string, check func(auth.Session) error, next auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[id]
	if !ok {
		return auth.ErrInvalidRefresh
	}

	if err := check(cur); err != nil {
		return err
	}

	now := time.Now().UTC()
	cur.RevokedAt = &now
	cur.ReplacedBy = &next.ID
	s.sessions[id] = cur
	s.sessions[next.ID] = next

	return nil
}

func (s *Store) RevokeSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[id]
	if !ok || cur.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	cur.RevokedAt = &now
	s.sessions[id] = cur
	return nil
}
