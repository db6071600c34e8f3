package memory

import (
	"context"

	"github.com/geocoder89/storefront/internal/notifications"
)

type delivery struct {
	jobID     string
	recipient string
	status    string // sending | sent | failed
	lastError string
}

func (s *Store) TryStartDelivery(_ context.Context, jobID, orderID, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[orderID]
	switch {
	case !ok, d.status == "failed":
		s.deliveries[orderID] = delivery{jobID: jobID, recipient: recipient, status: "sending"}
		return nil
	case d.status == "sent":
		return notifications.ErrAlreadySent
	default:
		return notifications.ErrInProgress
	}
}

func (s *Store) MarkDeliverySent(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.deliveries[orderID]
	d.status = "sent"
	d.lastError = ""
	s.deliveries[orderID] = d
	return nil
}

func (s *Store) MarkDeliveryFailed(_ context.Context, orderID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.deliveries[orderID]
	d.status = "failed"
	d.lastError = errMsg
	s.deliveries[orderID] = d
	return nil
}
