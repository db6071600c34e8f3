package jobs

import "strings"

// ValidatePayload performs minimal validation on typed payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case TypeOrderConfirmation:
		var p OrderConfirmationPayload
		switch v := payload.(type) {
		case OrderConfirmationPayload:
			p = v
		case *OrderConfirmationPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.OrderID) == "" || trim(p.UserID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
