package jobs

type JobType string

const (
	TypeOrderConfirmation JobType = "order.confirmation"
)

// check to see if the job type is a known constant
func (t JobType) IsValid() bool {
	switch t {
	case TypeOrderConfirmation:
		return true
	default:
		return false
	}
}
