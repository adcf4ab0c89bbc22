package domain

// Service is a mentor's purchasable offering.
type Service struct {
	ID       string
	MentorID string
	Title    string
	Active   bool
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is the provider-side record captured for a session.
type Payment struct {
	ID               string
	SessionID        string
	MenteeID         string
	ProviderIntentID string
	Status           PaymentStatus
}

// Settled reports whether the provider confirmed the charge.
func (p Payment) Settled() bool {
	return p.Status == PaymentStatusSucceeded || p.Status == PaymentStatusPaid
}
