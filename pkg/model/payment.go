package model

// PaymentStatus is the settlement state reported by the payment
// service for a reservation's deposit and balance.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPartiallyPaid PaymentStatus = "partially_paid"
	PaymentFullyPaid     PaymentStatus = "fully_paid"
)

func (p PaymentStatus) Settled() bool {
	return p == PaymentFullyPaid
}
