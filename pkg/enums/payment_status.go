package enums

import "fmt"

// PaymentStatus is derived from the order status and the payment method; it
// is never set directly by a client.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusVoid     PaymentStatus = "void"
)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusVoid:
		return true
	}
	return false
}

// Final reports whether no further order transition can change p.
func (p PaymentStatus) Final() bool {
	return p == PaymentStatusRefunded || p == PaymentStatusVoid
}

// AfterDelivery: cash collected on the doorstep settles a pending payment.
func (p PaymentStatus) AfterDelivery() PaymentStatus {
	if p == PaymentStatusPending {
		return PaymentStatusPaid
	}
	return p
}

// AfterCancellation refunds captured money and voids anything uncollected.
func (p PaymentStatus) AfterCancellation() PaymentStatus {
	switch p {
	case PaymentStatusPaid:
		return PaymentStatusRefunded
	case PaymentStatusPending:
		return PaymentStatusVoid
	}
	return p
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	if p := PaymentStatus(value); p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
