package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
)

// StatusPolicy decides which admin status changes are accepted.
type StatusPolicy string

const (
	// PolicyStrict only moves forward along confirmed, packed, shipped,
	// delivered, with cancellation allowed before delivery.
	PolicyStrict StatusPolicy = "strict"
	// PolicyPermissive allows any change between two distinct statuses.
	PolicyPermissive StatusPolicy = "permissive"
)

var forwardTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusConfirmed: {enums.OrderStatusPacked, enums.OrderStatusCancelled},
	enums.OrderStatusPacked:    {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:   {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

func ParseStatusPolicy(value string) (StatusPolicy, error) {
	switch StatusPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyPermissive:
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("invalid order status policy %q", value)
	}
}

// Allows reports whether an order in from may move to to.
func (p StatusPolicy) Allows(from, to enums.OrderStatus) bool {
	if from == to || !to.IsValid() {
		return false
	}
	if p == PolicyPermissive {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CustomerCanCancel is independent of the admin policy.
func CustomerCanCancel(status enums.OrderStatus) bool {
	return status == enums.OrderStatusConfirmed
}

// transitionUpdates returns the column changes for moving order to status and
// applies them to order.
func transitionUpdates(order *models.Order, to enums.OrderStatus, now time.Time) map[string]any {
	updates := map[string]any{"status": to, "updated_at": now}
	order.Status = to
	order.UpdatedAt = now

	payment := order.PaymentStatus
	switch to {
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
		updates["delivered_at"] = now
		payment = payment.AfterDelivery()
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
		updates["cancelled_at"] = now
		payment = payment.AfterCancellation()
	}
	if payment != order.PaymentStatus {
		order.PaymentStatus = payment
		updates["payment_status"] = payment
	}
	return updates
}
