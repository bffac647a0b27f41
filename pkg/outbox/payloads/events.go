package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
)

// OrderPlacedEvent is emitted once checkout commits an order.
type OrderPlacedEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	OrderNumber      string              `json:"order_number"`
	UserID           uuid.UUID           `json:"user_id"`
	UserEmail        string              `json:"user_email"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	ItemCount        int                 `json:"item_count"`
	SubtotalCents    int64               `json:"subtotal_cents"`
	DeliveryFeeCents int64               `json:"delivery_fee_cents"`
	TaxCents         int64               `json:"tax_cents"`
	DiscountCents    int64               `json:"discount_cents"`
	TotalCents       int64               `json:"total_cents"`
	CouponCode       *string             `json:"coupon_code,omitempty"`
	PlacedAt         time.Time           `json:"placed_at"`
}

// OrderStatusChangedEvent is emitted for every accepted status transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	OrderNumber    string              `json:"order_number"`
	UserID         uuid.UUID           `json:"user_id"`
	PreviousStatus enums.OrderStatus   `json:"previous_status"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	TotalCents     int64               `json:"total_cents"`
	ChangedAt      time.Time           `json:"changed_at"`
}

// OfferCreatedEvent announces a new promotion.
type OfferCreatedEvent struct {
	OfferID         uuid.UUID `json:"offer_id"`
	Title           string    `json:"title"`
	DiscountPercent *int      `json:"discount_percent,omitempty"`
	CouponCode      *string   `json:"coupon_code,omitempty"`
}

// LowStockProduct is one entry of a low-stock digest.
type LowStockProduct struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
}

// LowStockDetectedEvent is the daily digest of products at or below the threshold.
type LowStockDetectedEvent struct {
	Day       string            `json:"day"`
	Threshold int               `json:"threshold"`
	Products  []LowStockProduct `json:"products"`
}
