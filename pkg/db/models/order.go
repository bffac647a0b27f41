package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
)

// Order is the immutable snapshot written at checkout. Only the status
// columns change afterwards.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber      string              `gorm:"column:order_number;not null;uniqueIndex:orders_order_number_key"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	UserEmail        string              `gorm:"column:user_email;not null"`
	UserName         *string             `gorm:"column:user_name"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null"`
	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	SubtotalCents    int64               `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents int64               `gorm:"column:delivery_fee_cents;not null"`
	TaxCents         int64               `gorm:"column:tax_cents;not null"`
	DiscountCents    int64               `gorm:"column:discount_cents;not null;default:0"`
	SavingsCents     int64               `gorm:"column:savings_cents;not null;default:0"`
	TotalCents       int64               `gorm:"column:total_cents;not null"`
	DeliveryAddress  string              `gorm:"column:delivery_address;not null"`
	DeliverySlot     *string             `gorm:"column:delivery_slot"`
	CouponCode       *string             `gorm:"column:coupon_code"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeliveredAt      *time.Time          `gorm:"column:delivered_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem snapshots a purchased line. ProductID is nulled if the product
// is later deleted; the snapshot columns are never re-derived.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	ProductName    string     `gorm:"column:product_name;not null"`
	ImageURL       *string    `gorm:"column:image_url"`
	Quantity       int        `gorm:"column:quantity;not null"`
	ListPriceCents int64      `gorm:"column:list_price_cents;not null"`
	UnitPriceCents int64      `gorm:"column:unit_price_cents;not null"`
	LineTotalCents int64      `gorm:"column:line_total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
