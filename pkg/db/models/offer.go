package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Offer is a promotional banner, optionally carrying a coupon code.
type Offer struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title           string     `gorm:"column:title;not null"`
	Description     *string    `gorm:"column:description"`
	DiscountPercent *int       `gorm:"column:discount_percent"`
	CouponCode      *string    `gorm:"column:coupon_code;uniqueIndex:offers_coupon_code_key"`
	ValidFrom       *time.Time `gorm:"column:valid_from"`
	ValidUntil      *time.Time `gorm:"column:valid_until"`
	IsActive        bool       `gorm:"column:is_active;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Offer) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// IsLive reports whether the offer is active and inside its validity window.
func (o Offer) IsLive(now time.Time) bool {
	if !o.IsActive {
		return false
	}
	if o.ValidFrom != nil && now.Before(*o.ValidFrom) {
		return false
	}
	if o.ValidUntil != nil && now.After(*o.ValidUntil) {
		return false
	}
	return true
}
