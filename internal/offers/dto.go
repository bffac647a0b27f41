package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

type OfferDTO struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	DiscountPercent *int       `json:"discount_percent,omitempty"`
	CouponCode      *string    `json:"coupon_code,omitempty"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	IsActive        bool       `json:"is_active"`
	IsLive          bool       `json:"is_live"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func FromModel(o models.Offer, now time.Time) OfferDTO {
	return OfferDTO{
		ID:              o.ID,
		Title:           o.Title,
		Description:     o.Description,
		DiscountPercent: o.DiscountPercent,
		CouponCode:      o.CouponCode,
		ValidFrom:       o.ValidFrom,
		ValidUntil:      o.ValidUntil,
		IsActive:        o.IsActive,
		IsLive:          o.IsLive(now),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type ListResult = types.ListResult[OfferDTO]

// CreateInput is an admin offer payload. Coupon codes are stored upper-cased.
type CreateInput struct {
	Title           string
	Description     *string
	DiscountPercent *int
	CouponCode      *string
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	IsActive        bool
}

// UpdateInput carries optional changes. An empty CouponCode removes the code.
type UpdateInput struct {
	Title           *string
	Description     *string
	DiscountPercent *int
	ClearDiscount   bool
	CouponCode      *string
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	ClearValidity   bool
	IsActive        *bool
}
