package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog listing. Prices are stored in cents.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Description    *string   `gorm:"column:description"`
	Category       string    `gorm:"column:category;not null;index"`
	Subcategory    *string   `gorm:"column:subcategory"`
	PriceCents     int64     `gorm:"column:price_cents;not null"`
	SalePriceCents *int64    `gorm:"column:sale_price_cents"`
	Stock          int       `gorm:"column:stock;not null;default:0"`
	ImageURL       *string   `gorm:"column:image_url"`
	IsFeatured     bool      `gorm:"column:is_featured;not null;default:false"`
	IsBestseller   bool      `gorm:"column:is_bestseller;not null;default:false"`
	IsOrganic      bool      `gorm:"column:is_organic;not null;default:false"`
	Rating         float64   `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	ReviewCount    int       `gorm:"column:review_count;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// EffectivePriceCents is the sale price when it undercuts the list price.
func (p Product) EffectivePriceCents() int64 {
	if p.SalePriceCents != nil && *p.SalePriceCents < p.PriceCents {
		return *p.SalePriceCents
	}
	return p.PriceCents
}

// DiscountPercent is the whole-number markdown shown on product cards.
func (p Product) DiscountPercent() *int {
	effective := p.EffectivePriceCents()
	if effective >= p.PriceCents || p.PriceCents <= 0 {
		return nil
	}
	pct := int(((p.PriceCents-effective)*100 + p.PriceCents/2) / p.PriceCents)
	return &pct
}

// InStock reports whether the product can be added to a cart.
func (p Product) InStock() bool {
	return p.Stock > 0
}
