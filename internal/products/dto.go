package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

// ProductDTO is the catalog card/detail payload.
type ProductDTO struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	Description     *string      `json:"description,omitempty"`
	Category        string       `json:"category"`
	Subcategory     *string      `json:"subcategory,omitempty"`
	Price           types.Money  `json:"price"`
	SalePrice       *types.Money `json:"sale_price,omitempty"`
	EffectivePrice  types.Money  `json:"effective_price"`
	DiscountPercent *int         `json:"discount_percent,omitempty"`
	Stock           int          `json:"stock"`
	InStock         bool         `json:"in_stock"`
	ImageURL        *string      `json:"image_url,omitempty"`
	IsFeatured      bool         `json:"is_featured"`
	IsBestseller    bool         `json:"is_bestseller"`
	IsOrganic       bool         `json:"is_organic"`
	Rating          float64      `json:"rating"`
	ReviewCount     int          `json:"review_count"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func FromModel(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		Subcategory:     p.Subcategory,
		Price:           types.Money(p.PriceCents),
		EffectivePrice:  types.Money(p.EffectivePriceCents()),
		DiscountPercent: p.DiscountPercent(),
		Stock:           p.Stock,
		InStock:         p.InStock(),
		ImageURL:        p.ImageURL,
		IsFeatured:      p.IsFeatured,
		IsBestseller:    p.IsBestseller,
		IsOrganic:       p.IsOrganic,
		Rating:          p.Rating,
		ReviewCount:     p.ReviewCount,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.SalePriceCents != nil {
		sale := types.Money(*p.SalePriceCents)
		dto.SalePrice = &sale
	}
	return dto
}

func fromModels(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}

// CategoryDTO is one entry of the category facet.
type CategoryDTO struct {
	Name         string `json:"name"`
	ProductCount int64  `json:"product_count"`
}

// ListQuery is a catalog page request.
type ListQuery struct {
	Filter ListFilter `json:"filter"`
	Cursor string     `json:"cursor,omitempty"`
	Limit  int        `json:"limit"`
}

// ListResult is a page of catalog cards.
type ListResult = types.ListResult[ProductDTO]

// CreateInput holds a validated admin create payload.
type CreateInput struct {
	Name           string
	Description    *string
	Category       string
	Subcategory    *string
	PriceCents     int64
	SalePriceCents *int64
	Stock          int
	ImageURL       *string
	IsFeatured     bool
	IsBestseller   bool
	IsOrganic      bool
}

// UpdateInput carries optional changes. ClearSalePrice removes the sale price.
type UpdateInput struct {
	Name           *string
	Description    *string
	Category       *string
	Subcategory    *string
	PriceCents     *int64
	SalePriceCents *int64
	ClearSalePrice bool
	Stock          *int
	ImageURL       *string
	IsFeatured     *bool
	IsBestseller   *bool
	IsOrganic      *bool
}
