package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/internal/pricing"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

// Line is a cart line priced from the live catalog.
type Line struct {
	ID             uuid.UUID    `json:"id"`
	ProductID      uuid.UUID    `json:"product_id"`
	Name           string       `json:"name"`
	ImageURL       *string      `json:"image_url,omitempty"`
	Quantity       int          `json:"quantity"`
	Price          types.Money  `json:"price"`
	SalePrice      *types.Money `json:"sale_price,omitempty"`
	UnitPrice      types.Money  `json:"unit_price"`
	LineTotal      types.Money  `json:"line_total"`
	Stock          int          `json:"stock"`
	Available      bool         `json:"available"`
	ListPriceCents int64        `json:"-"`
	SalePriceCents *int64       `json:"-"`
}

// PricingLine adapts the line for the calculator.
func (l Line) PricingLine() pricing.Line {
	return pricing.Line{
		ListPriceCents: l.ListPriceCents,
		SalePriceCents: l.SalePriceCents,
		Quantity:       l.Quantity,
	}
}

// Summary renders pricing totals as money.
type Summary struct {
	Subtotal    types.Money `json:"subtotal"`
	DeliveryFee types.Money `json:"delivery_fee"`
	Tax         types.Money `json:"tax"`
	Discount    types.Money `json:"discount"`
	Savings     types.Money `json:"savings"`
	Total       types.Money `json:"total"`
	ItemCount   int         `json:"item_count"`
}

// NewSummary converts calculator output for responses.
func NewSummary(t pricing.Totals) Summary {
	return Summary{
		Subtotal:    types.Money(t.SubtotalCents),
		DeliveryFee: types.Money(t.DeliveryFeeCents),
		Tax:         types.Money(t.TaxCents),
		Discount:    types.Money(t.DiscountCents),
		Savings:     types.Money(t.SavingsCents),
		Total:       types.Money(t.TotalCents),
		ItemCount:   t.ItemCount,
	}
}

// View is the cart as returned to the client.
type View struct {
	Items   []Line         `json:"items"`
	Summary Summary        `json:"summary"`
	Totals  pricing.Totals `json:"-"`
}

// PricingLines returns the available lines for the calculator.
func (v View) PricingLines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(v.Items))
	for _, item := range v.Items {
		if !item.Available {
			continue
		}
		lines = append(lines, item.PricingLine())
	}
	return lines
}

// LineFromRow prices a row from live catalog data, falling back to the
// snapshot taken when the line was added.
func LineFromRow(row LineRow) Line {
	line := Line{
		ID:             row.ID,
		ProductID:      row.ProductID,
		Name:           row.ProductName,
		ImageURL:       row.ImageURL,
		Quantity:       row.Quantity,
		ListPriceCents: row.PriceCents,
		SalePriceCents: row.SalePriceCents,
	}
	if row.LivePriceCents != nil {
		line.ListPriceCents = *row.LivePriceCents
		line.SalePriceCents = row.LiveSalePriceCents
		if row.LiveName != nil {
			line.Name = *row.LiveName
		}
		if row.LiveImageURL != nil {
			line.ImageURL = row.LiveImageURL
		}
	}
	if row.Stock != nil {
		line.Stock = *row.Stock
		line.Available = *row.Stock > 0
	}

	priced := line.PricingLine()
	line.Price = types.Money(line.ListPriceCents)
	if line.SalePriceCents != nil {
		sale := types.Money(*line.SalePriceCents)
		line.SalePrice = &sale
	}
	line.UnitPrice = types.Money(priced.EffectiveUnitPrice())
	line.LineTotal = types.Money(priced.LineTotal())
	return line
}
