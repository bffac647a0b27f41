// Package pricing turns cart lines into order totals. Every surface that shows
// or charges a total goes through Calculator so the numbers never diverge.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 999

// Line is one priced cart or order line in minor units.
type Line struct {
	ListPriceCents int64
	SalePriceCents *int64
	Quantity       int
}

// EffectiveUnitPrice is the sale price when it undercuts the list price.
func (l Line) EffectiveUnitPrice() int64 {
	if l.SalePriceCents != nil && *l.SalePriceCents < l.ListPriceCents {
		return *l.SalePriceCents
	}
	return l.ListPriceCents
}

// LineTotal is the effective unit price times quantity.
func (l Line) LineTotal() int64 {
	return l.EffectiveUnitPrice() * int64(l.Quantity)
}

// Savings is what the sale price takes off the list price for this line.
func (l Line) Savings() int64 {
	return (l.ListPriceCents - l.EffectiveUnitPrice()) * int64(l.Quantity)
}

// Totals is the computed breakdown. Discount is carried separately from
// Savings: savings are already inside Subtotal and are never subtracted again.
type Totals struct {
	SubtotalCents    int64 `json:"subtotal_cents"`
	DeliveryFeeCents int64 `json:"delivery_fee_cents"`
	TaxCents         int64 `json:"tax_cents"`
	DiscountCents    int64 `json:"discount_cents"`
	SavingsCents     int64 `json:"savings_cents"`
	TotalCents       int64 `json:"total_cents"`
	ItemCount        int   `json:"item_count"`
}

// Calculator holds the storefront delivery and tax rules.
type Calculator struct {
	DeliveryFeeCents           int64
	FreeDeliveryThresholdCents int64
	TaxRateBasisPoints         int64
}

// NewCalculator builds a calculator from config.
func NewCalculator(cfg config.PricingConfig) Calculator {
	return Calculator{
		DeliveryFeeCents:           cfg.DeliveryFeeCents,
		FreeDeliveryThresholdCents: cfg.FreeDeliveryThresholdCents,
		TaxRateBasisPoints:         cfg.TaxRateBasisPoints,
	}
}

// Default returns the storefront's standard rules: 3.99 delivery under 50.00, 8.5% tax.
func Default() Calculator {
	return Calculator{
		DeliveryFeeCents:           399,
		FreeDeliveryThresholdCents: 5000,
		TaxRateBasisPoints:         850,
	}
}

// Calculate prices the lines. It does not validate quantities; callers reject
// bad input at the mutation boundary with Validate.
func (c Calculator) Calculate(lines []Line) Totals {
	var totals Totals
	for _, line := range lines {
		totals.SubtotalCents += line.LineTotal()
		totals.SavingsCents += line.Savings()
		totals.ItemCount += line.Quantity
	}
	totals.DeliveryFeeCents = c.DeliveryFee(totals.SubtotalCents)
	totals.TaxCents = c.Tax(totals.SubtotalCents)
	totals.TotalCents = totals.SubtotalCents + totals.DeliveryFeeCents + totals.TaxCents - totals.DiscountCents
	return totals
}

// DeliveryFee is waived once the subtotal reaches the threshold.
func (c Calculator) DeliveryFee(subtotalCents int64) int64 {
	if subtotalCents >= c.FreeDeliveryThresholdCents {
		return 0
	}
	return c.DeliveryFeeCents
}

// Tax applies the flat rate and rounds half up to whole cents.
func (c Calculator) Tax(subtotalCents int64) int64 {
	rate := decimal.New(c.TaxRateBasisPoints, -4)
	return types.MoneyFromMajor(types.Money(subtotalCents).Decimal().Mul(rate)).Cents()
}

// Validate rejects lines no mutation should ever produce.
func Validate(lines []Line) error {
	for i, line := range lines {
		if line.Quantity < 1 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: quantity must be at least 1", i)
		}
		if line.ListPriceCents <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: price must be positive", i)
		}
		if line.SalePriceCents != nil && *line.SalePriceCents <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "line %d: sale price must be positive", i)
		}
	}
	return nil
}

// ValidateQuantity is the single quantity rule shared by cart mutations.
func ValidateQuantity(quantity int) error {
	switch {
	case quantity < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	case quantity > MaxQuantity:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", MaxQuantity)
	}
	return nil
}
