package checkout

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
)

// StockValidationInput describes one cart line checked against live stock.
type StockValidationInput struct {
	ProductID   uuid.UUID
	ProductName string
	Available   int
	Quantity    int
}

// StockShortfallDetail is returned to callers when a line cannot be filled.
type StockShortfallDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	AvailableQty int       `json:"available_qty"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateStock ensures every line can be filled from current stock. The
// returned error is a STATE_CONFLICT listing every short line.
func ValidateStock(items []StockValidationInput) error {
	var shortfalls []StockShortfallDetail
	for _, item := range items {
		if item.Quantity <= item.Available {
			continue
		}
		shortfalls = append(shortfalls, StockShortfallDetail{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			AvailableQty: item.Available,
			RequestedQty: item.Quantity,
		})
	}
	return ShortfallError(shortfalls)
}

// ShortfallError wraps shortfalls into the public error, or nil when empty.
func ShortfallError(shortfalls []StockShortfallDetail) error {
	if len(shortfalls) == 0 {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "insufficient stock for %d item(s)", len(shortfalls)).WithDetails(map[string]any{
		"shortfalls": shortfalls,
	})
}
