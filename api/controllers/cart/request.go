package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	// Defaults to one when omitted.
	Quantity *int `json:"quantity,omitempty" validate:"omitempty,min=1,max=999"`
}

func (r addItemRequest) quantity() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=1,max=999"`
}
