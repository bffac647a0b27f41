package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

// ItemDTO is a purchased line as recorded at checkout.
type ItemDTO struct {
	ID        uuid.UUID   `json:"id"`
	ProductID *uuid.UUID  `json:"product_id,omitempty"`
	Name      string      `json:"name"`
	ImageURL  *string     `json:"image_url,omitempty"`
	Quantity  int         `json:"quantity"`
	ListPrice types.Money `json:"list_price"`
	UnitPrice types.Money `json:"unit_price"`
	LineTotal types.Money `json:"line_total"`
}

// OrderDTO is the order detail payload.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          uuid.UUID           `json:"user_id"`
	UserEmail       string              `json:"user_email"`
	UserName        *string             `json:"user_name,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Subtotal        types.Money         `json:"subtotal"`
	DeliveryFee     types.Money         `json:"delivery_fee"`
	Tax             types.Money         `json:"tax"`
	Discount        types.Money         `json:"discount"`
	Savings         types.Money         `json:"savings"`
	Total           types.Money         `json:"total"`
	DeliveryAddress string              `json:"delivery_address"`
	DeliverySlot    *string             `json:"delivery_slot,omitempty"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	ItemCount       int                 `json:"item_count"`
	Items           []ItemDTO           `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

// SummaryDTO is the order row shown in history lists.
type SummaryDTO struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	UserEmail     string              `json:"user_email"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Total         types.Money         `json:"total"`
	ItemCount     int                 `json:"item_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

type ListResult = types.ListResult[SummaryDTO]

// ListQuery is a page request over order history.
type ListQuery struct {
	Status *enums.OrderStatus
	Cursor string
	Limit  int
}

func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		UserEmail:       o.UserEmail,
		UserName:        o.UserName,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		Subtotal:        types.Money(o.SubtotalCents),
		DeliveryFee:     types.Money(o.DeliveryFeeCents),
		Tax:             types.Money(o.TaxCents),
		Discount:        types.Money(o.DiscountCents),
		Savings:         types.Money(o.SavingsCents),
		Total:           types.Money(o.TotalCents),
		DeliveryAddress: o.DeliveryAddress,
		DeliverySlot:    o.DeliverySlot,
		CouponCode:      o.CouponCode,
		ItemCount:       itemCount(o.Items),
		Items:           make([]ItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.ProductName,
			ImageURL:  item.ImageURL,
			Quantity:  item.Quantity,
			ListPrice: types.Money(item.ListPriceCents),
			UnitPrice: types.Money(item.UnitPriceCents),
			LineTotal: types.Money(item.LineTotalCents),
		})
	}
	return dto
}

func SummaryFromModel(o models.Order) SummaryDTO {
	return SummaryDTO{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserEmail:     o.UserEmail,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		Total:         types.Money(o.TotalCents),
		ItemCount:     itemCount(o.Items),
		CreatedAt:     o.CreatedAt,
	}
}

func itemCount(items []models.OrderItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
