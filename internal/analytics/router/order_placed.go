package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/grocerymart-backend/internal/analytics/types"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
)

type orderPlacedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderPlacedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderPlacedHandler{writer: writer, logg: logg}
}

func (h *orderPlacedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderPlacedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_placed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"order_id":     event.OrderID.String(),
		"order_number": event.OrderNumber,
	})

	row, err := buildOrderPlacedRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build order event row", err)
		return err
	}
	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	h.logg.Info(logCtx, "order_placed row written")
	return nil
}

func buildOrderPlacedRow(envelope types.Envelope, event *payloads.OrderPlacedEvent) (types.OrderEventRow, error) {
	payloadJSON, err := types.JSONColumn(event)
	if err != nil {
		return types.OrderEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.PlacedAt.UTC()
	}

	return types.OrderEventRow{
		EventID:          envelope.EventID.String(),
		EventType:        string(envelope.EventType),
		OccurredAt:       occurredAt,
		OrderID:          event.OrderID.String(),
		OrderNumber:      event.OrderNumber,
		UserID:           event.UserID.String(),
		Status:           string(event.Status),
		PaymentStatus:    string(event.PaymentStatus),
		PaymentMethod:    stringPtr(string(event.PaymentMethod)),
		ItemCount:        int64Ptr(int64(event.ItemCount)),
		SubtotalCents:    int64Ptr(event.SubtotalCents),
		DeliveryFeeCents: int64Ptr(event.DeliveryFeeCents),
		TaxCents:         int64Ptr(event.TaxCents),
		DiscountCents:    int64Ptr(event.DiscountCents),
		TotalCents:       event.TotalCents,
		CouponCode:       event.CouponCode,
		Payload:          payloadJSON,
	}, nil
}
