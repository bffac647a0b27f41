package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/grocerymart-backend/internal/analytics/types"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
)

type orderStatusChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderStatusChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderStatusChangedHandler{writer: writer, logg: logg}
}

func (h *orderStatusChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_status_changed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"order_id": event.OrderID.String(),
		"status":   string(event.Status),
	})

	payloadJSON, err := types.JSONColumn(event)
	if err != nil {
		return fmt.Errorf("encode payload json: %w", err)
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = event.ChangedAt.UTC()
	}

	row := types.OrderEventRow{
		EventID:        envelope.EventID.String(),
		EventType:      string(envelope.EventType),
		OccurredAt:     occurredAt,
		OrderID:        event.OrderID.String(),
		OrderNumber:    event.OrderNumber,
		UserID:         event.UserID.String(),
		Status:         string(event.Status),
		PreviousStatus: stringPtr(string(event.PreviousStatus)),
		PaymentStatus:  string(event.PaymentStatus),
		TotalCents:     event.TotalCents,
		Payload:        payloadJSON,
	}
	if err := h.writer.InsertOrderEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert order event row", err)
		return err
	}

	h.logg.Info(logCtx, "order_status_changed row written")
	return nil
}
