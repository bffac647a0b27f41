package notifications

import (
	"context"
	"fmt"
	"strconv"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/registry"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

const (
	// OrderConsumerName keys idempotency claims for the order subscription.
	OrderConsumerName = "order-notifications"
	// OfferConsumerName keys idempotency claims for the offer subscription.
	OfferConsumerName = "offer-notifications"
)

var statusMessages = map[enums.OrderStatus]string{
	enums.OrderStatusConfirmed: "Your order has been confirmed and is being prepared.",
	enums.OrderStatusPacked:    "Your order has been packed and will be shipped soon.",
	enums.OrderStatusShipped:   "Your order has been shipped and is on its way!",
	enums.OrderStatusDelivered: "Your order has been delivered. Enjoy your groceries!",
	enums.OrderStatusCancelled: "Your order has been cancelled.",
}

type recipientLister interface {
	UsersWithItems(ctx context.Context) ([]uuid.UUID, error)
}

// Consumer turns domain events into user and admin notifications.
type Consumer struct {
	name         string
	repo         Repository
	recipients   recipientLister
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds a notification consumer bound to one subscription.
func NewConsumer(name string, repo Repository, recipients recipientLister, subscription *pubsub.Subscriber, manager *idempotency.Manager, decoders *registry.DecoderRegistry, logg *logger.Logger) (*Consumer, error) {
	if name == "" {
		return nil, fmt.Errorf("consumer name required")
	}
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("offer recipient lister required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if decoders == nil {
		return nil, fmt.Errorf("payload decoders required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		name:         name,
		repo:         repo,
		recipients:   recipients,
		subscription: subscription,
		idempotency:  manager,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	switch eventType {
	case enums.EventOrderPlaced, enums.EventOrderStatusChanged, enums.EventOfferCreated, enums.EventLowStockDetected:
	default:
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID, err := envelope.EventUUID()
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	version := envelope.Version
	if raw := msg.Attributes["version"]; raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			version = parsed
		}
	}
	payload, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return processResult{ack: true}
	}

	state, err := c.idempotency.Claim(ctx, c.name, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return processResult{nack: true}
	}
	switch state {
	case idempotency.Done:
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	case idempotency.Busy:
		c.logg.Debug(logCtx, "event in flight elsewhere")
		return processResult{nack: true}
	}

	notifications, err := c.build(ctx, eventID, payload)
	if err == nil {
		err = c.repo.CreateMany(ctx, notifications)
	}
	if err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if releaseErr := c.idempotency.Release(ctx, c.name, eventID); releaseErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency claim", releaseErr)
		}
		return processResult{nack: true}
	}

	if err := c.idempotency.Complete(ctx, c.name, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "failed to mark event processed")
	}
	c.logg.Info(c.logg.WithField(logCtx, "created", len(notifications)), "notifications created")
	return processResult{ack: true}
}

func (c *Consumer) build(ctx context.Context, eventID uuid.UUID, payload any) ([]models.Notification, error) {
	switch p := payload.(type) {
	case *payloads.OrderPlacedEvent:
		return orderPlacedNotifications(eventID, p), nil
	case *payloads.OrderStatusChangedEvent:
		return []models.Notification{orderStatusNotification(eventID, p)}, nil
	case *payloads.OfferCreatedEvent:
		users, err := c.recipients.UsersWithItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("list offer recipients: %w", err)
		}
		return offerNotifications(eventID, p, users), nil
	case *payloads.LowStockDetectedEvent:
		return []models.Notification{lowStockNotification(eventID, p)}, nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", payload)
	}
}

func orderPlacedNotifications(eventID uuid.UUID, p *payloads.OrderPlacedEvent) []models.Notification {
	userID, orderID, evt := p.UserID, p.OrderID, eventID
	total := types.Money(p.TotalCents).String()
	return []models.Notification{
		{
			Audience: enums.NotificationAudienceUser,
			UserID:   &userID,
			Type:     enums.NotificationTypeOrder,
			Title:    "Order Confirmed",
			Message:  fmt.Sprintf("Your order %s has been confirmed and is being prepared.", p.OrderNumber),
			OrderID:  &orderID,
			EventID:  &evt,
		},
		{
			Audience: enums.NotificationAudienceAdmin,
			Type:     enums.NotificationTypeOrder,
			Title:    "New Order Placed",
			Message:  fmt.Sprintf("Order %s has been placed by %s. Total: %s", p.OrderNumber, p.UserEmail, total),
			OrderID:  &orderID,
			EventID:  &evt,
		},
	}
}

func orderStatusNotification(eventID uuid.UUID, p *payloads.OrderStatusChangedEvent) models.Notification {
	userID, orderID, evt := p.UserID, p.OrderID, eventID
	message, ok := statusMessages[p.Status]
	if !ok {
		message = fmt.Sprintf("Order status updated to %s", p.Status)
	}
	return models.Notification{
		Audience: enums.NotificationAudienceUser,
		UserID:   &userID,
		Type:     enums.NotificationTypeOrder,
		Title:    "Order Update",
		Message:  message,
		OrderID:  &orderID,
		EventID:  &evt,
	}
}

func offerNotifications(eventID uuid.UUID, p *payloads.OfferCreatedEvent, users []uuid.UUID) []models.Notification {
	out := make([]models.Notification, 0, len(users))
	for _, id := range users {
		userID, evt := id, eventID
		out = append(out, models.Notification{
			Audience: enums.NotificationAudienceUser,
			UserID:   &userID,
			Type:     enums.NotificationTypeOffer,
			Title:    "New Offer!",
			Message:  p.Title,
			EventID:  &evt,
		})
	}
	return out
}

func lowStockNotification(eventID uuid.UUID, p *payloads.LowStockDetectedEvent) models.Notification {
	evt := eventID
	message := fmt.Sprintf("%d products at or below %d units:", len(p.Products), p.Threshold)
	for _, product := range p.Products {
		message += fmt.Sprintf(" %s (%d),", product.Name, product.Stock)
	}
	if len(p.Products) > 0 {
		message = message[:len(message)-1]
	}
	return models.Notification{
		Audience: enums.NotificationAudienceAdmin,
		Type:     enums.NotificationTypeSystem,
		Title:    "Low Stock Alert",
		Message:  message,
		EventID:  &evt,
	}
}
