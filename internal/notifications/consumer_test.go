package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/registry"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

type stubRecipients struct {
	users []uuid.UUID
	err   error
}

func (s *stubRecipients) UsersWithItems(context.Context) ([]uuid.UUID, error) {
	return s.users, s.err
}

func newTestConsumer(t *testing.T, recipients *stubRecipients) (*Consumer, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	manager, err := idempotency.NewManager(redis.NewFromRaw(raw), time.Hour)
	require.NoError(t, err)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	consumer, err := NewConsumer(OrderConsumerName, NewRepository(conn), recipients, nil, manager, registry.NewPayloadDecoders(), logg)
	require.NoError(t, err)
	return consumer, conn
}

func newMessage(t *testing.T, eventType enums.OutboxEventType, eventID uuid.UUID, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       body,
		Attributes: map[string]string{"event_type": string(eventType), "version": "1"},
	}
}

func countNotifications(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Count(&count).Error)
	return count
}

func TestOrderPlacedNotifiesCustomerAndAdmin(t *testing.T) {
	consumer, conn := newTestConsumer(t, &stubRecipients{})
	ctx := context.Background()
	userID, orderID, eventID := uuid.New(), uuid.New(), uuid.New()
	msg := newMessage(t, enums.EventOrderPlaced, eventID, payloads.OrderPlacedEvent{
		OrderID:     orderID,
		OrderNumber: "GM20250601120000000042",
		UserID:      userID,
		UserEmail:   "ana@example.com",
		TotalCents:  22785,
	})

	result := consumer.process(ctx, msg)
	assert.True(t, result.ack)

	var rows []models.Notification
	require.NoError(t, conn.Order("audience DESC").Find(&rows).Error)
	require.Len(t, rows, 2)

	user, admin := rows[0], rows[1]
	assert.Equal(t, enums.NotificationAudienceUser, user.Audience)
	assert.Equal(t, "Order Confirmed", user.Title)
	require.NotNil(t, user.UserID)
	assert.Equal(t, userID, *user.UserID)
	assert.Contains(t, user.Message, "GM20250601120000000042")

	assert.Equal(t, enums.NotificationAudienceAdmin, admin.Audience)
	assert.Equal(t, "New Order Placed", admin.Title)
	assert.Nil(t, admin.UserID)
	assert.Contains(t, admin.Message, "ana@example.com")
	assert.Contains(t, admin.Message, "227.85")
	require.NotNil(t, admin.OrderID)
	assert.Equal(t, orderID, *admin.OrderID)

	redelivered := consumer.process(ctx, msg)
	assert.True(t, redelivered.ack)
	assert.Equal(t, int64(2), countNotifications(t, conn), "redelivery is deduplicated")
}

func TestOrderStatusChangedUsesStatusMessage(t *testing.T) {
	consumer, conn := newTestConsumer(t, &stubRecipients{})
	userID := uuid.New()
	msg := newMessage(t, enums.EventOrderStatusChanged, uuid.New(), payloads.OrderStatusChangedEvent{
		OrderID:        uuid.New(),
		UserID:         userID,
		PreviousStatus: enums.OrderStatusPacked,
		Status:         enums.OrderStatusShipped,
	})

	require.True(t, consumer.process(context.Background(), msg).ack)

	var row models.Notification
	require.NoError(t, conn.First(&row).Error)
	assert.Equal(t, "Order Update", row.Title)
	assert.Equal(t, "Your order has been shipped and is on its way!", row.Message)
	assert.Equal(t, enums.NotificationTypeOrder, row.Type)
}

func TestOfferCreatedFansOutToCartHolders(t *testing.T) {
	recipients := &stubRecipients{err: errors.New("db down")}
	consumer, conn := newTestConsumer(t, recipients)
	ctx := context.Background()
	msg := newMessage(t, enums.EventOfferCreated, uuid.New(), payloads.OfferCreatedEvent{OfferID: uuid.New(), Title: "Weekend Produce"})

	failed := consumer.process(ctx, msg)
	assert.True(t, failed.nack)
	assert.Zero(t, countNotifications(t, conn))

	recipients.err = nil
	recipients.users = []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	retried := consumer.process(ctx, msg)
	assert.True(t, retried.ack, "claim released after failure")

	var rows []models.Notification
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "New Offer!", row.Title)
		assert.Equal(t, "Weekend Produce", row.Message)
		assert.Equal(t, enums.NotificationTypeOffer, row.Type)
	}
}

func TestLowStockCreatesAdminSystemNotification(t *testing.T) {
	consumer, conn := newTestConsumer(t, &stubRecipients{})
	msg := newMessage(t, enums.EventLowStockDetected, uuid.New(), payloads.LowStockDetectedEvent{
		Day:       "2025-06-01",
		Threshold: 5,
		Products:  []payloads.LowStockProduct{{ProductID: uuid.New(), Name: "Milk", Stock: 2}},
	})

	require.True(t, consumer.process(context.Background(), msg).ack)

	var row models.Notification
	require.NoError(t, conn.First(&row).Error)
	assert.Equal(t, enums.NotificationAudienceAdmin, row.Audience)
	assert.Equal(t, enums.NotificationTypeSystem, row.Type)
	assert.Equal(t, "1 products at or below 5 units: Milk (2)", row.Message)
}

func TestProcessAcksUnusableMessages(t *testing.T) {
	consumer, conn := newTestConsumer(t, &stubRecipients{})
	ctx := context.Background()

	other := &pubsub.Message{Attributes: map[string]string{"event_type": "something_else"}}
	assert.True(t, consumer.process(ctx, other).ack)

	garbled := &pubsub.Message{Data: []byte("{"), Attributes: map[string]string{"event_type": string(enums.EventOrderPlaced)}}
	assert.True(t, consumer.process(ctx, garbled).ack)

	assert.Zero(t, countNotifications(t, conn))
}

func TestProcessNacksWhileAnotherDeliveryHoldsTheClaim(t *testing.T) {
	consumer, conn := newTestConsumer(t, &stubRecipients{})
	ctx := context.Background()
	eventID := uuid.New()
	msg := newMessage(t, enums.EventLowStockDetected, eventID, payloads.LowStockDetectedEvent{
		Day:       "2025-06-02",
		Threshold: 5,
		Products:  []payloads.LowStockProduct{{ProductID: uuid.New(), Name: "Oat Milk", Stock: 2}},
	})

	state, err := consumer.idempotency.Claim(ctx, consumer.name, eventID)
	require.NoError(t, err)
	require.Equal(t, idempotency.Acquired, state)

	result := consumer.process(ctx, msg)
	assert.True(t, result.nack)
	assert.Zero(t, countNotifications(t, conn))
}
