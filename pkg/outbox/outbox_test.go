package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
)

type placed struct {
	OrderNumber string `json:"order_number"`
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{UserID: uuid.New(), Role: "customer"},
			Data:          placed{OrderNumber: "GM1"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	envelope, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Version)
	_, err = envelope.EventUUID()
	require.NoError(t, err)

	var data placed
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "GM1", data.OrderNumber)
}

func TestEmitRollsBackWithBusinessTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOfferCreated,
			AggregateType: enums.AggregateOffer,
			AggregateID:   uuid.New(),
			Data:          map[string]string{"title": "x"},
		}); err != nil {
			return err
		}
		return errors.New("business failure")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidation(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	require.Error(t, svc.Emit(ctx, nil, DomainEvent{EventType: enums.EventOrderPlaced, AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: "unknown", AggregateID: uuid.New()}))
	require.Error(t, svc.Emit(ctx, conn, DomainEvent{EventType: enums.EventOrderPlaced}))
}

func TestEmitIfNotExists(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	event := DomainEvent{
		EventType:     enums.EventLowStockDetected,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Data:          map[string]any{"day": "2025-03-01"},
	}

	var first, second bool
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = svc.EmitIfNotExists(context.Background(), tx, event)
		return err
	}))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = svc.EmitIfNotExists(context.Background(), tx, event)
		return err
	}))
	assert.True(t, first)
	assert.False(t, second)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	older := models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     time.Now().UTC().Add(-time.Minute),
	}
	newer := older
	newer.AggregateID = uuid.New()
	newer.CreatedAt = time.Now().UTC()
	exhausted := older
	exhausted.AggregateID = uuid.New()
	exhausted.AttemptCount = 5
	for _, row := range []*models.OutboxEvent{&older, &newer, &exhausted} {
		require.NoError(t, conn.Create(row).Error)
	}

	var batch []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, batch, 2)
	assert.Equal(t, older.ID, batch[0].ID)
	assert.Equal(t, newer.ID, batch[1].ID)

	require.NoError(t, repo.MarkPublishedTx(conn, older.ID))
	require.NoError(t, repo.MarkFailedTx(conn, newer.ID, errors.New("pubsub unavailable")))

	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", newer.ID).Error)
	assert.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "pubsub unavailable", *failed.LastError)

	require.NoError(t, repo.MarkTerminalTx(conn, newer.ID, errors.New("gave up"), 5))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		batch, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	assert.Empty(t, batch)
}

func TestDeletePublishedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()
	old := now.Add(-10 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &old},
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), PublishedAt: &recent},
		{EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	deleted, err := repo.DeletePublishedBefore(context.Background(), now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func parkedEntry(eventID uuid.UUID, reason enums.OutboxDLQErrorReason, msg string) models.OutboxDLQ {
	return models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  10,
	}
}

func TestDLQParkLookupAndList(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	ctx := context.Background()
	eventID := uuid.New()

	require.NoError(t, repo.Park(conn, parkedEntry(eventID, enums.OutboxDLQReasonMaxAttempts, string(make([]byte, 2000)))))
	require.Error(t, repo.Park(nil, models.OutboxDLQ{}))

	found, err := repo.Lookup(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Len(t, *found.ErrorMessage, maxLastErrorLen)

	missing, err := repo.Lookup(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	reason := enums.OutboxDLQReasonNonRetryable
	rows, err := repo.List(ctx, DLQFilter{Reason: &reason})
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = repo.List(ctx, DLQFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDLQRequeueResetsParkedRow(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	dlq := NewDLQRepository(conn)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  10,
	}
	require.NoError(t, NewRepository(conn).Insert(conn, event))
	require.NoError(t, dlq.Park(conn, event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, errors.New("topic missing"), time.Now())))

	ok, err := dlq.Requeue(ctx, event.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", event.ID).Error)
	assert.Zero(t, row.AttemptCount)
	assert.Nil(t, row.LastError)

	gone, err := dlq.Lookup(ctx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	ok, err = dlq.Requeue(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second requeue finds nothing parked")
}

func TestDLQRequeueRebuildsMissingRow(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	eventID := uuid.New()
	require.NoError(t, dlq.Park(conn, parkedEntry(eventID, enums.OutboxDLQReasonNonRetryable, "bad payload")))

	ok, err := dlq.Requeue(context.Background(), eventID)
	require.NoError(t, err)
	require.True(t, ok)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", eventID).Error)
	assert.Equal(t, enums.EventOrderPlaced, row.EventType)
	assert.JSONEq(t, `{"version":1}`, string(row.Payload))
}

func TestEmitUsesRowIDAsEventID(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Data:          placed{OrderNumber: "GM2"},
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	envelope, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, row.ID.String(), envelope.EventID)
	assert.True(t, fixed.Equal(envelope.OccurredAt))
}
