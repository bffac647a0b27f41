package offers

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func newTestService(t *testing.T) (*service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), outbox.NewService(outbox.NewRepository(conn), logg), logg)
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return impl, conn
}

func TestCreateQueuesOfferCreated(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	admin := uuid.New()

	dto, err := svc.Create(ctx, outbox.ActorRef{UserID: admin, Role: "admin"}, CreateInput{
		Title:           "Weekend Produce",
		DiscountPercent: intPtr(15),
		CouponCode:      strPtr("  fresh15 "),
		IsActive:        true,
	})
	require.NoError(t, err)
	require.NotNil(t, dto.CouponCode)
	assert.Equal(t, "FRESH15", *dto.CouponCode)
	assert.True(t, dto.IsLive)

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventOfferCreated, events[0].EventType)
	assert.Equal(t, dto.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	assert.Contains(t, string(envelope.Data), "Weekend Produce")
}

func TestCreateValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	from := fixedNow
	until := fixedNow.Add(-time.Hour)

	inputs := []CreateInput{
		{Title: " "},
		{Title: "Too much", DiscountPercent: intPtr(101)},
		{Title: "Backwards", ValidFrom: &from, ValidUntil: &until},
	}
	for _, input := range inputs {
		_, err := svc.Create(ctx, outbox.ActorRef{}, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), input.Title)
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateDuplicateCouponConflicts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, outbox.ActorRef{}, CreateInput{Title: "One", CouponCode: strPtr("SAVE10"), IsActive: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, outbox.ActorRef{}, CreateInput{Title: "Two", CouponCode: strPtr("save10"), IsActive: true})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "failed insert rolls back its event")
}

func TestListActiveRespectsWindowAndFlag(t *testing.T) {
	svc, conn := newTestService(t)
	past := fixedNow.Add(-48 * time.Hour)
	yesterday := fixedNow.Add(-24 * time.Hour)
	tomorrow := fixedNow.Add(24 * time.Hour)

	require.NoError(t, conn.Create(&models.Offer{Title: "Always", IsActive: true}).Error)
	require.NoError(t, conn.Create(&models.Offer{Title: "Windowed", IsActive: true, ValidFrom: &yesterday, ValidUntil: &tomorrow}).Error)
	require.NoError(t, conn.Create(&models.Offer{Title: "Expired", IsActive: true, ValidFrom: &past, ValidUntil: &yesterday}).Error)
	require.NoError(t, conn.Create(&models.Offer{Title: "Future", IsActive: true, ValidFrom: &tomorrow}).Error)
	require.NoError(t, conn.Create(&models.Offer{Title: "Off", IsActive: false}).Error)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	titles := make([]string, 0, len(active))
	for _, o := range active {
		titles = append(titles, o.Title)
	}
	assert.ElementsMatch(t, []string{"Always", "Windowed"}, titles)

	all, err := svc.ListAll(context.Background(), pagination.Params{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, all.Items, 3)
	assert.True(t, all.Pagination.HasMore)

	count, err := svc.repo.CountActive(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestFindActiveByCode(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	require.NoError(t, conn.Create(&models.Offer{Title: "Live", CouponCode: strPtr("LIVE5"), IsActive: true}).Error)
	require.NoError(t, conn.Create(&models.Offer{Title: "Dead", CouponCode: strPtr("DEAD5"), IsActive: false}).Error)

	offer, err := svc.repo.FindActiveByCode(ctx, "LIVE5", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Live", offer.Title)

	_, err = svc.repo.FindActiveByCode(ctx, "DEAD5", fixedNow)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, outbox.ActorRef{}, CreateInput{Title: "Dairy Days", DiscountPercent: intPtr(10), CouponCode: strPtr("DAIRY"), IsActive: true})
	require.NoError(t, err)

	off := false
	updated, err := svc.Update(ctx, created.ID, UpdateInput{IsActive: &off, ClearDiscount: true, CouponCode: strPtr("")})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.False(t, updated.IsLive)
	assert.Nil(t, updated.DiscountPercent)
	assert.Nil(t, updated.CouponCode)

	_, err = svc.Update(ctx, created.ID, UpdateInput{DiscountPercent: intPtr(-1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, created.ID), pkgerrors.CodeNotFound))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
