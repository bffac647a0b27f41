package reviews

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/internal/orders"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	"github.com/angelmondragon/grocerymart-backend/internal/users"
	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func strPtr(v string) *string { return &v }

func newTestService(t *testing.T) (Service, *gorm.DB, *countingInvalidator) {
	t.Helper()
	conn := dbtest.Open(t)
	catalog := &countingInvalidator{}
	svc, err := NewService(Params{
		Repo:     NewRepository(conn),
		Products: product.NewRepository(conn),
		Orders:   orders.NewRepository(conn),
		Users:    users.NewRepository(conn),
		Tx:       db.Wrap(conn),
		Catalog:  catalog,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, conn, catalog
}

func seedDeliveredOrder(t *testing.T, conn *gorm.DB, user models.User, productID uuid.UUID) {
	t.Helper()
	pid := productID
	order := models.Order{
		OrderNumber:     "GM" + uuid.NewString()[:12],
		UserID:          user.ID,
		UserEmail:       user.Email,
		Status:          enums.OrderStatusDelivered,
		PaymentStatus:   enums.PaymentStatusPaid,
		PaymentMethod:   enums.PaymentMethodCard,
		SubtotalCents:   500,
		TotalCents:      500,
		DeliveryAddress: "1 Elm",
		Items: []models.OrderItem{
			{ProductID: &pid, ProductName: "Apples", Quantity: 1, ListPriceCents: 500, UnitPriceCents: 500, LineTotalCents: 500},
		},
	}
	require.NoError(t, conn.Create(&order).Error)
}

func TestCreateRecomputesRatingAndVerifies(t *testing.T) {
	svc, conn, catalog := newTestService(t)
	ctx := context.Background()
	apples := dbtest.CreateProduct(t, conn, models.Product{Name: "Apples", PriceCents: 500, Stock: 5})
	buyer := dbtest.CreateUser(t, conn, "buyer@example.com", enums.SystemRoleCustomer)
	browser := dbtest.CreateUser(t, conn, "browser@example.com", enums.SystemRoleCustomer)
	seedDeliveredOrder(t, conn, buyer, apples.ID)

	first, err := svc.Create(ctx, buyer.ID, CreateInput{ProductID: apples.ID, Rating: 5, Comment: strPtr("  crisp  ")})
	require.NoError(t, err)
	assert.True(t, first.IsVerified)
	require.NotNil(t, first.Comment)
	assert.Equal(t, "crisp", *first.Comment)
	require.NotNil(t, first.UserName)
	assert.Equal(t, buyer.Name, *first.UserName)

	second, err := svc.Create(ctx, browser.ID, CreateInput{ProductID: apples.ID, Rating: 2})
	require.NoError(t, err)
	assert.False(t, second.IsVerified)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", apples.ID).Error)
	assert.InDelta(t, 3.5, stored.Rating, 0.001)
	assert.Equal(t, 2, stored.ReviewCount)
	assert.Equal(t, 2, catalog.calls)
}

func TestCreateOnePerUser(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	apples := dbtest.CreateProduct(t, conn, models.Product{Name: "Apples", PriceCents: 500, Stock: 5})
	user := dbtest.CreateUser(t, conn, "twice@example.com", enums.SystemRoleCustomer)

	_, err := svc.Create(ctx, user.ID, CreateInput{ProductID: apples.ID, Rating: 4})
	require.NoError(t, err)
	_, err = svc.Create(ctx, user.ID, CreateInput{ProductID: apples.ID, Rating: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", apples.ID).Error)
	assert.Equal(t, 1, stored.ReviewCount)
	assert.InDelta(t, 4.0, stored.Rating, 0.001)
}

func TestCreateValidation(t *testing.T) {
	svc, conn, catalog := newTestService(t)
	ctx := context.Background()
	user := dbtest.CreateUser(t, conn, "v@example.com", enums.SystemRoleCustomer)
	apples := dbtest.CreateProduct(t, conn, models.Product{Name: "Apples", PriceCents: 500, Stock: 5})

	_, err := svc.Create(ctx, user.ID, CreateInput{ProductID: apples.ID, Rating: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, user.ID, CreateInput{ProductID: apples.ID, Rating: 6})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, user.ID, CreateInput{ProductID: uuid.New(), Rating: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = svc.Create(ctx, uuid.Nil, CreateInput{ProductID: apples.ID, Rating: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Zero(t, catalog.calls)
}

func TestListNewestFirst(t *testing.T) {
	svc, conn, _ := newTestService(t)
	productID := uuid.New()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Create(&models.Review{
			ProductID: productID,
			UserID:    uuid.New(),
			Rating:    i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	page, err := svc.List(context.Background(), productID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Items[0].Rating)
	assert.True(t, page.Pagination.HasMore)

	rest, err := svc.List(context.Background(), productID, pagination.Params{Limit: 2, Cursor: page.Pagination.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, 1, rest.Items[0].Rating)
}
