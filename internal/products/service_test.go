package product

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	client := redis.NewFromRaw(raw)
	return NewCache(client, config.CatalogConfig{CacheTTL: time.Minute}, testLogger()), client
}

func newTestService(t *testing.T) (Service, *gorm.DB, *redis.Client) {
	t.Helper()
	conn := dbtest.Open(t)
	cache, client := newTestCache(t)
	svc, err := NewService(NewRepository(conn), cache, testLogger())
	require.NoError(t, err)
	return svc, conn, client
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, nil, testLogger())
	require.Error(t, err)
	_, err = NewService(NewRepository(dbtest.Open(t)), nil, nil)
	require.Error(t, err)
}

func TestGetRendersDerivedPricing(t *testing.T) {
	svc, conn, _ := newTestService(t)
	p := dbtest.CreateProduct(t, conn, models.Product{Name: "Strawberries", PriceCents: 500, SalePriceCents: cents(399), Stock: 8})

	dto, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "3.99", dto.EffectivePrice.String())
	require.NotNil(t, dto.DiscountPercent)
	assert.Equal(t, 20, *dto.DiscountPercent)
	assert.True(t, dto.InStock)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListPaginatesAndCaches(t *testing.T) {
	svc, conn, client := newTestService(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		dbtest.CreateProduct(t, conn, models.Product{Name: "Item", PriceCents: 100, Stock: 1, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	page, err := svc.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Pagination.HasMore)

	next, err := svc.List(ctx, ListQuery{Limit: 2, Cursor: page.Pagination.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.False(t, next.Pagination.HasMore)

	// a row written behind the service stays hidden until the version moves
	dbtest.CreateProduct(t, conn, models.Product{Name: "Late", PriceCents: 100, Stock: 1, CreatedAt: base.Add(time.Hour)})
	cached, err := svc.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, page.Items[0].ID, cached.Items[0].ID)

	_, err = client.BumpCounter(ctx, VersionCounter)
	require.NoError(t, err)
	fresh, err := svc.List(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "Late", fresh.Items[0].Name)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, ListQuery{Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(ctx, ListQuery{Filter: ListFilter{MinPriceCents: cents(500), MaxPriceCents: cents(100)}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateValidatesAndBumpsVersion(t *testing.T) {
	svc, _, client := newTestService(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Category: "Produce", PriceCents: 100},
		{Name: "Kiwi", PriceCents: 100},
		{Name: "Kiwi", Category: "Produce"},
		{Name: "Kiwi", Category: "Produce", PriceCents: 100, Stock: -1},
		{Name: "Kiwi", Category: "Produce", PriceCents: 100, SalePriceCents: cents(100)},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%+v", input)
	}

	dto, err := svc.Create(ctx, CreateInput{Name: "  Kiwi ", Category: "Produce", PriceCents: 250, SalePriceCents: cents(200), Stock: 12, IsOrganic: true})
	require.NoError(t, err)
	assert.Equal(t, "Kiwi", dto.Name)
	assert.True(t, dto.IsOrganic)

	version, err := client.Counter(ctx, VersionCounter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestUpdateMergesPartialChanges(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	p := dbtest.CreateProduct(t, conn, models.Product{Name: "Oat Milk", Category: "Dairy", PriceCents: 450, SalePriceCents: cents(399), Stock: 6})

	price := int64(350)
	_, err := svc.Update(ctx, p.ID, UpdateInput{PriceCents: &price})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "sale price would exceed the new price")

	stock := 0
	dto, err := svc.Update(ctx, p.ID, UpdateInput{PriceCents: &price, ClearSalePrice: true, Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, "3.50", dto.Price.String())
	assert.Nil(t, dto.SalePrice)
	assert.False(t, dto.InStock)
	assert.Equal(t, "Oat Milk", dto.Name)

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Stock: &stock})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteAndRecommendations(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()
	a := dbtest.CreateProduct(t, conn, models.Product{Name: "Lemons", PriceCents: 99, Stock: 5})
	b := dbtest.CreateProduct(t, conn, models.Product{Name: "Limes", PriceCents: 89, Stock: 5, Rating: 4.5})

	recs, err := svc.Recommendations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, b.ID, recs[0].ID)

	require.NoError(t, svc.Delete(ctx, b.ID))
	err = svc.Delete(ctx, b.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	recs, err = svc.Recommendations(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, recs)

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, CategoryDTO{Name: "Produce", ProductCount: 1}, cats[0])
}

func TestFetchWithoutStoreLoadsDirectly(t *testing.T) {
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return 7, nil
	}
	var cache *Cache
	v, err := Fetch(context.Background(), cache, "n", nil, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	v, err = Fetch(context.Background(), cache, "n", nil, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestFetchServesFromRedis(t *testing.T) {
	cache, _ := newTestCache(t)
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := Fetch(context.Background(), cache, "letters", map[string]int{"page": 1}, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, v)
	}
	assert.Equal(t, 1, calls)

	require.NoError(t, cache.Invalidate(context.Background()))
	_, err := Fetch(context.Background(), cache, "letters", map[string]int{"page": 1}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
