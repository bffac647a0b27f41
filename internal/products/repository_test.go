package product

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

func cents(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }

func TestRepositoryListFilters(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	dbtest.CreateProduct(t, conn, models.Product{Name: "Organic Bananas", Category: "Produce", PriceCents: 199, Stock: 10, IsOrganic: true})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Whole Milk", Category: "Dairy", PriceCents: 499, SalePriceCents: cents(349), Stock: 4, IsBestseller: true})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Sourdough", Category: "Bakery", PriceCents: 650, Stock: 0, IsFeatured: true})

	rows, err := repo.List(ctx, ListFilter{Category: "Dairy"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Whole Milk", rows[0].Name)

	rows, err = repo.List(ctx, ListFilter{Search: "BANANA"}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Organic Bananas", rows[0].Name)

	rows, err = repo.List(ctx, ListFilter{Organic: boolPtr(true)}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = repo.List(ctx, ListFilter{Featured: boolPtr(true)}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sourdough", rows[0].Name)

	rows, err = repo.List(ctx, ListFilter{InStock: boolPtr(true)}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// effective price of milk is 349
	rows, err = repo.List(ctx, ListFilter{MinPriceCents: cents(300), MaxPriceCents: cents(400)}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Whole Milk", rows[0].Name)
}

func TestRepositoryListCursorPaging(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"Oldest", "Middle", "Newest"} {
		dbtest.CreateProduct(t, conn, models.Product{Name: name, PriceCents: 100, Stock: 1, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	first, err := repo.List(ctx, ListFilter{}, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Newest", first[0].Name)
	assert.Equal(t, "Middle", first[1].Name)

	cursor := pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	rest, err := repo.List(ctx, ListFilter{}, &cursor, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "Oldest", rest[0].Name)
}

func TestRepositoryRecommendationsSameCategoryByRating(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	target := dbtest.CreateProduct(t, conn, models.Product{Name: "Gala Apples", PriceCents: 299, Stock: 5})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Pears", PriceCents: 199, Stock: 5, Rating: 4.1, ReviewCount: 3})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Plums", PriceCents: 199, Stock: 5, Rating: 4.8, ReviewCount: 12})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Cheddar", Category: "Dairy", PriceCents: 599, Stock: 5, Rating: 5})

	rows, err := repo.Recommendations(ctx, target, 6)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Plums", rows[0].Name)
	assert.Equal(t, "Pears", rows[1].Name)
}

func TestRepositoryCategories(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	dbtest.CreateProduct(t, conn, models.Product{Name: "Kale", PriceCents: 299})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Spinach", PriceCents: 299})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Yogurt", Category: "Dairy", PriceCents: 199})

	rows, err := repo.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CategoryCount{Category: "Dairy", ProductCount: 1}, rows[0])
	assert.Equal(t, CategoryCount{Category: "Produce", ProductCount: 2}, rows[1])
}

func TestRepositoryDecrementStockIsConditional(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	eggs := dbtest.CreateProduct(t, conn, models.Product{Name: "Eggs", PriceCents: 399, Stock: 3})

	affected, err := repo.DecrementStock(ctx, eggs.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.DecrementStock(ctx, eggs.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	reloaded, err := repo.GetByID(ctx, eggs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Stock)
}

func TestRepositoryLowStock(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	dbtest.CreateProduct(t, conn, models.Product{Name: "Butter", PriceCents: 499, Stock: 2})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Avocado", PriceCents: 149})
	dbtest.CreateProduct(t, conn, models.Product{Name: "Rice", PriceCents: 899, Stock: 40})

	count, err := repo.CountLowStock(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	rows, err := repo.ListLowStock(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Avocado", rows[0].Name)
	assert.Equal(t, "Butter", rows[1].Name)

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
