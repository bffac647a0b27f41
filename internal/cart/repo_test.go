package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
)

func TestUpsertRefreshesSnapshot(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID, productID := uuid.New(), uuid.New()

	first, err := repo.Upsert(ctx, models.CartItem{UserID: userID, ProductID: productID, Quantity: 2, ProductName: "Old", PriceCents: 100})
	require.NoError(t, err)
	second, err := repo.Upsert(ctx, models.CartItem{UserID: userID, ProductID: productID, Quantity: 1, ProductName: "New", PriceCents: 120})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, second.Quantity)
	assert.Equal(t, "New", second.ProductName)
	assert.Equal(t, int64(120), second.PriceCents)
}

func TestListLinesFallsBackToSnapshot(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.Upsert(ctx, models.CartItem{UserID: userID, ProductID: uuid.New(), Quantity: 1, ProductName: "Gone", PriceCents: 900})
	require.NoError(t, err)

	rows, err := repo.ListLines(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].LivePriceCents)
	assert.Nil(t, rows[0].Stock)

	line := LineFromRow(rows[0])
	assert.Equal(t, "Gone", line.Name)
	assert.False(t, line.Available)
}

func TestUsersWithItems(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	for _, uid := range []uuid.UUID{a, a, b} {
		_, err := repo.Upsert(ctx, models.CartItem{UserID: uid, ProductID: uuid.New(), Quantity: 1, ProductName: "x", PriceCents: 1})
		require.NoError(t, err)
	}

	ids, err := repo.UsersWithItems(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, ids)
}
