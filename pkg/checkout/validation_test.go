package checkout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
)

func TestValidateStockPasses(t *testing.T) {
	err := ValidateStock([]StockValidationInput{
		{ProductID: uuid.New(), ProductName: "Milk", Available: 4, Quantity: 4},
		{ProductID: uuid.New(), ProductName: "Eggs", Available: 12, Quantity: 1},
	})
	require.NoError(t, err)
	require.NoError(t, ValidateStock(nil))
}

func TestValidateStockReportsEveryShortLine(t *testing.T) {
	bread := uuid.New()
	err := ValidateStock([]StockValidationInput{
		{ProductID: bread, ProductName: "Bread", Available: 1, Quantity: 3},
		{ProductID: uuid.New(), ProductName: "Milk", Available: 5, Quantity: 2},
		{ProductID: uuid.New(), ProductName: "Kale", Available: 0, Quantity: 1},
	})
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	shortfalls, ok := details["shortfalls"].([]StockShortfallDetail)
	require.True(t, ok)
	require.Len(t, shortfalls, 2)
	assert.Equal(t, bread, shortfalls[0].ProductID)
	assert.Equal(t, 3, shortfalls[0].RequestedQty)
}
