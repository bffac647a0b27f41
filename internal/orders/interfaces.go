package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their item snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.OrderStatus, updates map[string]any) (int64, error)
	RestockItems(ctx context.Context, orderID uuid.UUID) (int, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error)
	RevenueCents(ctx context.Context) (int64, error)
	HasDeliveredProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// ListFilter scopes order listings. A nil UserID lists every customer.
type ListFilter struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}
