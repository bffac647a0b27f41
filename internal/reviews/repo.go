package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/internal/repo"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

// Repository stores product reviews.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	return r.DB(ctx).Create(review).Error
}

// ListForProduct returns reviews newest first; callers pass a buffered limit.
func (r *Repository) ListForProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	var rows []models.Review
	err := r.DB(ctx).
		Where("product_id = ?", productID).
		Scopes(repo.NewestFirst("", cursor, limit)).
		Find(&rows).Error
	return rows, err
}

type ratingAggregate struct {
	Average float64
	Count   int
}

// Aggregate computes the mean rating and review count for a product.
func (r *Repository) Aggregate(ctx context.Context, productID uuid.UUID) (ratingAggregate, error) {
	var agg ratingAggregate
	err := r.DB(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	return agg, err
}
