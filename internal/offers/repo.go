package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/internal/repo"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

const liveClause = "is_active = ? AND (valid_from IS NULL OR valid_from <= ?) AND (valid_until IS NULL OR valid_until >= ?)"

// Repository persists promotional offers.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

func (r *Repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.DB(ctx).Create(offer).Error
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.DB(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).Model(&models.Offer{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Offer{})
	return res.RowsAffected, res.Error
}

// ListActive returns offers that are switched on and inside their window at now.
func (r *Repository) ListActive(ctx context.Context, now time.Time) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.DB(ctx).
		Where(liveClause, true, now, now).
		Order("created_at DESC").
		Order("id DESC").
		Find(&offers).Error
	return offers, err
}

func (r *Repository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Offer{}).Where(liveClause, true, now, now).Count(&count).Error
	return count, err
}

// ListAll pages through every offer newest first.
func (r *Repository) ListAll(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.DB(ctx).Scopes(repo.NewestFirst("", cursor, limit)).Find(&offers).Error
	return offers, err
}

// FindActiveByCode looks up a live offer by its normalized coupon code.
func (r *Repository) FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Offer, error) {
	var offer models.Offer
	err := r.DB(ctx).
		Where("coupon_code = ?", code).
		Where(liveClause, true, now, now).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}
