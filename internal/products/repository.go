package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/internal/repo"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

const effectivePriceExpr = "CASE WHEN p.sale_price_cents IS NOT NULL AND p.sale_price_cents < p.price_cents THEN p.sale_price_cents ELSE p.price_cents END"

// Repository provides catalog persistence.
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

// ListFilter narrows catalog listings. Price bounds apply to the effective price.
type ListFilter struct {
	Category      string `json:"category,omitempty"`
	Search        string `json:"search,omitempty"`
	Featured      *bool  `json:"featured,omitempty"`
	Organic       *bool  `json:"organic,omitempty"`
	Bestseller    *bool  `json:"bestseller,omitempty"`
	InStock       *bool  `json:"in_stock,omitempty"`
	MinPriceCents *int64 `json:"min_price_cents,omitempty"`
	MaxPriceCents *int64 `json:"max_price_cents,omitempty"`
}

// CategoryCount is one row of the category facet.
type CategoryCount struct {
	Category     string
	ProductCount int64
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns up to limit products newest first, starting after cursor.
// Callers pass a buffered limit to detect the next page.
func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	qb := r.DB(ctx).Table("products p").Select("p.*")

	if category := strings.TrimSpace(filter.Category); category != "" {
		qb = qb.Where("p.category = ?", category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(p.name) LIKE ? OR LOWER(COALESCE(p.description, '')) LIKE ? OR LOWER(p.category) LIKE ?)", pattern, pattern, pattern)
	}
	if filter.Featured != nil {
		qb = qb.Where("p.is_featured = ?", *filter.Featured)
	}
	if filter.Organic != nil {
		qb = qb.Where("p.is_organic = ?", *filter.Organic)
	}
	if filter.Bestseller != nil {
		qb = qb.Where("p.is_bestseller = ?", *filter.Bestseller)
	}
	if filter.InStock != nil {
		if *filter.InStock {
			qb = qb.Where("p.stock > 0")
		} else {
			qb = qb.Where("p.stock = 0")
		}
	}
	if filter.MinPriceCents != nil {
		qb = qb.Where(effectivePriceExpr+" >= ?", *filter.MinPriceCents)
	}
	if filter.MaxPriceCents != nil {
		qb = qb.Where(effectivePriceExpr+" <= ?", *filter.MaxPriceCents)
	}
	var products []models.Product
	err := qb.Scopes(repo.NewestFirst("p", cursor, limit)).Find(&products).Error
	return products, err
}

// Recommendations returns products in the same category as product, best rated first.
func (r *Repository) Recommendations(ctx context.Context, product models.Product, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.DB(ctx).
		Where("category = ? AND id <> ?", product.Category, product.ID).
		Order("rating DESC").
		Order("review_count DESC").
		Order("name ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *Repository) Categories(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.DB(ctx).
		Model(&models.Product{}).
		Select("category, COUNT(*) AS product_count").
		Group("category").
		Order("category ASC").
		Scan(&rows).Error
	return rows, err
}

// Snapshot returns a small catalog sample, featured and best rated first.
func (r *Repository) Snapshot(ctx context.Context, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.DB(ctx).
		Order("is_featured DESC").
		Order("rating DESC").
		Order("name ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Create(product).Error
}

// Update applies column updates and reports the affected row count.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	res := r.DB(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

// DecrementStock takes quantity units only if that many are on hand. Zero
// rows affected means a shortfall.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	return res.RowsAffected, res.Error
}

// UpdateRating stores the aggregate rating and review count.
func (r *Repository) UpdateRating(ctx context.Context, id uuid.UUID, rating float64, reviewCount int) error {
	return r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{"rating": rating, "review_count": reviewCount}).Error
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

func (r *Repository) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Product{}).Where("stock <= ?", threshold).Count(&count).Error
	return count, err
}

// ListLowStock returns products at or below threshold, scarcest first.
func (r *Repository) ListLowStock(ctx context.Context, threshold, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.DB(ctx).
		Where("stock <= ?", threshold).
		Order("stock ASC").
		Order("name ASC").
		Limit(limit).
		Find(&products).Error
	return products, err
}
