package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/grocerymart-backend/internal/repo"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
)

// Repository persists cart lines keyed by (user_id, product_id).
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

// LineRow is a cart line joined with the live catalog row. The live columns
// are nil when the product no longer exists.
type LineRow struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	ProductName    string
	PriceCents     int64
	SalePriceCents *int64
	ImageURL       *string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	LiveName           *string
	LivePriceCents     *int64
	LiveSalePriceCents *int64
	LiveImageURL       *string
	Stock              *int
}

// Upsert adds quantity to the user's line for the product, creating it when
// missing, in a single statement. The display snapshot is refreshed either way.
func (r *Repository) Upsert(ctx context.Context, item models.CartItem) (*models.CartItem, error) {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	err := r.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":         gorm.Expr("cart_items.quantity + excluded.quantity"),
				"product_name":     gorm.Expr("excluded.product_name"),
				"price_cents":      gorm.Expr("excluded.price_cents"),
				"sale_price_cents": gorm.Expr("excluded.sale_price_cents"),
				"image_url":        gorm.Expr("excluded.image_url"),
				"updated_at":       gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&item).Error
	if err != nil {
		return nil, err
	}
	return r.FindByUserProduct(ctx, item.UserID, item.ProductID)
}

func (r *Repository) FindByUserProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB(ctx).Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) FindForUser(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.DB(ctx).Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListLines returns the user's cart joined with live product data, oldest line first.
func (r *Repository) ListLines(ctx context.Context, userID uuid.UUID) ([]LineRow, error) {
	var rows []LineRow
	err := r.DB(ctx).
		Table("cart_items AS ci").
		Select(`ci.id, ci.product_id, ci.quantity, ci.product_name, ci.price_cents, ci.sale_price_cents,
			ci.image_url, ci.created_at, ci.updated_at,
			p.name AS live_name, p.price_cents AS live_price_cents, p.sale_price_cents AS live_sale_price_cents,
			p.image_url AS live_image_url, p.stock AS stock`).
		Joins("LEFT JOIN products p ON p.id = ci.product_id").
		Where("ci.user_id = ?", userID).
		Order("ci.created_at ASC").
		Order("ci.id ASC").
		Scan(&rows).Error
	return rows, err
}

// SetQuantity overwrites the quantity and reports how many rows matched.
func (r *Repository) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (int64, error) {
	res := r.DB(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Updates(map[string]any{
			"quantity":   quantity,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, userID, itemID uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteAllForUser clears the cart in one statement.
func (r *Repository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.DB(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// UsersWithItems returns every user that currently holds at least one line.
func (r *Repository) UsersWithItems(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).Model(&models.CartItem{}).Distinct("user_id").Pluck("user_id", &ids).Error
	return ids, err
}
