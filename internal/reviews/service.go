package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/internal/orders"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	"github.com/angelmondragon/grocerymart-backend/internal/users"
	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

const maxCommentLength = 2000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

type ReviewDTO struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	UserName   *string   `json:"user_name,omitempty"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

type ListResult = types.ListResult[ReviewDTO]

type CreateInput struct {
	ProductID uuid.UUID
	Rating    int
	Comment   *string
}

func FromModel(r models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         r.ID,
		ProductID:  r.ProductID,
		UserName:   r.UserName,
		Rating:     r.Rating,
		Comment:    r.Comment,
		IsVerified: r.IsVerified,
		CreatedAt:  r.CreatedAt,
	}
}

// Service lists and records product reviews.
type Service interface {
	List(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*ReviewDTO, error)
}

type Params struct {
	Repo     *Repository
	Products *product.Repository
	Orders   orders.Repository
	Users    *users.Repository
	Tx       txRunner
	Catalog  catalogInvalidator
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	products *product.Repository
	orders   orders.Repository
	users    *users.Repository
	tx       txRunner
	catalog  catalogInvalidator
	logg     *logger.Logger
}

func NewService(p Params) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("reviews repository required")
	case p.Products == nil:
		return nil, fmt.Errorf("products repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     p.Repo,
		products: p.Products,
		orders:   p.Orders,
		users:    p.Users,
		tx:       p.Tx,
		catalog:  p.Catalog,
		logg:     p.Logger,
	}, nil
}

func (s *service) List(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListForProduct(ctx, productID, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	page, next := pagination.Page(rows, limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	items := make([]ReviewDTO, 0, len(page))
	for _, row := range page {
		items = append(items, FromModel(row))
	}
	return &ListResult{Items: items, Pagination: types.NewPagination(limit, next)}, nil
}

// Create stores the review and recomputes the product rating in one transaction.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*ReviewDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	comment := trimOptional(input.Comment)
	if comment != nil && len(*comment) > maxCommentLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment is too long")
	}

	review := models.Review{
		ProductID: input.ProductID,
		UserID:    userID,
		Rating:    input.Rating,
		Comment:   comment,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.products.WithTx(tx).GetByID(ctx, input.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return err
		}
		user, err := s.users.WithTx(tx).FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
			}
			return err
		}
		if name := strings.TrimSpace(user.Name); name != "" {
			review.UserName = &name
		}

		verified, err := s.orders.WithTx(tx).HasDeliveredProduct(ctx, userID, input.ProductID)
		if err != nil {
			return err
		}
		review.IsVerified = verified

		if err := s.repo.WithTx(tx).Create(ctx, &review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "you have already reviewed this product")
			}
			return err
		}

		agg, err := s.repo.WithTx(tx).Aggregate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		rating, _ := decimal.NewFromFloat(agg.Average).Round(2).Float64()
		return s.products.WithTx(tx).UpdateRating(ctx, input.ProductID, rating, agg.Count)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
	}

	if s.catalog != nil {
		if err := s.catalog.Invalidate(ctx); err != nil {
			s.logg.Error(ctx, "catalog cache invalidation failed", err)
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"product_id": input.ProductID.String(),
		"review_id":  review.ID.String(),
	}), "review created")

	dto := FromModel(review)
	return &dto, nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
