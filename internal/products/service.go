package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

const recommendationLimit = 6

type productRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error)
	Recommendations(ctx context.Context, product models.Product, limit int) ([]models.Product, error)
	Categories(ctx context.Context) ([]CategoryCount, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// Service exposes the public catalog and admin product management.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, query ListQuery) (*ListResult, error)
	Recommendations(ctx context.Context, id uuid.UUID) ([]ProductDTO, error)
	Categories(ctx context.Context) ([]CategoryDTO, error)
	Create(ctx context.Context, input CreateInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo  productRepository
	cache *Cache
	logg  *logger.Logger
}

// NewService builds the catalog service. cache may be nil.
func NewService(repo productRepository, cache *Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, cache: cache, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*product)
	return &dto, nil
}

func (s *service) List(ctx context.Context, query ListQuery) (*ListResult, error) {
	if err := validateFilter(query.Filter); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Limit = pagination.NormalizeLimit(query.Limit)

	return Fetch(ctx, s.cache, "list", query, func(ctx context.Context) (*ListResult, error) {
		rows, err := s.repo.List(ctx, query.Filter, cursor, pagination.LimitWithBuffer(query.Limit))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
		}
		page, next := pagination.Page(rows, query.Limit, func(p models.Product) pagination.Cursor {
			return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
		})
		return &ListResult{
			Items:      fromModels(page),
			Pagination: types.NewPagination(query.Limit, next),
		}, nil
	})
}

func (s *service) Recommendations(ctx context.Context, id uuid.UUID) ([]ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return Fetch(ctx, s.cache, "recommendations", id, func(ctx context.Context) ([]ProductDTO, error) {
		rows, err := s.repo.Recommendations(ctx, *product, recommendationLimit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list recommendations")
		}
		return fromModels(rows), nil
	})
}

func (s *service) Categories(ctx context.Context) ([]CategoryDTO, error) {
	return Fetch(ctx, s.cache, "categories", nil, func(ctx context.Context) ([]CategoryDTO, error) {
		rows, err := s.repo.Categories(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
		}
		out := make([]CategoryDTO, 0, len(rows))
		for _, row := range rows {
			out = append(out, CategoryDTO{Name: row.Category, ProductCount: row.ProductCount})
		}
		return out, nil
	})
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ProductDTO, error) {
	product := models.Product{
		Name:           strings.TrimSpace(input.Name),
		Description:    trimOptional(input.Description),
		Category:       strings.TrimSpace(input.Category),
		Subcategory:    trimOptional(input.Subcategory),
		PriceCents:     input.PriceCents,
		SalePriceCents: input.SalePriceCents,
		Stock:          input.Stock,
		ImageURL:       trimOptional(input.ImageURL),
		IsFeatured:     input.IsFeatured,
		IsBestseller:   input.IsBestseller,
		IsOrganic:      input.IsOrganic,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	s.invalidate(ctx)

	ctx = s.logg.WithFields(ctx, map[string]any{"product_id": product.ID.String(), "category": product.Category})
	s.logg.Info(ctx, "product created")

	dto := FromModel(product)
	return &dto, nil
}

// Update applies a partial change; the merged product must still be valid.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := *current
	updates := map[string]any{}
	if input.Name != nil {
		merged.Name = strings.TrimSpace(*input.Name)
		updates["name"] = merged.Name
	}
	if input.Description != nil {
		merged.Description = trimOptional(input.Description)
		updates["description"] = merged.Description
	}
	if input.Category != nil {
		merged.Category = strings.TrimSpace(*input.Category)
		updates["category"] = merged.Category
	}
	if input.Subcategory != nil {
		merged.Subcategory = trimOptional(input.Subcategory)
		updates["subcategory"] = merged.Subcategory
	}
	if input.PriceCents != nil {
		merged.PriceCents = *input.PriceCents
		updates["price_cents"] = merged.PriceCents
	}
	if input.ClearSalePrice {
		merged.SalePriceCents = nil
		updates["sale_price_cents"] = nil
	} else if input.SalePriceCents != nil {
		sale := *input.SalePriceCents
		merged.SalePriceCents = &sale
		updates["sale_price_cents"] = sale
	}
	if input.Stock != nil {
		merged.Stock = *input.Stock
		updates["stock"] = merged.Stock
	}
	if input.ImageURL != nil {
		merged.ImageURL = trimOptional(input.ImageURL)
		updates["image_url"] = merged.ImageURL
	}
	if input.IsFeatured != nil {
		merged.IsFeatured = *input.IsFeatured
		updates["is_featured"] = merged.IsFeatured
	}
	if input.IsBestseller != nil {
		merged.IsBestseller = *input.IsBestseller
		updates["is_bestseller"] = merged.IsBestseller
	}
	if input.IsOrganic != nil {
		merged.IsOrganic = *input.IsOrganic
		updates["is_organic"] = merged.IsOrganic
	}

	if len(updates) == 0 {
		dto := FromModel(*current)
		return &dto, nil
	}
	if err := validateProduct(merged); err != nil {
		return nil, err
	}

	affected, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.invalidate(ctx)

	return s.Get(ctx, id)
}

// Delete removes the product. Order history keeps its snapshots.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.invalidate(ctx)

	s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "product deleted")
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

// invalidate never fails the write; stale pages expire with their TTL.
func (s *service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logg.Error(ctx, "catalog cache invalidation failed", err)
	}
}

func validateProduct(p models.Product) error {
	switch {
	case p.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case p.Category == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	case p.PriceCents <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	case p.Stock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if p.SalePriceCents != nil {
		if *p.SalePriceCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale price must be positive")
		}
		if *p.SalePriceCents >= p.PriceCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale price must be lower than price")
		}
	}
	return nil
}

func validateFilter(f ListFilter) error {
	if f.MinPriceCents != nil && *f.MinPriceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_price cannot be negative")
	}
	if f.MinPriceCents != nil && f.MaxPriceCents != nil && *f.MinPriceCents > *f.MaxPriceCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "min_price cannot exceed max_price")
	}
	return nil
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
