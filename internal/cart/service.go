package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/internal/pricing"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
)

type productReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type cartRepository interface {
	Upsert(ctx context.Context, item models.CartItem) (*models.CartItem, error)
	ListLines(ctx context.Context, userID uuid.UUID) ([]LineRow, error)
	SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (int64, error)
	Delete(ctx context.Context, userID, itemID uuid.UUID) (int64, error)
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Service exposes the per-user cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error)
	SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     cartRepository
	products productReader
	calc     pricing.Calculator
}

func NewService(repo cartRepository, products productReader, calc pricing.Calculator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &service{repo: repo, products: products, calc: calc}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	rows, err := s.repo.ListLines(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return BuildView(rows, s.calc), nil
}

// AddItem merges quantity into the existing line for the product or creates one.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*View, error) {
	if err := pricing.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.InStock() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock")
	}

	if _, err := s.repo.Upsert(ctx, models.CartItem{
		UserID:         userID,
		ProductID:      product.ID,
		Quantity:       quantity,
		ProductName:    product.Name,
		PriceCents:     product.PriceCents,
		SalePriceCents: product.SalePriceCents,
		ImageURL:       product.ImageURL,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	return s.Get(ctx, userID)
}

// SetQuantity is absolute, not additive.
func (s *service) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*View, error) {
	if err := pricing.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	affected, err := s.repo.SetQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	affected, err := s.repo.Delete(ctx, userID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.DeleteAllForUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// BuildView prices rows with calc. Unavailable lines stay visible but are
// left out of the totals. An empty cart carries the calculator's quote
// unchanged; checkout refuses it with EMPTY_CART.
func BuildView(rows []LineRow, calc pricing.Calculator) *View {
	view := &View{Items: make([]Line, 0, len(rows))}
	for _, row := range rows {
		view.Items = append(view.Items, LineFromRow(row))
	}
	view.Totals = calc.Calculate(view.PricingLines())
	view.Summary = NewSummary(view.Totals)
	return view
}
