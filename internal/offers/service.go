package offers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes storefront offers and their admin management.
type Service interface {
	ListActive(ctx context.Context) ([]OfferDTO, error)
	ListAll(ctx context.Context, params pagination.Params) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*OfferDTO, error)
	Create(ctx context.Context, actor outbox.ActorRef, input CreateInput) (*OfferDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*OfferDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) ListActive(ctx context.Context) ([]OfferDTO, error) {
	now := s.now()
	rows, err := s.repo.ListActive(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list offers")
	}
	out := make([]OfferDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row, now))
	}
	return out, nil
}

func (s *service) ListAll(ctx context.Context, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListAll(ctx, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list offers")
	}
	page, next := pagination.Page(rows, limit, func(o models.Offer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	now := s.now()
	items := make([]OfferDTO, 0, len(page))
	for _, row := range page {
		items = append(items, FromModel(row, now))
	}
	return &ListResult{Items: items, Pagination: types.NewPagination(limit, next)}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OfferDTO, error) {
	offer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*offer, s.now())
	return &dto, nil
}

// Create stores the offer and queues offer_created in the same transaction.
func (s *service) Create(ctx context.Context, actor outbox.ActorRef, input CreateInput) (*OfferDTO, error) {
	offer := models.Offer{
		Title:           strings.TrimSpace(input.Title),
		Description:     trimOptional(input.Description),
		DiscountPercent: input.DiscountPercent,
		CouponCode:      NormalizeCode(input.CouponCode),
		ValidFrom:       input.ValidFrom,
		ValidUntil:      input.ValidUntil,
		IsActive:        input.IsActive,
	}
	if err := validateOffer(offer); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &offer); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferCreated,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Actor:         &actor,
			Data: payloads.OfferCreatedEvent{
				OfferID:         offer.ID,
				Title:           offer.Title,
				DiscountPercent: offer.DiscountPercent,
				CouponCode:      offer.CouponCode,
			},
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create offer")
	}

	s.logg.Info(s.logg.WithField(ctx, "offer_id", offer.ID.String()), "offer created")
	dto := FromModel(offer, s.now())
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*OfferDTO, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := *current
	updates := map[string]any{}
	if input.Title != nil {
		merged.Title = strings.TrimSpace(*input.Title)
		updates["title"] = merged.Title
	}
	if input.Description != nil {
		merged.Description = trimOptional(input.Description)
		updates["description"] = merged.Description
	}
	if input.ClearDiscount {
		merged.DiscountPercent = nil
		updates["discount_percent"] = nil
	} else if input.DiscountPercent != nil {
		pct := *input.DiscountPercent
		merged.DiscountPercent = &pct
		updates["discount_percent"] = pct
	}
	if input.CouponCode != nil {
		merged.CouponCode = NormalizeCode(input.CouponCode)
		updates["coupon_code"] = merged.CouponCode
	}
	if input.ClearValidity {
		merged.ValidFrom, merged.ValidUntil = nil, nil
		updates["valid_from"] = nil
		updates["valid_until"] = nil
	} else {
		if input.ValidFrom != nil {
			merged.ValidFrom = input.ValidFrom
			updates["valid_from"] = *input.ValidFrom
		}
		if input.ValidUntil != nil {
			merged.ValidUntil = input.ValidUntil
			updates["valid_until"] = *input.ValidUntil
		}
	}
	if input.IsActive != nil {
		merged.IsActive = *input.IsActive
		updates["is_active"] = merged.IsActive
	}

	if len(updates) == 0 {
		dto := FromModel(*current, s.now())
		return &dto, nil
	}
	if err := validateOffer(merged); err != nil {
		return nil, err
	}

	affected, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update offer")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete offer")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offer")
	}
	return offer, nil
}

// NormalizeCode trims and upper-cases a coupon code; blank codes become nil.
func NormalizeCode(code *string) *string {
	if code == nil {
		return nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(*code))
	if normalized == "" {
		return nil
	}
	return &normalized
}

func validateOffer(o models.Offer) error {
	if o.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if o.DiscountPercent != nil && (*o.DiscountPercent < 0 || *o.DiscountPercent > 100) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be between 0 and 100")
	}
	if o.ValidFrom != nil && o.ValidUntil != nil && !o.ValidUntil.After(*o.ValidFrom) {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
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
