package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

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

// Service covers order history for customers and order management for admins.
type Service interface {
	Get(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, query ListQuery) (*ListResult, error)
	Cancel(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error)
	ListAll(ctx context.Context, query ListQuery) (*ListResult, error)
	GetAny(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	SetStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	policy  StatusPolicy
	logg    *logger.Logger
	now     func() time.Time
	restock bool
	catalog catalogInvalidator
}

// Option tunes optional service behavior.
type Option func(*service)

// WithStockRestore returns cancelled lines to product stock. Use it when
// checkout decrements stock; catalog may be nil.
func WithStockRestore(catalog catalogInvalidator) Option {
	return func(s *service) {
		s.restock = true
		s.catalog = catalog
	}
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, policy StatusPolicy, logg *logger.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	if policy == "" {
		policy = PolicyStrict
	}
	svc := &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		policy: policy,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Get hides orders owned by someone else behind NOT_FOUND.
func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindForUser(ctx, orderID, userID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	dto := FromModel(*order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, query ListQuery) (*ListResult, error) {
	return s.list(ctx, ListFilter{UserID: &userID, Status: query.Status}, query)
}

func (s *service) ListAll(ctx context.Context, query ListQuery) (*ListResult, error) {
	return s.list(ctx, ListFilter{Status: query.Status}, query)
}

func (s *service) GetAny(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	dto := FromModel(*order)
	return &dto, nil
}

// Cancel lets a customer cancel their own order while it is still confirmed.
func (s *service) Cancel(ctx context.Context, orderID, userID uuid.UUID) (*OrderDTO, error) {
	actor := outbox.ActorRef{UserID: userID, Role: string(enums.SystemRoleCustomer)}
	return s.transition(ctx, actor, orderID, enums.OrderStatusCancelled, func(order *models.Order) error {
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !CustomerCanCancel(order.Status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order cannot be cancelled once %s", order.Status)
		}
		return nil
	})
}

// SetStatus is the admin status change, governed by the configured policy.
func (s *service) SetStatus(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	return s.transition(ctx, actor, orderID, status, func(order *models.Order) error {
		if !s.policy.Allows(order.Status, status) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, status).
				WithDetails(map[string]any{"from": order.Status, "to": status})
		}
		return nil
	})
}

func (s *service) transition(ctx context.Context, actor outbox.ActorRef, orderID uuid.UUID, to enums.OrderStatus, check func(*models.Order) error) (*OrderDTO, error) {
	var (
		previous  enums.OrderStatus
		restocked int
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadErr(err)
		}
		if err := check(order); err != nil {
			return err
		}

		previous = order.Status
		now := s.now()
		updates := transitionUpdates(order, to, now)
		affected, err := repo.UpdateStatus(ctx, order.ID, previous, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		if s.restock && to == enums.OrderStatusCancelled {
			restocked, err = repo.RestockItems(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &actor,
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				UserID:         order.UserID,
				PreviousStatus: previous,
				Status:         order.Status,
				PaymentStatus:  order.PaymentStatus,
				TotalCents:     order.TotalCents,
				ChangedAt:      now,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "change order status")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"from":     string(previous),
		"to":       string(to),
	})
	s.logg.Info(ctx, "order status changed")

	if restocked > 0 && s.catalog != nil {
		if err := s.catalog.Invalidate(ctx); err != nil {
			s.logg.Error(ctx, "catalog cache invalidation failed", err)
		}
	}

	return s.GetAny(ctx, orderID)
}

func (s *service) list(ctx context.Context, filter ListFilter, query ListQuery) (*ListResult, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(query.Limit)
	rows, err := s.repo.List(ctx, filter, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	page, next := pagination.Page(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]SummaryDTO, 0, len(page))
	for _, row := range page {
		items = append(items, SummaryFromModel(row))
	}
	return &ListResult{Items: items, Pagination: types.NewPagination(limit, next)}, nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
