package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/internal/cart"
	"github.com/angelmondragon/grocerymart-backend/internal/offers"
	"github.com/angelmondragon/grocerymart-backend/internal/orders"
	"github.com/angelmondragon/grocerymart-backend/internal/pricing"
	product "github.com/angelmondragon/grocerymart-backend/internal/products"
	"github.com/angelmondragon/grocerymart-backend/internal/users"
	pkgcheckout "github.com/angelmondragon/grocerymart-backend/pkg/checkout"
	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/metrics"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
)

const (
	defaultMaxAttempts = 3
	maxAddressLength   = 500
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Service places orders from the caller's cart.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*orders.OrderDTO, error)
}

// PlaceOrderInput is what the customer submits at checkout. Prices never come
// from the client.
type PlaceOrderInput struct {
	DeliveryAddress string
	DeliverySlot    *string
	CouponCode      *string
	PaymentMethod   enums.PaymentMethod
}

// Params wires the checkout service.
type Params struct {
	Tx         txRunner
	Carts      *cart.Repository
	Products   *product.Repository
	Offers     *offers.Repository
	Orders     orders.Repository
	Users      *users.Repository
	Outbox     outbox.Emitter
	Catalog    catalogInvalidator
	Calculator pricing.Calculator
	Metrics    *metrics.CheckoutMetrics
	Config     config.CheckoutConfig
	Logger     *logger.Logger
}

type service struct {
	tx          txRunner
	carts       *cart.Repository
	products    *product.Repository
	offers      *offers.Repository
	orders      orders.Repository
	users       *users.Repository
	outbox      outbox.Emitter
	catalog     catalogInvalidator
	calc        pricing.Calculator
	metrics     *metrics.CheckoutMetrics
	cfg         config.CheckoutConfig
	logg        *logger.Logger
	now         func() time.Time
	orderNumber func(time.Time) string
}

func NewService(p Params) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case p.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case p.Offers == nil:
		return nil, fmt.Errorf("offers repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	cfg := p.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &service{
		tx:          p.Tx,
		carts:       p.Carts,
		products:    p.Products,
		offers:      p.Offers,
		orders:      p.Orders,
		users:       p.Users,
		outbox:      p.Outbox,
		catalog:     p.Catalog,
		calc:        p.Calculator,
		metrics:     p.Metrics,
		cfg:         cfg,
		logg:        p.Logger,
		now:         func() time.Time { return time.Now().UTC() },
		orderNumber: NewOrderNumber,
	}, nil
}

// PlaceOrder prices the cart server-side, writes the order snapshot, clears
// the cart and queues order_placed in one transaction. Serialization failures
// and order number collisions re-run the whole transaction.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*orders.OrderDTO, error) {
	if err := validateInput(&input); err != nil {
		s.metrics.IncOutcome("invalid")
		return nil, err
	}

	ctx = s.logg.WithField(ctx, "user_id", userID.String())

	var (
		order *models.Order
		err   error
	)
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		order, err = s.placeOnce(ctx, userID, input)
		if err == nil || !retryable(err) {
			break
		}
		s.metrics.IncRetry()
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"attempt": attempt, "error": err.Error()}), "checkout transaction retry")
	}
	if err != nil {
		s.metrics.IncOutcome(outcomeFor(err))
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "place order")
	}

	if s.cfg.DecrementStock && s.catalog != nil {
		if err := s.catalog.Invalidate(ctx); err != nil {
			s.logg.Error(ctx, "catalog cache invalidation failed", err)
		}
	}
	s.metrics.IncOutcome("placed")

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total_cents":  order.TotalCents,
	})
	s.logg.Info(ctx, "order placed")

	dto := orders.FromModel(*order)
	return &dto, nil
}

func (s *service) placeOnce(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.users.WithTx(tx).FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
			}
			return err
		}

		rows, err := s.carts.WithTx(tx).ListLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
		}
		view := cart.BuildView(rows, s.calc)

		now := s.now()
		if input.CouponCode != nil {
			if _, err := s.offers.WithTx(tx).FindActiveByCode(ctx, *input.CouponCode, now); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "coupon code is invalid or expired")
				}
				return err
			}
		}

		if err := s.reserveStock(ctx, tx, view.Items); err != nil {
			return err
		}

		order = buildOrder(user, view, input, now)
		order.OrderNumber = s.orderNumber(now)
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if _, err := s.carts.WithTx(tx).DeleteAllForUser(ctx, userID); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(user.SystemRole)},
			OccurredAt:    now,
			Data: payloads.OrderPlacedEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				UserID:           order.UserID,
				UserEmail:        order.UserEmail,
				Status:           order.Status,
				PaymentStatus:    order.PaymentStatus,
				PaymentMethod:    order.PaymentMethod,
				ItemCount:        view.Totals.ItemCount,
				SubtotalCents:    order.SubtotalCents,
				DeliveryFeeCents: order.DeliveryFeeCents,
				TaxCents:         order.TaxCents,
				DiscountCents:    order.DiscountCents,
				TotalCents:       order.TotalCents,
				CouponCode:       order.CouponCode,
				PlacedAt:         now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// reserveStock checks every line against the stock read with the cart, then
// takes the stock with conditional decrements that lose cleanly to a
// concurrent checkout.
func (s *service) reserveStock(ctx context.Context, tx *gorm.DB, lines []cart.Line) error {
	checks := make([]pkgcheckout.StockValidationInput, 0, len(lines))
	for _, line := range lines {
		checks = append(checks, pkgcheckout.StockValidationInput{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Available:   line.Stock,
			Quantity:    line.Quantity,
		})
	}
	if err := pkgcheckout.ValidateStock(checks); err != nil {
		return err
	}
	if !s.cfg.DecrementStock {
		return nil
	}

	products := s.products.WithTx(tx)
	var shortfalls []pkgcheckout.StockShortfallDetail
	for _, line := range lines {
		affected, err := products.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return err
		}
		if affected == 0 {
			available := 0
			if current, err := products.GetByID(ctx, line.ProductID); err == nil {
				available = current.Stock
			}
			shortfalls = append(shortfalls, pkgcheckout.StockShortfallDetail{
				ProductID:    line.ProductID,
				ProductName:  line.Name,
				AvailableQty: available,
				RequestedQty: line.Quantity,
			})
		}
	}
	return pkgcheckout.ShortfallError(shortfalls)
}

func buildOrder(user *models.User, view *cart.View, input PlaceOrderInput, now time.Time) *models.Order {
	totals := view.Totals
	order := &models.Order{
		ID:               uuid.New(),
		UserID:           user.ID,
		UserEmail:        user.Email,
		Status:           enums.OrderStatusConfirmed,
		PaymentStatus:    input.PaymentMethod.InitialPaymentStatus(),
		PaymentMethod:    input.PaymentMethod,
		SubtotalCents:    totals.SubtotalCents,
		DeliveryFeeCents: totals.DeliveryFeeCents,
		TaxCents:         totals.TaxCents,
		DiscountCents:    totals.DiscountCents,
		SavingsCents:     totals.SavingsCents,
		TotalCents:       totals.TotalCents,
		DeliveryAddress:  input.DeliveryAddress,
		DeliverySlot:     input.DeliverySlot,
		CouponCode:       input.CouponCode,
		CreatedAt:        now,
		UpdatedAt:        now,
		Items:            make([]models.OrderItem, 0, len(view.Items)),
	}
	if name := strings.TrimSpace(user.Name); name != "" {
		order.UserName = &name
	}
	for _, line := range view.Items {
		productID := line.ProductID
		priced := line.PricingLine()
		order.Items = append(order.Items, models.OrderItem{
			OrderID:        order.ID,
			ProductID:      &productID,
			ProductName:    line.Name,
			ImageURL:       line.ImageURL,
			Quantity:       line.Quantity,
			ListPriceCents: line.ListPriceCents,
			UnitPriceCents: priced.EffectiveUnitPrice(),
			LineTotalCents: priced.LineTotal(),
			CreatedAt:      now,
		})
	}
	return order
}

func validateInput(input *PlaceOrderInput) error {
	input.DeliveryAddress = strings.TrimSpace(input.DeliveryAddress)
	if input.DeliveryAddress == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	if len(input.DeliveryAddress) > maxAddressLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery address is too long")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method must be card, upi or cod")
	}
	if input.DeliverySlot != nil {
		slot := strings.TrimSpace(*input.DeliverySlot)
		if slot == "" {
			input.DeliverySlot = nil
		} else {
			input.DeliverySlot = &slot
		}
	}
	input.CouponCode = offers.NormalizeCode(input.CouponCode)
	return nil
}

func retryable(err error) bool {
	return db.IsRetryableTx(err) ||
		db.IsUniqueViolation(err, "orders_order_number_key") ||
		db.IsUniqueViolation(err, "orders.order_number")
}

func outcomeFor(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart):
		return "empty_cart"
	case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		return "stock_conflict"
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		return "invalid"
	default:
		return "error"
	}
}
