package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/grocerymart-backend/internal/notifications"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

type productCounter interface {
	Count(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context, threshold int) (int64, error)
}

type orderCounter interface {
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[enums.OrderStatus]int64, error)
	RevenueCents(ctx context.Context) (int64, error)
}

type offerCounter interface {
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

type inboxCounter interface {
	UnreadCount(ctx context.Context, inbox notifications.Inbox) (int64, error)
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalProducts       int64                       `json:"total_products"`
	TotalOrders         int64                       `json:"total_orders"`
	Revenue             types.Money                 `json:"revenue"`
	ActiveOffers        int64                       `json:"active_offers"`
	OrdersByStatus      map[enums.OrderStatus]int64 `json:"orders_by_status"`
	LowStockProducts    int64                       `json:"low_stock_products"`
	LowStockThreshold   int                         `json:"low_stock_threshold"`
	UnreadNotifications int64                       `json:"unread_notifications"`
}

type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

type Params struct {
	Products          productCounter
	Orders            orderCounter
	Offers            offerCounter
	Notifications     inboxCounter
	LowStockThreshold int
}

type service struct {
	products      productCounter
	orders        orderCounter
	offers        offerCounter
	notifications inboxCounter
	threshold     int
	now           func() time.Time
}

func NewService(p Params) (Service, error) {
	switch {
	case p.Products == nil:
		return nil, fmt.Errorf("products repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Offers == nil:
		return nil, fmt.Errorf("offers repository required")
	case p.Notifications == nil:
		return nil, fmt.Errorf("notifications service required")
	}
	threshold := p.LowStockThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &service{
		products:      p.Products,
		orders:        p.Orders,
		offers:        p.Offers,
		notifications: p.Notifications,
		threshold:     threshold,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Stats runs the independent aggregate queries concurrently.
func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats := Stats{LowStockThreshold: s.threshold}
	var revenue int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() (err error) {
		stats.TotalProducts, err = s.products.Count(gctx)
		return wrap(err, "count products")
	})
	g.Go(func() (err error) {
		stats.LowStockProducts, err = s.products.CountLowStock(gctx, s.threshold)
		return wrap(err, "count low stock")
	})
	g.Go(func() (err error) {
		stats.TotalOrders, err = s.orders.Count(gctx)
		return wrap(err, "count orders")
	})
	g.Go(func() (err error) {
		stats.OrdersByStatus, err = s.orders.CountByStatus(gctx)
		return wrap(err, "count orders by status")
	})
	g.Go(func() (err error) {
		revenue, err = s.orders.RevenueCents(gctx)
		return wrap(err, "sum revenue")
	})
	g.Go(func() (err error) {
		stats.ActiveOffers, err = s.offers.CountActive(gctx, s.now())
		return wrap(err, "count offers")
	})
	g.Go(func() (err error) {
		stats.UnreadNotifications, err = s.notifications.UnreadCount(gctx, notifications.AdminInbox())
		return wrap(err, "count admin notifications")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Revenue = types.Money(revenue)
	return &stats, nil
}

func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
