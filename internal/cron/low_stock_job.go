package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/payloads"
)

const (
	defaultLowStockThreshold = 5
	lowStockListLimit        = 50
)

// lowStockNamespace seeds the per-day aggregate id so reruns on the same day
// collapse onto one outbox row.
var lowStockNamespace = uuid.MustParse("7d7c5c0e-2f6b-4f7e-9b1c-4c1f3f6f8a10")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lowStockLister interface {
	ListLowStock(ctx context.Context, threshold, limit int) ([]models.Product, error)
}

type onceEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Products  lowStockLister
	Outbox    onceEmitter
	Threshold int
}

// NewLowStockJob queues at most one low_stock_detected event per UTC day.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &lowStockJob{
		logg:      params.Logger,
		db:        params.DB,
		products:  params.Products,
		outbox:    params.Outbox,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	db        txRunner
	products  lowStockLister
	outbox    onceEmitter
	threshold int
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-alert" }

func (j *lowStockJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	day := now.Format(time.DateOnly)
	logCtx := j.logg.WithFields(ctx, map[string]any{"day": day, "threshold": j.threshold})

	rows, err := j.products.ListLowStock(ctx, j.threshold, lowStockListLimit)
	if err != nil {
		return fmt.Errorf("list low stock products: %w", err)
	}
	if len(rows) == 0 {
		j.logg.Info(logCtx, "no low stock products")
		return nil
	}

	event := payloads.LowStockDetectedEvent{Day: day, Threshold: j.threshold}
	for _, p := range rows {
		event.Products = append(event.Products, payloads.LowStockProduct{ProductID: p.ID, Name: p.Name, Stock: p.Stock})
	}

	var emitted bool
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var emitErr error
		emitted, emitErr = j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateProduct,
			AggregateID:   LowStockAggregateID(day),
			Data:          event,
			OccurredAt:    now,
		})
		return emitErr
	})
	if err != nil {
		return fmt.Errorf("emit low stock alert: %w", err)
	}

	logCtx = j.logg.WithFields(logCtx, map[string]any{"products": len(rows), "emitted": emitted})
	j.logg.Info(logCtx, "low stock check complete")
	return nil
}

// LowStockAggregateID derives the outbox aggregate id for a YYYY-MM-DD day.
func LowStockAggregateID(day string) uuid.UUID {
	return uuid.NewSHA1(lowStockNamespace, []byte("low-stock:"+day))
}
