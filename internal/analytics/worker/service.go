package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/internal/analytics/router"
	"github.com/angelmondragon/grocerymart-backend/internal/analytics/types"
	"github.com/angelmondragon/grocerymart-backend/pkg/logger"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox/idempotency"
)

// ConsumerName scopes idempotency claims for the analytics subscription.
const ConsumerName = "order-analytics"

// Handler writes one decoded envelope to the warehouse.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (idempotency.ClaimState, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	claims       claimer
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, claims claimer, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case claims == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, claims: claims, logg: logg}, nil
}

// Run receives until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if s.handle(msgCtx, msg.ID, msg.Data, msg.Attributes) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether the message should be acked.
func (s *Service) handle(ctx context.Context, messageID string, body []byte, attrs map[string]string) bool {
	ctx = s.logg.WithField(ctx, "message_id", messageID)

	env, err := types.ParseEnvelope(body, attrs)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping analytics message")
		return true
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     env.EventID.String(),
		"event_type":   string(env.EventType),
		"aggregate_id": env.AggregateID,
		"occurred_at":  env.OccurredAt.Format(time.RFC3339Nano),
	})

	state, err := s.claims.Claim(ctx, ConsumerName, env.EventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency claim failed", err)
		return false
	}
	switch state {
	case idempotency.Done:
		s.logg.Debug(ctx, "analytics event already written")
		return true
	case idempotency.Busy:
		return false
	}

	err = s.handler.Handle(ctx, env)
	if errors.Is(err, router.ErrUnsupportedEventType) {
		s.logg.Debug(ctx, "no analytics route for event")
		err = nil
	}
	if err != nil {
		s.logg.Error(ctx, "analytics handler failed", err)
		if releaseErr := s.claims.Release(ctx, ConsumerName, env.EventID); releaseErr != nil {
			s.logg.Error(ctx, "failed to release idempotency claim", releaseErr)
		}
		return false
	}
	if err := s.claims.Complete(ctx, ConsumerName, env.EventID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to mark analytics event done")
	}
	return true
}
