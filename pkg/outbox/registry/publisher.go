package registry

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
)

// EventDescriptor is the routing entry for one event type.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed routing and payload checks.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry routes each supported event type to a topic.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NonRetryableError marks a row that will never publish as-is.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func IsNonRetryable(err error) bool {
	return errors.As(err, new(NonRetryableError))
}

func rejectf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

var nullJSON = []byte("null")

// NewEventRegistry builds the routing table: order lifecycle events on the
// orders topic, offer and stock events on the catalog topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []error
	if cfg.OrdersTopic == "" {
		missing = append(missing, errors.New("orders topic is required"))
	}
	if cfg.CatalogTopic == "" {
		missing = append(missing, errors.New("catalog topic is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	routes := []EventDescriptor{
		{enums.EventOrderPlaced, enums.AggregateOrder, cfg.OrdersTopic},
		{enums.EventOrderStatusChanged, enums.AggregateOrder, cfg.OrdersTopic},
		{enums.EventOfferCreated, enums.AggregateOffer, cfg.CatalogTopic},
		{enums.EventLowStockDetected, enums.AggregateProduct, cfg.CatalogTopic},
	}
	reg := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]EventDescriptor, len(routes)),
		decoders: NewPayloadDecoders(),
	}
	for _, route := range routes {
		reg.routes[route.EventType] = route
	}
	return reg, nil
}

// Topics lists the distinct destination topics, sorted.
func (r *EventRegistry) Topics() []string {
	seen := make(map[string]struct{}, len(r.routes))
	var topics []string
	for _, route := range r.routes {
		if _, dup := seen[route.Topic]; !dup {
			seen[route.Topic] = struct{}{}
			topics = append(topics, route.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve routes the row and decodes its typed payload. Every failure is
// non-retryable: the row content itself is wrong.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, rejectf("unsupported event type %s", event.EventType)
	case route.AggregateType != event.AggregateType:
		return nil, rejectf("%s belongs to %s aggregates, row has %s", event.EventType, route.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, rejectf("%s row has no aggregate_id", event.EventType)
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, nullJSON) {
		return nil, rejectf("%s envelope carries no data", event.EventType)
	}

	payload, err := r.decoders.Decode(event.EventType, max(envelope.Version, 1), envelope.Data)
	if err != nil {
		return nil, rejectf("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: route, Envelope: envelope, Payload: payload}, nil
}
