package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/outbox"
)

// Envelope is an order event lifted off the analytics subscription.
type Envelope struct {
	EventID       uuid.UUID
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Version       int
	OccurredAt    time.Time
	Payload       json.RawMessage
}

// ErrMalformedEnvelope marks messages that can never be handled; callers ack
// them instead of retrying.
var ErrMalformedEnvelope = errors.New("malformed analytics envelope")

// ParseEnvelope combines the published body with its pub/sub attributes.
// Attributes carry routing data; the body wins for the event id and
// timestamp, and the version attribute overrides the body when positive.
func ParseEnvelope(body []byte, attrs map[string]string) (Envelope, error) {
	stored, err := outbox.DecodeEnvelope(body)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	attr := func(key string) string { return strings.TrimSpace(attrs[key]) }

	env := Envelope{
		AggregateID: attr("aggregate_id"),
		Version:     stored.Version,
		OccurredAt:  stored.OccurredAt,
		Payload:     stored.Data,
	}
	if env.EventType, err = enums.ParseOutboxEventType(attr("event_type")); err != nil {
		return Envelope{}, fmt.Errorf("%w: event_type: %v", ErrMalformedEnvelope, err)
	}
	if env.AggregateType, err = enums.ParseOutboxAggregateType(attr("aggregate_type")); err != nil {
		return Envelope{}, fmt.Errorf("%w: aggregate_type: %v", ErrMalformedEnvelope, err)
	}
	if env.AggregateID == "" {
		return Envelope{}, fmt.Errorf("%w: aggregate_id missing", ErrMalformedEnvelope)
	}

	rawID := strings.TrimSpace(stored.EventID)
	if rawID == "" {
		rawID = attr("event_id")
	}
	if env.EventID, err = uuid.Parse(rawID); err != nil {
		return Envelope{}, fmt.Errorf("%w: event_id %q", ErrMalformedEnvelope, rawID)
	}

	if env.OccurredAt.IsZero() {
		if parsed, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			env.OccurredAt = parsed
		}
	}
	env.OccurredAt = env.OccurredAt.UTC()

	if n, err := strconv.Atoi(attr("version")); err == nil && n > 0 {
		env.Version = n
	}
	return env, nil
}
