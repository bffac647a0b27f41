package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"
	defaultLease     = 5 * time.Minute
)

// ClaimState is the outcome of Claim.
type ClaimState int

const (
	// Acquired: this consumer should handle the event.
	Acquired ClaimState = iota
	// Done: a previous delivery was handled; ack without work.
	Done
	// Busy: another delivery is being handled right now; retry later.
	Busy
)

func (s ClaimState) String() string {
	switch s {
	case Acquired:
		return "acquired"
	case Done:
		return "done"
	case Busy:
		return "busy"
	}
	return fmt.Sprintf("claim(%d)", int(s))
}

// Store is the redis surface the manager needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager deduplicates pub/sub redeliveries per consumer in two steps: Claim
// takes a short lease, Complete turns it into a long-lived "done" marker. A
// consumer that dies mid-event only blocks redelivery until the lease lapses.
type Manager struct {
	store Store
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done markers for ttl (0 means no expiry). The processing
// lease is five minutes, or ttl when that is shorter.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	lease := defaultLease
	if ttl > 0 && ttl < lease {
		lease = ttl
	}
	return &Manager{store: store, ttl: ttl, lease: lease}, nil
}

func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (ClaimState, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return Busy, err
	}
	ok, err := m.store.SetNX(ctx, key, markerProcessing, m.lease)
	if err != nil {
		return Busy, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return Acquired, nil
	}
	current, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Lease lapsed between the two calls; let the redelivery take it.
		return Busy, nil
	case err != nil:
		return Busy, fmt.Errorf("read claim %s: %w", key, err)
	case current == markerDone:
		return Done, nil
	}
	return Busy, nil
}

// Complete records that the event was fully handled.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.ttl)
}

// Release drops a claim so the next delivery handles the event again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
