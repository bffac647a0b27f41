package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/redis"
)

func newManager(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	manager, err := NewManager(redis.NewFromRaw(raw), ttl)
	require.NoError(t, err)
	return manager, mr
}

func TestClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	manager, mr := newManager(t, 24*time.Hour)
	eventID := uuid.New()
	key := "gm:idempotency:evt:notifications:" + eventID.String()

	state, err := manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, state)
	assert.Equal(t, defaultLease, mr.TTL(key))

	state, err = manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.Equal(t, Busy, state, "a second delivery must wait while the first is running")

	require.NoError(t, manager.Complete(ctx, "notifications", eventID))
	value, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, markerDone, value)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	state, err = manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.Equal(t, Done, state)

	state, err = manager.Claim(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, state, "claims are scoped per consumer")
}

func TestLeaseExpiryAllowsRedelivery(t *testing.T) {
	ctx := context.Background()
	manager, mr := newManager(t, 24*time.Hour)
	eventID := uuid.New()

	_, err := manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	mr.FastForward(defaultLease + time.Second)

	state, err := manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, state)
}

func TestLeaseNeverExceedsTTL(t *testing.T) {
	manager, _ := newManager(t, time.Minute)
	assert.Equal(t, time.Minute, manager.lease)
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	ctx := context.Background()
	manager, _ := newManager(t, time.Hour)
	eventID := uuid.New()

	_, err := manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, "notifications", eventID))

	state, err := manager.Claim(ctx, "notifications", eventID)
	require.NoError(t, err)
	assert.Equal(t, Acquired, state)
}

func TestClaimKeyValidation(t *testing.T) {
	manager, _ := newManager(t, time.Hour)

	_, err := manager.Claim(context.Background(), "", uuid.New())
	require.Error(t, err)
	_, err = manager.Claim(context.Background(), "notifications", uuid.Nil)
	require.Error(t, err)
	require.Error(t, manager.Complete(context.Background(), "", uuid.New()))
}

func TestClaimStoreError(t *testing.T) {
	manager, err := NewManager(&failingStore{}, time.Hour)
	require.NoError(t, err)

	state, err := manager.Claim(context.Background(), "notifications", uuid.New())
	require.Error(t, err)
	assert.Equal(t, Busy, state)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(&failingStore{}, -time.Second)
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", nil }

func (failingStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingStore) Set(context.Context, string, any, time.Duration) error {
	return errors.New("redis down")
}

func (failingStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (failingStore) Del(context.Context, ...string) error { return nil }
