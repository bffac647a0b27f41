package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/grocerymart-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return NewFromRaw(raw), mr
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	allowed, count, err := client.FixedWindowAllow(ctx, "chat:user-1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, mr.TTL("gm:rate_limit:chat:user-1"))

	allowed, count, err = client.FixedWindowAllow(ctx, "chat:user-1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(2), count)

	allowed, _, err = client.FixedWindowAllow(ctx, "chat:user-1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	mr.FastForward(time.Minute + time.Second)
	allowed, count, err = client.FixedWindowAllow(ctx, "chat:user-1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestCounterDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	value, err := client.Counter(ctx, "catalog_version")
	require.NoError(t, err)
	assert.Zero(t, value)

	bumped, err := client.BumpCounter(ctx, "catalog_version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), bumped)

	value, err = client.Counter(ctx, "catalog_version")
	require.NoError(t, err)
	assert.Equal(t, int64(1), value)
}

func TestGetDelRemovesKey(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	require.NoError(t, client.Set(ctx, "gm:session:access:abc", "token", time.Hour))
	value, err := client.GetDel(ctx, "gm:session:access:abc")
	require.NoError(t, err)
	assert.Equal(t, "token", value)
	assert.False(t, mr.Exists("gm:session:access:abc"))

	_, err = client.GetDel(ctx, "gm:session:access:abc")
	assert.ErrorIs(t, err, Nil)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "gm:idempotency:checkout:key-1", client.IdempotencyKey("checkout", "key-1"))
	assert.Equal(t, "gm:rate_limit:login", client.RateLimitKey("login"))
	assert.Equal(t, "gm:counter:hits", client.CounterKey("hits"))
	assert.Equal(t, "gm:cache:catalog:v3:abc", client.CacheKey("catalog", "v3", "abc"))
	assert.Equal(t, "gm:lock:cron", client.LockKey("cron"))
	assert.Equal(t, "gm:session:access:jti", client.AccessSessionKey("jti"))
	assert.Equal(t, "gm:cache:x", client.CacheKey("", " x "))
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	require.Error(t, client.Ping(context.Background()))
	_, err := client.Get(context.Background(), "k")
	require.Error(t, err)
	require.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)
}
