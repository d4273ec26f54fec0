package cache

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRedis runs against an in-process server, or against REDIS_ADDR when
// it is set.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	c := NewRedis(client, "test:"+ksuid.New().String()+":")
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	_, ok, err := c.Get(ctx, KindTask, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, KindTask, "1", []byte("t1")))
	require.NoError(t, c.Put(ctx, KindTask, "2", []byte("t2")))
	require.NoError(t, c.Put(ctx, KindUser, "1", []byte("u1")))

	v, ok, err := c.Get(ctx, KindTask, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t1", string(v))

	require.NoError(t, c.Evict(ctx, KindTask, "1"))
	_, ok, _ = c.Get(ctx, KindTask, "1")
	assert.False(t, ok)

	require.NoError(t, c.EvictAll(ctx, KindTask))
	_, ok, _ = c.Get(ctx, KindTask, "2")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, KindUser, "1")
	assert.True(t, ok)
}

func TestRedisEvictAllManyKeys(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	const n = 3*scanCount + 88
	for i := 0; i < n; i++ {
		require.NoError(t, c.Put(ctx, KindTask, strconv.Itoa(i), []byte("t")))
	}
	require.NoError(t, c.Put(ctx, KindUser, "1", []byte("u1")))
	before, err := c.Generation(ctx, KindTask)
	require.NoError(t, err)

	require.NoError(t, c.EvictAll(ctx, KindTask))

	left, err := c.client.Keys(ctx, c.key(KindTask, "*")).Result()
	require.NoError(t, err)
	assert.Empty(t, left)
	_, ok, err := c.Get(ctx, KindUser, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := c.Generation(ctx, KindTask)
	require.NoError(t, err)
	assert.Greater(t, after, before)
	userGen, err := c.Generation(ctx, KindUser)
	require.NoError(t, err)
	assert.Zero(t, userGen)
}

func TestRedisPutIfGeneration(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)

	gen, err := c.Generation(ctx, KindUser)
	require.NoError(t, err)
	assert.Zero(t, gen)
	require.NoError(t, c.Evict(ctx, KindUser, "5"))

	stored, err := c.PutIfGeneration(ctx, KindUser, "5", []byte("stale"), gen)
	require.NoError(t, err)
	assert.False(t, stored)
	_, ok, _ := c.Get(ctx, KindUser, "5")
	assert.False(t, ok)

	gen, err = c.Generation(ctx, KindUser)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	stored, err = c.PutIfGeneration(ctx, KindUser, "5", []byte("fresh"), gen)
	require.NoError(t, err)
	assert.True(t, stored)
	v, ok, err := c.Get(ctx, KindUser, "5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", string(v))
}

func TestRedisReadThrough(t *testing.T) {
	ctx := context.Background()
	c := newTestRedis(t)
	r := NewReader(c, zap.NewNop().Sugar())

	loads := 0
	load := func(context.Context) (view, error) {
		loads++
		return view{ID: 3, Title: "C"}, nil
	}
	for i := 0; i < 2; i++ {
		v, err := Fetch(ctx, r, TaskKey(3), load)
		require.NoError(t, err)
		assert.Equal(t, "C", v.Title)
	}
	assert.Equal(t, 1, loads)
}
