package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// putIfGeneration stores ARGV[2] at KEYS[2] only while KEYS[1] still equals ARGV[1].
var putIfGeneration = redis.NewScript(`
local g = redis.call('GET', KEYS[1])
if (g or '0') ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

const scanCount = 256

// Redis is a cache shared by every API instance.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps an existing client. Keys are namespaced with prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// DialRedis connects to cfg.RedisAddr and verifies connectivity with a ping.
func DialRedis(ctx context.Context, cfg Config) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required for the redis cache backend")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, cfg.Prefix), nil
}

func (c *Redis) key(kind Kind, id string) string { return c.prefix + string(kind) + ":" + id }
func (c *Redis) genKey(kind Kind) string { return c.prefix + "gen:" + string(kind) }

func (c *Redis) Get(ctx context.Context, kind Kind, id string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, c.key(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (c *Redis) Put(ctx context.Context, kind Kind, id string, value []byte) error {
	return c.client.Set(ctx, c.key(kind, id), value, 0).Err()
}

func (c *Redis) Evict(ctx context.Context, kind Kind, id string) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, c.key(kind, id))
		p.Incr(ctx, c.genKey(kind))
		return nil
	})
	return err
}

func (c *Redis) EvictAll(ctx context.Context, kind Kind) error {
	// bump first so fills racing with the scan are rejected
	if err := c.client.Incr(ctx, c.genKey(kind)).Err(); err != nil {
		return err
	}
	// finish the scan before deleting, deletes must not move the cursor
	var keys []string
	iter := c.client.Scan(ctx, 0, c.key(kind, "*"), scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	for len(keys) > 0 {
		n := min(len(keys), scanCount)
		if err := c.client.Del(ctx, keys[:n]...).Err(); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return c.client.Incr(ctx, c.genKey(kind)).Err()
}

func (c *Redis) Generation(ctx context.Context, kind Kind) (uint64, error) {
	v, err := c.client.Get(ctx, c.genKey(kind)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *Redis) PutIfGeneration(ctx context.Context, kind Kind, id string, value []byte, gen uint64) (bool, error) {
	n, err := putIfGeneration.Run(ctx, c.client,
		[]string{c.genKey(kind), c.key(kind, id)},
		strconv.FormatUint(gen, 10), value,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Close releases the underlying client.
func (c *Redis) Close() error { return c.client.Close() }
