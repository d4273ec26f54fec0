// Package cache stores precomputed response projections keyed by entity kind
// and id. The cache never loads data by itself; callers fill it after a miss
// and the mutation orchestrator evicts entries after every commit.
package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Kind names a family of cached projections.
type Kind string

const (
	// KindTask holds task projections keyed by task id.
	KindTask Kind = "tasks"
	// KindUser holds user projections keyed by user id.
	KindUser Kind = "user_resp"
	// KindUserByEmail holds identity lookups keyed by email.
	KindUserByEmail Kind = "users"
)

// Key addresses one cache entry.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string { return string(k.Kind) + ":" + k.ID }

func TaskKey(id int64) Key { return Key{Kind: KindTask, ID: strconv.FormatInt(id, 10)} }
func UserKey(id int64) Key { return Key{Kind: KindUser, ID: strconv.FormatInt(id, 10)} }
func EmailKey(email string) Key { return Key{Kind: KindUserByEmail, ID: email} }

// Invalidation is a single eviction: one key, or every entry of Key.Kind when All is set.
type Invalidation struct {
	Key Key
	All bool
}

func (i Invalidation) String() string {
	if i.All {
		return string(i.Key.Kind) + ":*"
	}
	return i.Key.String()
}

// Evict returns an invalidation for one key.
func Evict(k Key) Invalidation { return Invalidation{Key: k} }

// EvictAll returns an invalidation for every entry of a kind.
func EvictAll(kind Kind) Invalidation { return Invalidation{Key: Key{Kind: kind}, All: true} }

// Cache is a keyed store of serialized projections.
//
// Every eviction advances the generation of its kind. A reader that captured
// the generation before loading from the store uses PutIfGeneration so that
// it cannot resurrect a projection that a concurrent mutation has evicted.
type Cache interface {
	Get(ctx context.Context, kind Kind, id string) ([]byte, bool, error)
	Put(ctx context.Context, kind Kind, id string, value []byte) error
	Evict(ctx context.Context, kind Kind, id string) error
	EvictAll(ctx context.Context, kind Kind) error
	Generation(ctx context.Context, kind Kind) (uint64, error)
	PutIfGeneration(ctx context.Context, kind Kind, id string, value []byte, gen uint64) (bool, error)
}

// Apply performs the invalidations in order and returns those that were
// carried out. It stops at the first failure.
func Apply(ctx context.Context, c Cache, invs []Invalidation) ([]Invalidation, error) {
	done := make([]Invalidation, 0, len(invs))
	for _, inv := range invs {
		var err error
		if inv.All {
			err = c.EvictAll(ctx, inv.Key.Kind)
		} else {
			err = c.Evict(ctx, inv.Key.Kind, inv.Key.ID)
		}
		if err != nil {
			return done, fmt.Errorf("evict %s: %w", inv, err)
		}
		done = append(done, inv)
	}
	return done, nil
}

// Config selects and sizes the cache backend.
type Config struct {
	Backend       string // lru / redis
	Size          int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
}

// ConfigFromEnv reads CACHE_BACKEND, CACHE_SIZE and the REDIS_* variables.
func ConfigFromEnv() Config {
	cfg := Config{Backend: "lru", Size: 1024, Prefix: "tms:"}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v, err := strconv.Atoi(os.Getenv("CACHE_SIZE")); err == nil && v > 0 {
		cfg.Size = v
	}
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.RedisDB = v
	}
	if v := os.Getenv("CACHE_PREFIX"); v != "" {
		cfg.Prefix = v
	}
	return cfg
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", "lru":
		return NewLRU(cfg.Size)
	case "redis":
		return DialRedis(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}
