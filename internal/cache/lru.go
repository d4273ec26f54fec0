package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is an in-process cache with one bounded LRU per kind.
type LRU struct {
	mu    sync.Mutex
	size  int
	kinds map[Kind]*lru.Cache[string, []byte]
	gens  map[Kind]uint64
}

// NewLRU creates a cache holding at most size entries per kind.
func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	return &LRU{
		size:  size,
		kinds: make(map[Kind]*lru.Cache[string, []byte]),
		gens:  make(map[Kind]uint64),
	}, nil
}

// bucket must be called with mu held.
func (c *LRU) bucket(kind Kind) (*lru.Cache[string, []byte], error) {
	b, ok := c.kinds[kind]
	if ok {
		return b, nil
	}
	b, err := lru.New[string, []byte](c.size)
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", kind, err)
	}
	c.kinds[kind] = b
	return b, nil
}

func (c *LRU) Get(_ context.Context, kind Kind, id string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.kinds[kind]
	if !ok {
		return nil, false, nil
	}
	v, ok := b.Get(id)
	return v, ok, nil
}

func (c *LRU) Put(_ context.Context, kind Kind, id string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.bucket(kind)
	if err != nil {
		return err
	}
	b.Add(id, value)
	return nil
}

func (c *LRU) Evict(_ context.Context, kind Kind, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.kinds[kind]; ok {
		b.Remove(id)
	}
	c.gens[kind]++
	return nil
}

func (c *LRU) EvictAll(_ context.Context, kind Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.kinds[kind]; ok {
		b.Purge()
	}
	c.gens[kind]++
	return nil
}

func (c *LRU) Generation(_ context.Context, kind Kind) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[kind], nil
}

func (c *LRU) PutIfGeneration(_ context.Context, kind Kind, id string, value []byte, gen uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[kind] != gen {
		return false, nil
	}
	b, err := c.bucket(kind)
	if err != nil {
		return false, err
	}
	b.Add(id, value)
	return true, nil
}

// Len reports the number of entries held for kind.
func (c *LRU) Len(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.kinds[kind]; ok {
		return b.Len()
	}
	return 0
}
