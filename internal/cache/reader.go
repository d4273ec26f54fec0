package cache

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Reader performs read-through lookups on behalf of query services. Cache
// failures degrade to loading from the store.
type Reader struct {
	cache  Cache
	logger *zap.SugaredLogger
}

func NewReader(c Cache, logger *zap.SugaredLogger) *Reader {
	return &Reader{cache: c, logger: logger}
}

// Fetch returns the cached projection for key, or calls load and fills the
// cache when no eviction of key.Kind happened while loading.
func Fetch[T any](ctx context.Context, r *Reader, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T
	raw, ok, err := r.cache.Get(ctx, key.Kind, key.ID)
	if err != nil {
		r.logger.Warnw("cache get failed", "key", key.String(), "err", err)
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		r.logger.Warnw("cache entry undecodable, reloading", "key", key.String())
	}

	gen, genErr := r.cache.Generation(ctx, key.Kind)
	v, err := load(ctx)
	if err != nil {
		return zero, err
	}
	if genErr != nil {
		r.logger.Warnw("cache generation unavailable, skipping fill", "key", key.String(), "err", genErr)
		return v, nil
	}
	raw, err = json.Marshal(v)
	if err != nil {
		r.logger.Warnw("cache encode failed", "key", key.String(), "err", err)
		return v, nil
	}
	stored, err := r.cache.PutIfGeneration(ctx, key.Kind, key.ID, raw, gen)
	if err != nil {
		r.logger.Warnw("cache put failed", "key", key.String(), "err", err)
	} else if !stored {
		r.logger.Debugw("cache fill skipped after concurrent eviction", "key", key.String())
	}
	return v, nil
}
