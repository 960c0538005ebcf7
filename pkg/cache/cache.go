package cache

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gregpriday/copytree/pkg/logging"
)

// Key builds the cache key for a file identity and its current content.
// The content hash is part of the key, which is the cache's correctness
// contract: changed content can only ever look up a different key.
func Key(identity string, content []byte) string {
	return identity + ":" + strconv.FormatUint(xxhash.Sum64(content), 16)
}

// Cache wraps a Store with single-flight computation so identical inputs
// observed concurrently compute their transform at most once per run.
type Cache struct {
	store  Store
	group  singleflight.Group
	logger zerolog.Logger
}

// New creates a Cache over the given store
func New(store Store) *Cache {
	return &Cache{
		store:  store,
		logger: logging.GetLogger("cache"),
	}
}

// Get looks up a previously computed transform for this exact content
func (c *Cache) Get(ctx context.Context, identity string, content []byte) (*Entry, bool) {
	entry, ok, err := c.store.Get(ctx, Key(identity, content))
	if err != nil {
		c.logger.Debug().Err(err).Str("identity", identity).Msg("Cache read failed")
		return nil, false
	}
	return entry, ok
}

// GetOrCompute returns the cached entry for (identity, content hash) or
// runs compute to produce one. Concurrent callers with the same key share
// a single compute invocation. The returned bool reports a store hit.
func (c *Cache) GetOrCompute(ctx context.Context, identity string, content []byte, compute func() (*Entry, error)) (*Entry, bool, error) {
	key := Key(identity, content)

	if entry, ok, err := c.store.Get(ctx, key); err == nil && ok {
		return entry, true, nil
	} else if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache read failed, computing")
	}

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		// Another flight may have populated the store while we queued
		if entry, ok, err := c.store.Get(ctx, key); err == nil && ok {
			return entry, nil
		}

		entry, err := compute()
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, entry); err != nil {
			// A failed write degrades to recompute-next-time
			c.logger.Debug().Err(err).Str("key", key).Msg("Cache write failed")
		}
		return entry, nil
	})
	if err != nil {
		return nil, false, err
	}

	if shared {
		c.logger.Debug().Str("key", key).Msg("Shared in-flight transform result")
	}
	return result.(*Entry), false, nil
}
