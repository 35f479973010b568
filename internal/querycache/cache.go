// Package querycache memoizes diff and range query results under normalized
// keys. Entries never expire on their own; the ingestion layer flushes the
// cache after every successful write.
package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/shelfwatch/shelfwatch/internal/observability"
)

// Store is the byte-level backend of a Cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Flush(ctx context.Context) error
}

// Cache wraps a Store with per-key computation dedup and flush generations.
type Cache struct {
	store Store
	log   logrus.FieldLogger
	group singleflight.Group

	// mu orders stores against flushes: a value computed before a flush is
	// never written after it.
	mu  sync.RWMutex
	gen uint64
}

// New creates a Cache over store.
func New(store Store, log logrus.FieldLogger) *Cache {
	return &Cache{
		store: store,
		log:   log.WithField("component", "querycache"),
	}
}

// GetOrCompute returns the cached value for key, or runs compute, stores its
// result and returns it. Concurrent misses on the same key share one compute
// call. Backend errors degrade to a miss; only compute errors are returned.
// A nil cache always computes.
func GetOrCompute[T any](ctx context.Context, c *Cache, key Key, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return compute(ctx)
	}

	k := key.String()
	if data, ok := c.lookup(ctx, k); ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			observability.RecordCacheLookup(key.Kind, true)
			return v, nil
		}
		c.log.WithField("key", k).Warn("Discarding undecodable cache entry")
	}
	observability.RecordCacheLookup(key.Kind, false)

	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	// The shared compute outlives any single caller; each caller stops
	// waiting when its own context ends.
	ch := c.group.DoChan(fmt.Sprintf("%d|%s", gen, k), func() (any, error) {
		sctx := context.WithoutCancel(ctx)
		v, err := compute(sctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cache value: %w", err)
		}
		c.put(sctx, gen, k, data)
		return data, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}

	// Every caller decodes its own copy so shared results cannot be mutated.
	var v T
	if err := json.Unmarshal(res.Val.([]byte), &v); err != nil {
		return zero, fmt.Errorf("decode cache value: %w", err)
	}
	return v, nil
}

// Flush drops every entry. Computations already running will not store
// their results.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	observability.CacheFlushes.Inc()
	if err := c.store.Flush(ctx); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	c.log.Debug("Cache flushed")
	return nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache lookup failed")
		return nil, false
	}
	return data, ok
}

func (c *Cache) put(ctx context.Context, gen uint64, key string, data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.gen != gen {
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Cache store failed")
	}
}
