package cache

import (
	"context"
	"fmt"
)

// FetchFn loads the value for a key from the network.
type FetchFn[T any] func(ctx context.Context) (T, error)

// GetOrFetch returns the fresh cached value for key, or fetches it.
//
// Concurrent callers for the same key share one fetch and all receive its
// outcome, error included. The fetch is detached from the caller's
// cancellation: a caller whose ctx ends gets ctx.Err() while the fetch runs
// on and still stores its result for the remaining callers.
//
// Stale and errored entries trigger a refetch; their data stays readable
// through Get until the response lands. When the entry receives a newer
// data write (for example a real-time delta) while the fetch is in flight,
// the response is discarded and the cached value is returned instead.
func GetOrFetch[T any](ctx context.Context, c *Cache, key Key, fetch FetchFn[T]) (T, error) {
	var zero T

	if v, ok := freshValue[T](c, key); ok {
		c.stats.hits.Inc()
		return v, nil
	}
	c.stats.misses.Inc()

	sk := c.storageKey(key)
	c.addWaiter(sk, 1)
	defer c.addWaiter(sk, -1)

	started := false
	ch := c.group.DoChan(sk, func() (any, error) {
		started = true
		// A flight that finished between the check above and DoChan has
		// already stored a fresh value.
		if v, ok := freshValue[T](c, key); ok {
			return v, nil
		}
		return c.runFetch(context.WithoutCancel(ctx), key, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if !started {
			c.stats.shared.Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok && res.Val != nil {
			return zero, fmt.Errorf("cache: value for %s has type %T, want %T", sk, res.Val, zero)
		}
		return v, nil
	}
}

func freshValue[T any](c *Cache, key Key) (T, bool) {
	var zero T
	e, ok := c.Get(key)
	if !ok || e.Status != StatusFresh {
		return zero, false
	}
	v, ok := e.Value.(T)
	return v, ok
}

func (c *Cache) runFetch(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	issued := c.now()
	c.markPending(key)
	c.stats.fetches.Inc()

	v, err := fetch(ctx)
	if err != nil {
		c.stats.errors.Inc()
		c.storeError(key, err)
		c.logger.Warn("fetch failed", "key", key.String(), "error", err)
		return nil, err
	}

	stored, accepted := c.storeFetched(key, v, issued)
	if !accepted {
		c.logger.Debug("fetch result not stored", "key", key.String())
	}
	return stored, nil
}
