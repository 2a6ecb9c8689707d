// Package cache provides the query-result cache shared by every data view.
//
// # Overview
//
// A Cache stores one Entry per Key. A Key is a resource name plus an ordered
// list of parameters; its storage form is produced by a KeySerializer:
//
//	key := cache.NewKey("medicines", "search", "para")
//	key.String() // "medicines::search::para"
//
// Entries move through four statuses: pending (a first fetch is in flight),
// fresh, stale (invalidated, data still readable) and error (last fetch
// failed, previous data still readable).
//
// # Reading
//
// GetOrFetch is the read path. Concurrent reads of one key share a single
// fetch; a fresh entry is served without touching the network:
//
//	kpis, err := cache.GetOrFetch(ctx, c, cache.NewKey("kpis"), func(ctx context.Context) ([]model.KPI, error) {
//		return client.KPIs(ctx)
//	})
//
// # Writing
//
// Invalidate marks matching entries stale so the next read refetches them.
// Update applies an in-place merge to an existing value and never fetches;
// it is how real-time deltas reach the cache. Every write stamps UpdatedAt,
// and a fetch response that was issued before a newer write is discarded.
//
// # Subscriptions
//
// Subscribe registers a callback for one key and returns a Subscription
// handle. Callbacks run in registration order and see writes in the order
// they happened.
//
// # See Also
//
// The queries package binds api endpoints to cache keys and owns the
// invalidation table used after mutations.
package cache
