// Package queries binds the backend endpoints to the cache.
//
// Each read computes a cache key from its resource name and parameters and
// goes through cache.GetOrFetch, so concurrent views of the same data share
// one request. Each write calls the backend directly and, only when it
// succeeds, marks every resource listed for it in InvalidationTable as
// stale:
//
//	b := queries.New(client, c, queries.WithReadRetry(3, 200*time.Millisecond))
//	meds, err := b.Medicines(ctx, "para")
//	_, err = b.CreateSale(ctx, sale) // medicines, kpis, ... are now stale
//
// Login is not bound here; the session package owns it.
package queries
