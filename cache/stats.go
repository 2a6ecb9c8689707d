package cache

import "github.com/puzpuzpuz/xsync/v3"

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits          int64
	Misses        int64
	Fetches       int64
	Shared        int64
	Errors        int64
	Invalidations int64
	Deltas        int64
	Entries       int
}

type counters struct {
	hits          *xsync.Counter
	misses        *xsync.Counter
	fetches       *xsync.Counter
	shared        *xsync.Counter
	errors        *xsync.Counter
	invalidations *xsync.Counter
	deltas        *xsync.Counter
}

func newCounters() counters {
	return counters{
		hits:          xsync.NewCounter(),
		misses:        xsync.NewCounter(),
		fetches:       xsync.NewCounter(),
		shared:        xsync.NewCounter(),
		errors:        xsync.NewCounter(),
		invalidations: xsync.NewCounter(),
		deltas:        xsync.NewCounter(),
	}
}

// Stats returns a snapshot of the cache counters. Fetches counts network
// calls actually issued; Shared counts callers that joined a fetch started
// by someone else.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.stats.hits.Value(),
		Misses:        c.stats.misses.Value(),
		Fetches:       c.stats.fetches.Value(),
		Shared:        c.stats.shared.Value(),
		Errors:        c.stats.errors.Value(),
		Invalidations: c.stats.invalidations.Value(),
		Deltas:        c.stats.deltas.Value(),
		Entries:       c.Len(),
	}
}
