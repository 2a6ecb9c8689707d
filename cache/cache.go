package cache

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-medlocus/internal/cacheinfra"
	"github.com/goliatone/go-medlocus/internal/logging"
)

// Status is the freshness of a cache entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusError   Status = "error"
)

// Entry is a stored query result.
type Entry struct {
	Key   Key
	Value any
	// Err holds the last fetch error. It stays set until a later
	// successful fetch replaces the entry.
	Err    error
	Status Status
	// UpdatedAt is stamped by every data write (fetch result, Set, Update).
	UpdatedAt time.Time
	// InvalidatedAt is stamped by the last Invalidate that matched the key.
	InvalidatedAt time.Time
}

// HasValue reports whether the entry carries data.
func (e Entry) HasValue() bool {
	return e.Value != nil
}

// Callback receives the new state of an entry.
type Callback func(Entry)

// MergeFn computes a new value from the current one. It must not mutate
// current in place.
type MergeFn func(current any) any

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithKeySerializer replaces the storage key serializer.
func WithKeySerializer(s KeySerializer) Option {
	return func(c *Cache) {
		if s != nil {
			c.serializer = s
		}
	}
}

// Cache is a keyed store of query results with freshness tracking and
// per-key subscriptions. Instances are independent; create one per client.
type Cache struct {
	store      *cacheinfra.Store[Entry]
	serializer KeySerializer
	now        func() time.Time
	logger     logging.Logger

	// mu serializes read-modify-write cycles on entries so notifications
	// are enqueued in write order.
	mu      sync.Mutex
	cleared time.Time
	subs    *xsync.MapOf[string, *subscribers]
	waiting *xsync.MapOf[string, *xsync.Counter]
	group   singleflight.Group
	stats   counters
}

// New creates a Cache.
func New(cfg Config, opts ...Option) (*Cache, error) {
	store, err := cacheinfra.NewStore[Entry](cfg.toInternal())
	if err != nil {
		return nil, err
	}

	c := &Cache{
		store:      store,
		serializer: NewDefaultKeySerializer(),
		now:        time.Now,
		logger:     logging.Nop(),
		subs:       xsync.NewMapOf[string, *subscribers](),
		waiting:    xsync.NewMapOf[string, *xsync.Counter](),
		stats:      newCounters(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) storageKey(k Key) string {
	return c.serializer.SerializeKey(k.Resource, k.Params...)
}

// Get returns the entry stored for key.
func (c *Cache) Get(key Key) (Entry, bool) {
	return c.store.Get(c.storageKey(key))
}

// Set overwrites the entry for key, stamps UpdatedAt and notifies
// subscribers. Err is cleared unless status is StatusError.
func (c *Cache) Set(key Key, value any, status Status) {
	c.mutate(key, func(prev Entry, _ bool) (Entry, bool) {
		next := Entry{
			Key:           key,
			Value:         value,
			Status:        status,
			UpdatedAt:     c.now(),
			InvalidatedAt: prev.InvalidatedAt,
		}
		if status == StatusError {
			next.Err = prev.Err
		}
		return next, true
	})
}

// Delete removes the entry for key. Subscribers are not notified.
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Delete(c.storageKey(key))
}

// Clear removes every entry. Subscribers are not notified. A fetch issued
// before the call still returns its result to its callers but does not
// store it. It returns the number of entries removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = c.now()
	keys := c.store.Keys()
	for _, sk := range keys {
		c.store.Delete(sk)
	}
	c.logger.Debug("cleared", "entries", len(keys))
	return len(keys)
}

// Invalidate marks every entry whose key matches as stale. Data is kept so
// readers keep seeing it while a refetch is pending. It returns the number
// of entries matched.
func (c *Cache) Invalidate(match Matcher) int {
	if match == nil {
		return 0
	}

	count := 0
	for _, sk := range c.store.Keys() {
		entry, ok := c.store.Get(sk)
		if !ok || !match(entry.Key) {
			continue
		}
		at := c.now()
		_, written := c.mutateStorage(sk, func(prev Entry, ok bool) (Entry, bool) {
			if !ok {
				return prev, false
			}
			prev.Status = StatusStale
			prev.InvalidatedAt = at
			return prev, true
		})
		if written {
			count++
		}
	}

	if count > 0 {
		c.stats.invalidations.Add(int64(count))
		c.logger.Debug("invalidated", "entries", count)
	}
	return count
}

// Update applies merge to the current value of key and stores the result
// with a new UpdatedAt, keeping the status. It never fetches. When the key
// has no entry, or the entry has no value yet, Update does nothing and
// returns false.
func (c *Cache) Update(key Key, merge MergeFn) bool {
	if merge == nil {
		return false
	}
	_, written := c.mutate(key, func(prev Entry, ok bool) (Entry, bool) {
		if !ok || !prev.HasValue() {
			return prev, false
		}
		prev.Value = merge(prev.Value)
		prev.UpdatedAt = c.now()
		return prev, true
	})
	if written {
		c.stats.deltas.Inc()
	}
	return written
}

// Keys returns the keys of every stored entry, in no particular order.
func (c *Cache) Keys() []Key {
	storageKeys := c.store.Keys()
	keys := make([]Key, 0, len(storageKeys))
	for _, sk := range storageKeys {
		if e, ok := c.store.Get(sk); ok {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	return c.store.Len()
}

// InFlight returns how many callers are currently waiting on a fetch for key.
func (c *Cache) InFlight(key Key) int {
	ctr, ok := c.waiting.Load(c.storageKey(key))
	if !ok {
		return 0
	}
	return int(ctr.Value())
}

func (c *Cache) addWaiter(sk string, delta int64) {
	ctr, _ := c.waiting.LoadOrCompute(sk, func() *xsync.Counter {
		return xsync.NewCounter()
	})
	ctr.Add(delta)
}

// markPending creates a pending entry when key has none. Existing entries
// keep their data and status.
func (c *Cache) markPending(key Key) {
	c.mutate(key, func(prev Entry, ok bool) (Entry, bool) {
		if ok {
			return prev, false
		}
		return Entry{Key: key, Status: StatusPending}, true
	})
}

// storeFetched stores a network result fetched at issued. A data write
// newer than issued wins over the response; equal timestamps favor the
// response. If the key was invalidated at or after issued the result is
// stored stale. A result issued at or before the last Clear is dropped and
// handed back as is. It returns the value callers should see and whether
// the response was stored.
func (c *Cache) storeFetched(key Key, value any, issued time.Time) (any, bool) {
	dropped := false
	stored, written := c.mutate(key, func(prev Entry, ok bool) (Entry, bool) {
		if !c.cleared.IsZero() && !c.cleared.Before(issued) {
			dropped = true
			return prev, false
		}
		if ok && prev.HasValue() && prev.UpdatedAt.After(issued) {
			return prev, false
		}

		status := StatusFresh
		if ok && !prev.InvalidatedAt.IsZero() && !prev.InvalidatedAt.Before(issued) {
			status = StatusStale
		}

		return Entry{
			Key:           key,
			Value:         value,
			Status:        status,
			UpdatedAt:     c.now(),
			InvalidatedAt: prev.InvalidatedAt,
		}, true
	})
	if dropped {
		return value, false
	}
	return stored.Value, written
}

// storeError records a failed fetch. Previous data stays visible.
func (c *Cache) storeError(key Key, err error) {
	c.mutate(key, func(prev Entry, ok bool) (Entry, bool) {
		if !ok {
			prev = Entry{Key: key}
		}
		prev.Err = err
		prev.Status = StatusError
		return prev, true
	})
}

func (c *Cache) mutate(key Key, fn func(prev Entry, ok bool) (Entry, bool)) (Entry, bool) {
	return c.mutateStorage(c.storageKey(key), fn)
}

// mutateStorage runs fn under the write lock. When fn asks for a write the
// new entry is stored and queued for subscribers before the lock is
// released; delivery happens outside the lock.
func (c *Cache) mutateStorage(sk string, fn func(prev Entry, ok bool) (Entry, bool)) (Entry, bool) {
	c.mu.Lock()
	prev, ok := c.store.Get(sk)
	next, write := fn(prev, ok)
	if !write {
		c.mu.Unlock()
		return prev, false
	}
	c.store.Set(sk, next)
	subs, hasSubs := c.subs.Load(sk)
	if hasSubs {
		subs.enqueue(next)
	}
	c.mu.Unlock()

	if hasSubs {
		subs.drain()
	}
	return next, true
}
