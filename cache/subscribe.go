package cache

import (
	"fmt"
	"sync"

	"github.com/goliatone/go-medlocus/internal/logging"
)

// Subscription is the handle returned by Subscribe. Unsubscribe is the only
// way to stop deliveries.
type Subscription struct {
	id    uint64
	cb    Callback
	owner *subscribers
	once  sync.Once
}

// Unsubscribe stops deliveries to the callback. It is safe to call more
// than once and from inside the callback itself.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.owner.remove(s.id)
	})
}

// subscribers holds the callbacks for one storage key and the queue of
// entries waiting to be delivered to them. Entries are delivered one at a
// time in enqueue order by whichever writer finds the queue idle.
type subscribers struct {
	key    string
	logger logging.Logger

	mu       sync.Mutex
	nextID   uint64
	list     []*Subscription
	queue    []Entry
	draining bool
}

// Subscribe registers cb for every change to key: data writes, status
// transitions and errors. Callbacks for the same key run in registration
// order and observe writes in the order they happened. A callback may write
// to the cache, including to its own key; that write is delivered after the
// current one.
func (c *Cache) Subscribe(key Key, cb Callback) *Subscription {
	sk := c.storageKey(key)
	subs, _ := c.subs.LoadOrCompute(sk, func() *subscribers {
		return &subscribers{key: sk, logger: c.logger}
	})
	return subs.add(cb)
}

func (s *subscribers) add(cb Callback) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &Subscription{id: s.nextID, cb: cb, owner: s}
	s.list = append(s.list, sub)
	return sub
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *subscribers) enqueue(e Entry) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
}

func (s *subscribers) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		e := s.queue[0]
		s.queue = s.queue[1:]
		targets := make([]*Subscription, len(s.list))
		copy(targets, s.list)
		s.mu.Unlock()

		for _, sub := range targets {
			if s.active(sub.id) {
				s.deliver(sub, e)
			}
		}

		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

// deliver runs one callback. A panic is logged and does not stop delivery
// to the remaining callbacks or later entries.
func (s *subscribers) deliver(sub *Subscription, e Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("subscriber panicked", "key", s.key, "error", fmt.Sprint(r))
		}
	}()
	sub.cb(e)
}

func (s *subscribers) active(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.list {
		if sub.id == id {
			return true
		}
	}
	return false
}
