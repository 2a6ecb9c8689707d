package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

func TestGetOrFetch_FreshHitSkipsNetwork(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")
	var calls atomic.Int32

	fetch := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"sales"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrFetch(context.Background(), c, key, fetch)
		if err != nil {
			t.Fatalf("GetOrFetch: %v", err)
		}
		if diff := cmp.Diff([]string{"sales"}, got); diff != "" {
			t.Errorf("unexpected value (-want +got):\n%s", diff)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch, got %d", calls.Load())
	}
	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Fetches != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestGetOrFetch_DeduplicatesConcurrentReads(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("medicines", "search", "para")
	release := make(chan struct{})
	var calls atomic.Int32

	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const readers = 10
	var wg sync.WaitGroup
	results := make([]int, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = GetOrFetch(context.Background(), c, key, fetch)
		}(i)
	}

	waitFor(t, "all readers to wait", func() bool { return c.InFlight(key) == readers })
	close(release)
	wg.Wait()

	for i := 0; i < readers; i++ {
		if errs[i] != nil || results[i] != 42 {
			t.Errorf("reader %d got (%d, %v)", i, results[i], errs[i])
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", calls.Load())
	}
	if stats := c.Stats(); stats.Fetches != 1 || stats.Shared == 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if c.InFlight(key) != 0 {
		t.Errorf("expected no waiters left, got %d", c.InFlight(key))
	}
}

func TestGetOrFetch_SharesErrorWithAllWaiters(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")
	release := make(chan struct{})
	boom := errors.New("boom")
	var calls atomic.Int32

	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 0, boom
	}

	const readers = 5
	var wg sync.WaitGroup
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = GetOrFetch(context.Background(), c, key, fetch)
		}(i)
	}

	waitFor(t, "all readers to wait", func() bool { return c.InFlight(key) == readers })
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("reader %d: expected boom, got %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", calls.Load())
	}

	entry, ok := c.Get(key)
	if !ok || entry.Status != StatusError || !errors.Is(entry.Err, boom) {
		t.Errorf("expected error entry, got %+v", entry)
	}
}

func TestGetOrFetch_ErrorKeepsPreviousData(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")
	c.Set(key, 7, StatusStale)

	_, err := GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		return 0, errors.New("offline")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	entry, _ := c.Get(key)
	if entry.Status != StatusError || entry.Value != 7 || entry.Err == nil {
		t.Errorf("expected error entry keeping value 7, got %+v", entry)
	}

	got, err := GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		return 8, nil
	})
	if err != nil || got != 8 {
		t.Fatalf("retry: got (%d, %v)", got, err)
	}
	entry, _ = c.Get(key)
	if entry.Status != StatusFresh || entry.Err != nil {
		t.Errorf("expected fresh entry after retry, got %+v", entry)
	}
}

func TestGetOrFetch_CallerCancelDoesNotAbortFetch(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("report-summary")
	release := make(chan struct{})
	var fetchCtxErr atomic.Value

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := GetOrFetch(ctx, c, key, func(fctx context.Context) (string, error) {
			<-release
			if fctx.Err() != nil {
				fetchCtxErr.Store(fctx.Err())
			}
			return "summary", nil
		})
		done <- err
	}()

	waitFor(t, "fetch to start", func() bool { return c.InFlight(key) == 1 })
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	waitFor(t, "fetch to land", func() bool {
		e, ok := c.Get(key)
		return ok && e.Status == StatusFresh
	})
	if v := fetchCtxErr.Load(); v != nil {
		t.Errorf("fetch context was cancelled: %v", v)
	}
}

func TestInvalidate_MarksStaleAndRefetches(t *testing.T) {
	c := newTestCache(t)
	meds := NewKey("medicines")
	custs := NewKey("customers")
	c.Set(meds, "old", StatusFresh)
	c.Set(custs, "people", StatusFresh)

	if n := c.Invalidate(ByResource("medicines")); n != 1 {
		t.Fatalf("expected 1 invalidated entry, got %d", n)
	}

	entry, _ := c.Get(meds)
	if entry.Status != StatusStale || entry.Value != "old" {
		t.Errorf("expected stale entry keeping data, got %+v", entry)
	}
	if entry, _ := c.Get(custs); entry.Status != StatusFresh {
		t.Errorf("customers should stay fresh, got %s", entry.Status)
	}

	got, err := GetOrFetch(context.Background(), c, meds, func(ctx context.Context) (string, error) {
		return "new", nil
	})
	if err != nil || got != "new" {
		t.Fatalf("refetch: got (%q, %v)", got, err)
	}
	if entry, _ := c.Get(meds); entry.Status != StatusFresh {
		t.Errorf("expected fresh after refetch, got %s", entry.Status)
	}
}

func TestInvalidate_DuringFlightStoresStale(t *testing.T) {
	clock := newStepClock()
	c := newTestCache(t, WithClock(clock.Now))
	key := NewKey("kpis")

	got, err := GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		c.Invalidate(ByResource("kpis"))
		return 1, nil
	})
	if err != nil || got != 1 {
		t.Fatalf("GetOrFetch: (%d, %v)", got, err)
	}

	entry, _ := c.Get(key)
	if entry.Status != StatusStale {
		t.Errorf("expected stale entry, got %s", entry.Status)
	}
}

func TestClear_RemovesEntriesAndDropsInFlightResults(t *testing.T) {
	clock := newStepClock()
	c := newTestCache(t, WithClock(clock.Now))
	c.Set(NewKey("medicines"), "list", StatusFresh)
	c.Set(NewKey("customers"), "people", StatusFresh)

	key := NewKey("kpis")
	got, err := GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		if n := c.Clear(); n != 3 {
			t.Errorf("expected 3 cleared entries, got %d", n)
		}
		return 1, nil
	})
	if err != nil || got != 1 {
		t.Fatalf("GetOrFetch: (%d, %v)", got, err)
	}

	if c.Len() != 0 {
		t.Errorf("expected empty cache, got keys %v", c.Keys())
	}

	got, err = GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		return 2, nil
	})
	if err != nil || got != 2 {
		t.Fatalf("GetOrFetch after clear: (%d, %v)", got, err)
	}
	if entry, _ := c.Get(key); entry.Status != StatusFresh || entry.Value != 2 {
		t.Errorf("expected fetches after clear to be stored, got %+v", entry)
	}
}

func TestGetOrFetch_NewerDeltaWinsOverResponse(t *testing.T) {
	clock := newStepClock()
	c := newTestCache(t, WithClock(clock.Now))
	key := NewKey("kpis")
	c.Set(key, 100, StatusStale)

	got, err := GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		if !c.Update(key, func(cur any) any { return cur.(int) + 5 }) {
			t.Error("expected delta to apply")
		}
		return 200, nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if got != 105 {
		t.Errorf("expected cached value 105, got %d", got)
	}
	if entry, _ := c.Get(key); entry.Value != 105 {
		t.Errorf("expected cache to keep 105, got %v", entry.Value)
	}
}

func TestGetOrFetch_TimestampTieFavorsResponse(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c := newTestCache(t, WithClock(func() time.Time { return fixed }))
	key := NewKey("kpis")
	c.Set(key, 100, StatusStale)

	got, err := GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		c.Update(key, func(cur any) any { return cur.(int) + 5 })
		return 200, nil
	})
	if err != nil || got != 200 {
		t.Fatalf("expected network value 200, got (%d, %v)", got, err)
	}
}

func TestUpdate_NoEntryIsNoop(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")

	if c.Update(key, func(cur any) any { return cur }) {
		t.Error("Update on missing key must report false")
	}
	if _, ok := c.Get(key); ok {
		t.Error("Update must not create entries")
	}

	c.markPending(key)
	if c.Update(key, func(cur any) any { return 1 }) {
		t.Error("Update on pending entry without data must report false")
	}
	if c.Stats().Deltas != 0 {
		t.Errorf("expected no deltas counted, got %d", c.Stats().Deltas)
	}
}

func TestUpdate_KeepsStatus(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")
	c.Set(key, 1, StatusFresh)

	if !c.Update(key, func(cur any) any { return cur.(int) * 10 }) {
		t.Fatal("expected update")
	}
	entry, _ := c.Get(key)
	if entry.Value != 10 || entry.Status != StatusFresh {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestSubscribe_RegistrationOrderAndStatuses(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")

	var (
		mu  sync.Mutex
		got []string
	)
	record := func(name string) Callback {
		return func(e Entry) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name+":"+string(e.Status))
		}
	}
	c.Subscribe(key, record("a"))
	c.Subscribe(key, record("b"))

	if _, err := GetOrFetch(context.Background(), c, key, func(ctx context.Context) (int, error) {
		return 1, nil
	}); err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	c.Invalidate(ByResource("kpis"))

	want := []string{
		"a:pending", "b:pending",
		"a:fresh", "b:fresh",
		"a:stale", "b:stale",
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected notifications (-want +got):\n%s", diff)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")
	var calls atomic.Int32

	sub := c.Subscribe(key, func(Entry) { calls.Add(1) })
	c.Set(key, 1, StatusFresh)
	sub.Unsubscribe()
	sub.Unsubscribe()
	c.Set(key, 2, StatusFresh)

	if calls.Load() != 1 {
		t.Errorf("expected 1 notification, got %d", calls.Load())
	}
}

func TestSubscribe_CallbackMayWriteOwnKey(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")
	var seen []any

	var sub *Subscription
	sub = c.Subscribe(key, func(e Entry) {
		seen = append(seen, e.Value)
		if e.Value == 1 {
			c.Set(key, 2, StatusFresh)
			return
		}
		sub.Unsubscribe()
	})
	c.Set(key, 1, StatusFresh)
	c.Set(key, 3, StatusFresh)

	if diff := cmp.Diff([]any{1, 2}, seen); diff != "" {
		t.Errorf("unexpected deliveries (-want +got):\n%s", diff)
	}
}

func TestSubscribe_PanickingCallbackIsIsolated(t *testing.T) {
	c := newTestCache(t)
	key := NewKey("kpis")

	var panicked atomic.Bool
	c.Subscribe(key, func(Entry) {
		if panicked.CompareAndSwap(false, true) {
			panic("boom")
		}
	})
	var seen []any
	c.Subscribe(key, func(e Entry) { seen = append(seen, e.Value) })

	c.Set(key, 1, StatusFresh)
	c.Set(key, 2, StatusFresh)
	if !c.Update(key, func(v any) any { return v.(int) + 1 }) {
		t.Fatal("expected Update to write")
	}

	if diff := cmp.Diff([]any{1, 2, 3}, seen); diff != "" {
		t.Errorf("unexpected deliveries (-want +got):\n%s", diff)
	}
}

func TestSubscribe_OtherKeysNotNotified(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32
	c.Subscribe(NewKey("medicines", "id", 1), func(Entry) { calls.Add(1) })

	c.Set(NewKey("medicines", "id", 2), "x", StatusFresh)
	c.Set(NewKey("medicines"), "y", StatusFresh)

	if calls.Load() != 0 {
		t.Errorf("expected no notifications, got %d", calls.Load())
	}
}

func TestNumericParamTypesAddressDistinctEntries(t *testing.T) {
	c := newTestCache(t)
	c.Set(NewKey("medicines", "id", 1), "int", StatusFresh)

	for _, key := range []Key{
		NewKey("medicines", "id", 1.0),
		NewKey("medicines", "id", int64(1)),
		NewKey("medicines", "id", "1"),
	} {
		if e, ok := c.Get(key); ok {
			t.Errorf("%s should not read the int entry, got %+v", key, e)
		}
	}
	if e, ok := c.Get(NewKey("medicines", "id", 1)); !ok || e.Value != "int" {
		t.Errorf("expected the int entry, got %+v (found=%v)", e, ok)
	}
}

func TestKeysAndDelete(t *testing.T) {
	c := newTestCache(t)
	c.Set(NewKey("kpis"), 1, StatusFresh)
	c.Set(NewKey("medicines", "id", 3), 2, StatusFresh)

	if c.Len() != 2 || len(c.Keys()) != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	c.Delete(NewKey("kpis"))
	keys := c.Keys()
	if len(keys) != 1 || !keys[0].Equal(NewKey("medicines", "id", 3)) {
		t.Errorf("unexpected keys %v", keys)
	}
}
