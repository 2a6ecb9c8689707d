package queries

import (
	"context"
	"time"

	"github.com/goliatone/go-medlocus/api"
	"github.com/goliatone/go-medlocus/cache"
	"github.com/goliatone/go-medlocus/internal/logging"
)

type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

// withRetry runs fetch until it succeeds, fails with something other than a
// network error, or runs out of attempts. The wait doubles after each try.
func withRetry[T any](ctx context.Context, p retryPolicy, logger logging.Logger, key cache.Key, fetch cache.FetchFn[T]) (T, error) {
	wait := p.backoff
	for attempt := 1; ; attempt++ {
		v, err := fetch(ctx)
		if err == nil || attempt >= p.attempts || !api.IsNetworkError(err) {
			return v, err
		}

		logger.Warn("retrying read", "key", key.String(), "attempt", attempt, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, err
		case <-timer.C:
		}
		wait *= 2
	}
}
