package realtime

import (
	"errors"

	"github.com/goliatone/go-medlocus/cache"
	"github.com/goliatone/go-medlocus/model"
)

var errMissingPayload = errors.New("event without payload")

// BindKPIUpdates merges every kpi_update into the KPI list cached under key.
// It only ever updates an existing entry; when nothing is cached yet the
// delta is dropped.
func BindKPIUpdates(ch *Channel, c *cache.Cache, key cache.Key) *Subscription {
	return ch.On(EventKPIUpdate, func(e Event) error {
		if e.KPI == nil {
			return errMissingPayload
		}
		delta := *e.KPI
		c.Update(key, func(current any) any {
			kpis, ok := current.([]model.KPI)
			if !ok {
				return current
			}
			return model.ApplyKPIDelta(kpis, delta)
		})
		return nil
	})
}

// OnNotification calls fn for every notification event.
func OnNotification(ch *Channel, fn func(model.Notification)) *Subscription {
	return ch.On(EventNotification, func(e Event) error {
		if e.Notification == nil {
			return errMissingPayload
		}
		fn(*e.Notification)
		return nil
	})
}
