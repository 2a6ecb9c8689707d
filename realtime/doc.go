// Package realtime delivers server pushed events to the client.
//
// A Channel wraps a Source (MockSource for development, WebSocketSource for
// a live backend) and tracks its connection state. Handlers are registered
// per event type with On and removed through the returned Subscription.
//
// BindKPIUpdates is the one writer into the cache: it merges kpi_update
// deltas into the cached KPI list without triggering a fetch.
package realtime
