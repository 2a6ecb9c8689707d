package realtime

import (
	"context"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/goliatone/go-medlocus/model"
)

const (
	DefaultMockInterval     = 15 * time.Second
	DefaultMockConnectDelay = 100 * time.Millisecond
)

var (
	mockKPIIDs = []string{"k1", "k2", "k3", "k4"}

	mockMessages = []string{
		"Item low stock: Paracetamol",
		"New prescription received",
		"Inventory alert: Insulin vials running low",
		"Expiry warning: Amoxicillin expires soon",
	}
)

// MockSource simulates a backend event stream for development. It emits
// EventConnect after ConnectDelay, then one random kpi_update or
// notification every Interval.
type MockSource struct {
	Interval     time.Duration
	ConnectDelay time.Duration
	Rand         *rand.Rand
	Now          func() time.Time
}

// NewMockSource creates a MockSource. A non-positive interval uses
// DefaultMockInterval.
func NewMockSource(interval time.Duration) *MockSource {
	if interval <= 0 {
		interval = DefaultMockInterval
	}
	return &MockSource{
		Interval:     interval,
		ConnectDelay: DefaultMockConnectDelay,
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		Now:          time.Now,
	}
}

// Run emits events until ctx is done.
func (s *MockSource) Run(ctx context.Context, emit func(Event)) error {
	connect := time.NewTimer(s.ConnectDelay)
	defer connect.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-connect.C:
		emit(Event{Type: EventConnect})
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			emit(s.Next())
		}
	}
}

// Next returns one random event.
func (s *MockSource) Next() Event {
	if s.Rand.Intn(2) == 0 {
		id := mockKPIIDs[s.Rand.Intn(len(mockKPIIDs))]
		return KPIUpdate(id, s.Rand.Float64()*1000-500)
	}

	now := s.Now()
	return NotificationEvent(model.Notification{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(s.Rand, 0)).String(),
		Message:   mockMessages[s.Rand.Intn(len(mockMessages))],
		CreatedAt: now.UTC().Format(time.RFC3339),
	})
}
