package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-medlocus/internal/logging"
)

// ErrNoSource is returned by Connect when the channel has no source.
var ErrNoSource = errors.New("realtime: no event source configured")

// State is the connection state of a Channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Source produces events until ctx is done or the underlying connection
// ends. It emits EventConnect once it is ready.
type Source interface {
	Run(ctx context.Context, emit func(Event)) error
}

// Handler handles one event. Errors and panics are logged and never stop
// other handlers.
type Handler func(Event) error

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Channel connects to an event source and dispatches its events to
// registered handlers. There is no automatic reconnect: once the source
// ends the channel stays disconnected until Connect is called again.
type Channel struct {
	source Source
	logger logging.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	handlers map[EventType][]handlerEntry
	nextID   uint64
}

// New creates a disconnected Channel reading from source.
func New(source Source, opts ...Option) *Channel {
	c := &Channel{
		source:   source,
		logger:   logging.Nop(),
		state:    StateDisconnected,
		handlers: make(map[EventType][]handlerEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the source has signalled it is connected.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// Connect starts the source. The channel is connecting until the source
// emits EventConnect. Calling Connect while connecting or connected does
// nothing. The source stops when ctx is done or Disconnect is called.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	if c.source == nil {
		c.mu.Unlock()
		return ErrNoSource
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.logger.Info("connecting")
	go c.run(runCtx, gen, done)
	return nil
}

// Disconnect stops the source and dispatches EventDisconnect. It does not
// wait for the source to return.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.state = StateDisconnected
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.logger.Info("disconnected")
	c.dispatch(Event{Type: EventDisconnect})
}

// Done is closed when the most recently started source returns.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

func (c *Channel) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	err := c.source.Run(ctx, func(e Event) {
		c.receive(gen, e)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("source stopped", "error", err)
	}
	c.finish(gen)
}

// receive handles an event emitted by the source started as gen. Events
// from a source that has since been disconnected are dropped.
func (c *Channel) receive(gen uint64, e Event) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	switch e.Type {
	case EventConnect:
		if c.state == StateConnected {
			c.mu.Unlock()
			return
		}
		c.state = StateConnected
	case EventDisconnect:
		// The channel reports its own disconnect once the source returns.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if e.Type == EventConnect {
		c.logger.Info("connected")
	}
	c.dispatch(e)
}

// finish moves the channel to disconnected after the source ended on its own.
func (c *Channel) finish(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.logger.Warn("source ended, channel disconnected")
	c.dispatch(Event{Type: EventDisconnect})
}

// On registers h for events of type t. Handlers run in registration order.
func (c *Channel) On(t EventType, h Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.handlers[t] = append(c.handlers[t], handlerEntry{id: c.nextID, fn: h})
	return &Subscription{channel: c, eventType: t, id: c.nextID}
}

// Off removes the given subscriptions for t, or every handler for t when
// none are given.
func (c *Channel) Off(t EventType, subs ...*Subscription) {
	if len(subs) == 0 {
		c.mu.Lock()
		delete(c.handlers, t)
		c.mu.Unlock()
		return
	}
	for _, s := range subs {
		if s != nil && s.eventType == t {
			s.Unsubscribe()
		}
	}
}

func (c *Channel) remove(t EventType, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.handlers[t]
	for i, e := range entries {
		if e.id == id {
			c.handlers[t] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

func (c *Channel) dispatch(e Event) {
	c.mu.Lock()
	entries := append([]handlerEntry(nil), c.handlers[e.Type]...)
	c.mu.Unlock()

	for _, h := range entries {
		if err := c.call(h.fn, e); err != nil {
			c.logger.Error("handler failed", "event", string(e.Type), "error", err)
		}
	}
}

func (c *Channel) call(h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(e)
}

// Subscription is the handle returned by On.
type Subscription struct {
	channel   *Channel
	eventType EventType
	id        uint64
	once      sync.Once
}

// Unsubscribe removes the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.channel.remove(s.eventType, s.id)
	})
}
