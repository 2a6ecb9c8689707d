package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/goliatone/go-medlocus/api"
	"github.com/goliatone/go-medlocus/internal/logging"
)

// WebSocketSource reads events from a websocket endpoint. Text frames carry
// JSON envelopes and binary frames carry msgpack envelopes. Frames that fail
// to decode are logged and skipped.
type WebSocketSource struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	tokens api.TokenSource
	logger logging.Logger
}

// WebSocketOption configures a WebSocketSource.
type WebSocketOption func(*WebSocketSource)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(s *WebSocketSource) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithHeader adds headers to the handshake request.
func WithHeader(h http.Header) WebSocketOption {
	return func(s *WebSocketSource) {
		for k, v := range h {
			s.header[k] = append([]string(nil), v...)
		}
	}
}

// WithSourceTokens sends a bearer token on the handshake when the source
// returns one.
func WithSourceTokens(ts api.TokenSource) WebSocketOption {
	return func(s *WebSocketSource) {
		s.tokens = ts
	}
}

// WithSourceLogger sets the source logger.
func WithSourceLogger(l logging.Logger) WebSocketOption {
	return func(s *WebSocketSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewWebSocketSource creates a source for url (ws:// or wss://).
func NewWebSocketSource(url string, opts ...WebSocketOption) *WebSocketSource {
	s := &WebSocketSource{
		url:    url,
		dialer: websocket.DefaultDialer,
		header: http.Header{},
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run dials the endpoint, emits EventConnect, then emits every decoded frame
// until the connection fails or ctx is done.
func (s *WebSocketSource) Run(ctx context.Context, emit func(Event)) error {
	header := s.header.Clone()
	if s.tokens != nil {
		if token := s.tokens.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	ws, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() { ws.Close() })
	}
	defer closeConn()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stop:
		}
	}()

	emit(Event{Type: EventConnect})

	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", s.url, err)
		}

		var e Event
		switch messageType {
		case websocket.TextMessage:
			e, err = DecodeJSON(message)
		case websocket.BinaryMessage:
			if len(message) == 0 {
				// ping
				continue
			}
			e, err = DecodeMsgpack(message)
		default:
			continue
		}
		if err != nil {
			s.logger.Warn("skipping frame", "error", err)
			continue
		}
		emit(e)
	}
}
