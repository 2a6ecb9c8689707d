package mockapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goliatone/go-medlocus/realtime"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleNotifications streams mock real-time events over a websocket. Frames
// are JSON text unless the client asks for ?format=msgpack.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	binary := r.URL.Query().Get("format") == "msgpack"

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The read side only exists to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("notification stream opened", "binary", binary)
	err = s.newEventSource().Run(ctx, func(e realtime.Event) {
		if e.Type == realtime.EventConnect {
			return
		}
		if err := s.writeEvent(ws, e, binary); err != nil {
			s.logger.Debug("notification write failed", "error", err)
			cancel()
		}
	})
	s.logger.Debug("notification stream closed", "error", err)

	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) writeEvent(ws *websocket.Conn, e realtime.Event, binary bool) error {
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	if binary {
		data, err := realtime.EncodeMsgpack(e)
		if err != nil {
			return err
		}
		return ws.WriteMessage(websocket.BinaryMessage, data)
	}
	data, err := e.MarshalJSON()
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}
