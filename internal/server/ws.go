package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bead-road-feed/internal/feed"
	"bead-road-feed/internal/metrics"
)

const wsWriteDeadline = 10 * time.Second

// handleWebsocket upgrades the connection, sends the current snapshot, then
// relays feed events until either side goes away. Feed events are already
// serialized; the writer goroutine here is the only writer on the conn.
func (s *Server) handleWebsocket(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  s.cfg.WS.ReadBuffer,
		WriteBufferSize: s.cfg.WS.WriteBuffer,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.WSClients.Inc()
	defer metrics.WSClients.Dec()

	ctx := c.Request.Context()
	sub, err := s.feed.Subscribe(ctx)
	if err != nil {
		return
	}
	defer s.feed.Unsubscribe(sub.ID)

	snap, err := s.feed.Snapshot(ctx)
	if err != nil {
		return
	}
	if err := s.writeEvent(conn, feed.Event{Type: feed.EventSnapshot, Snapshot: &snap}); err != nil {
		return
	}

	// reader only detects the peer closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case event, ok := <-sub.Events:
			if !ok {
				// dropped as a slow consumer; the client reconnects and
				// receives a fresh snapshot
				return
			}
			if err := s.writeEvent(conn, event); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, event feed.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
