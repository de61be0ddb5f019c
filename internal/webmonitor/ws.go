package webmonitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seatsense/seat-monitor/internal/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// handleWebSocket pushes a connection_status message followed by one status_update per
// processed frame. Incoming messages are read only to notice disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket", "Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, eventCh := s.statusBroadcaster.Subscribe()
	defer s.statusBroadcaster.Unsubscribe(id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hello, _ := json.Marshal(wsMessage{Type: "connection_status", Data: map[string]any{
		"status":  "connected",
		"running": s.proc.Running(),
	}})
	if err := s.writeWS(conn, websocket.TextMessage, hello); err != nil {
		return
	}
	logger.Debug("WebSocket", "Client #%d connected from %s", id, r.RemoteAddr)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-eventCh:
			if !ok {
				_ = s.writeWS(conn, websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := s.writeWS(conn, websocket.TextMessage, event.UpdateData); err != nil {
				logger.Debug("WebSocket", "Client #%d write failed: %v", id, err)
				return
			}
		case <-ping.C:
			if err := s.writeWS(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, messageType int, data []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(messageType, data)
}
