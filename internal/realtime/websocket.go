package realtime

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
)

const maxInboundMessage = 512

func (h *Hub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.config.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(h.config.AllowedOrigins, "*") ||
				slices.Contains(h.config.AllowedOrigins, origin)
		},
	}
}

// ServeWebSocket upgrades the request and pumps frames for the caller until either
// side closes. Inbound messages other than control frames are ignored.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request, userID string, rooms []string) error {
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	client := h.Register(userID, TransportWebSocket, rooms)
	defer h.Unregister(client)

	go h.readPump(conn, client)
	h.writePump(conn, client)

	return nil
}

// readPump keeps the read deadline moving on pongs and notices disconnects
func (h *Hub) readPump(conn *websocket.Conn, client *Client) {
	defer h.Unregister(client)

	pongWait := h.config.PingInterval * 2
	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read failed",
					slog.String("user_id", client.UserID),
					slog.Any("error", err),
				)
			}
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
