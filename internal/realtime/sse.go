package realtime

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ServeSSE streams frames to the caller as Server-Sent Events until the request
// context ends or the hub drops the client. A comment line is sent on every
// ping interval so proxies keep the connection open.
func (h *Hub) ServeSSE(c *gin.Context, userID string, rooms []string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	client := h.Register(userID, TransportSSE, rooms)
	defer h.Unregister(client)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case frame := <-client.Send():
			c.SSEvent("message", string(frame))
			return true

		case <-ticker.C:
			_, err := io.WriteString(w, ": heartbeat\n\n")
			return err == nil

		case <-client.Done():
			return false

		case <-ctx.Done():
			return false
		}
	})
}
