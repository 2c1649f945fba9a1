package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 25 * time.Second

// StreamEvents pushes scheduler events to display panels and ticket pages
// as server-sent events. Clients re-query positions when an event arrives.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream is disabled"})
		return
	}

	events, cancel := h.events.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"stats": h.queue.Stats()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Kind), evt)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
