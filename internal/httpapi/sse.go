package httpapi

import (
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

var ssePingInterval = 15 * time.Second

// handleSSE 推送当前用户的事件与全局消息
func (a *api) handleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	sub := a.Hub.Subscribe(ctx, userID(c), 32)

	c.SSEvent("ready", gin.H{"user_id": userID(c)})
	c.Writer.Flush()

	ticker := time.NewTicker(ssePingInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", gin.H{})
			return true
		case evt, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(sanitizeSSEName(evt.Type), evt)
			return true
		}
	})
}

func sanitizeSSEName(name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return "message"
	}
	n = strings.ReplaceAll(n, "\n", "")
	n = strings.ReplaceAll(n, "\r", "")
	return n
}
