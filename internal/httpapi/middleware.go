package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerUserID = "X-User-ID"
	ctxUserID    = "user_id"
)

// requireUser 校验 X-User-ID（UUID）并放入上下文
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerUserID))
		if raw == "" {
			respondError(c, http.StatusUnauthorized, "missing_user", badRequest(headerUserID, "缺失"))
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			respondError(c, http.StatusBadRequest, "invalid", badRequest(headerUserID, "必须是 UUID"))
			return
		}
		c.Set(ctxUserID, id.String())
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// requestLog slog 访问日志
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			slog.Error("请求失败", append(attrs, "error", c.Errors.String())...)
			return
		}
		slog.Debug("请求完成", attrs...)
	}
}
