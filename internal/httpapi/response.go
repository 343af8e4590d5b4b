package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/service"
)

// APIError 错误体
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

// ErrorEnvelope {"error": {...}}
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	body := APIError{Message: msg, Code: code}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

// fail 按领域错误映射状态码
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		_ = c.Error(err)
	}
	respondError(c, status, code, err)
}

func classify(err error) (int, string) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		if errors.Is(err, service.ErrUnsupported) {
			return http.StatusBadRequest, "unsupported"
		}
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, rules.ErrNoRules):
		return http.StatusServiceUnavailable, "no_rules"
	case errors.Is(err, service.ErrNotConfigured), errors.Is(err, repository.ErrStoreNotConfigured):
		return http.StatusServiceUnavailable, "not_configured"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func badRequest(field, reason string) error {
	return &service.ValidationError{Field: field, Reason: reason}
}

// queryInt 读取整数参数；缺省取 def
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(key, "必须是整数")
	}
	return v, nil
}

// queryList 逗号分隔的列表参数
func queryList(c *gin.Context, key string) []string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
