package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Options HTTP 服务参数
type Options struct {
	ListenAddr string // e.g. "127.0.0.1:8080"
}

// Server 本地 HTTP 服务
type Server struct {
	ln      net.Listener
	srv     *http.Server
	baseURL string
}

// Start 监听并在后台提供服务；ctx 结束时优雅关闭
func Start(ctx context.Context, deps Deps, opts Options) (*Server, error) {
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("监听 %s 失败: %w", opts.ListenAddr, err)
	}

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	if host == "" || host == "::" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	srv := &http.Server{
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s := &Server{
		ln:      ln,
		srv:     srv,
		baseURL: "http://" + net.JoinHostPort(host, portStr),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server 异常退出", "error", err)
		}
	}()

	slog.Info("HTTP 已启动", "base_url", s.baseURL)
	return s, nil
}

// BaseURL 实际监听地址
func (s *Server) BaseURL() string {
	if s == nil {
		return ""
	}
	return s.baseURL
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
