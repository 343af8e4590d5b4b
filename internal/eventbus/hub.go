package eventbus

import (
	"context"
	"sync"
	"time"
)

// 广播事件类型
const (
	TypeEventCreated    = "event_created"
	TypeSnapshotUpdated = "snapshot_updated"
	TypeAlertCreated    = "alert_created"
	TypeRulesReloaded   = "rules_reloaded"
)

// Event 进程内广播消息；UserID 为空表示全局消息
type Event struct {
	Type      string         `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub 进程内发布订阅（SSE 推送的数据源）
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]string
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]string)}
}

// Publish 非阻塞广播；nil Hub 安全
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, userID := range h.subs {
		if userID != "" && evt.UserID != "" && userID != evt.UserID {
			continue
		}
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，避免阻塞写入链路
		}
	}
}

// Subscribe 订阅某个用户的消息（userID 为空则接收全部），ctx 结束时自动退订并关闭通道
func (h *Hub) Subscribe(ctx context.Context, userID string, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = userID
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Subscribers 当前订阅数
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
