package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher 监听规则文件变化并使 Provider 失效
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	provider *Provider

	// OnReload 在缓存失效后回调（可为空）
	OnReload func()

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher 监听规则文件所在目录（编辑器常以 rename 方式保存）
func NewFileWatcher(path string, provider *Provider) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("获取绝对路径失败: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("添加监控目录失败: %w", err)
	}
	return &FileWatcher{
		watcher:  w,
		path:     abs,
		provider: provider,
		stopChan: make(chan struct{}),
	}, nil
}

// Start 启动监听
func (w *FileWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	slog.Info("规则文件监听启动", "path", w.path)
	go w.watchLoop(ctx)
}

// Stop 停止监听
func (w *FileWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		_ = w.watcher.Close()
		slog.Info("规则文件监听已停止")
	})
	return nil
}

func (w *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("规则文件监控错误", "error", err)
		}
	}
}

func (w *FileWatcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	slog.Debug("规则文件变更", "op", event.Op.String())
	w.provider.Invalidate()
	if w.OnReload != nil {
		w.OnReload()
	}
}
