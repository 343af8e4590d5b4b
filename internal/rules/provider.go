package rules

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Provider 缓存规则快照，显式失效后下一次 Get 重新加载
type Provider struct {
	src Source

	mu     sync.RWMutex
	cached *Rules
}

// NewProvider 创建规则提供者
func NewProvider(src Source) *Provider {
	return &Provider{src: src}
}

// Get 返回当前规则快照；来源缺失时返回 ErrNoRules
func (p *Provider) Get(ctx context.Context) (*Rules, error) {
	if p == nil || p.src == nil {
		return nil, ErrNoRules
	}

	p.mu.RLock()
	cached := p.cached
	p.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}
	r, err := p.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	p.cached = r
	slog.Debug("评分规则已加载", "profiles", r.ProfileNames())
	return r, nil
}

// Invalidate 丢弃缓存
func (p *Provider) Invalidate() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
	slog.Info("评分规则缓存已失效")
}

// Save 写回来源并刷新缓存；来源不可写时报错
func (p *Provider) Save(ctx context.Context, r *Rules) error {
	sink, ok := p.src.(Sink)
	if !ok {
		return fmt.Errorf("规则来源不支持写入")
	}
	if err := sink.Save(ctx, r); err != nil {
		return err
	}
	p.mu.Lock()
	p.cached = r
	p.mu.Unlock()
	return nil
}

// SetRaw 校验规则树后写回
func (p *Provider) SetRaw(ctx context.Context, tree map[string]any) (*Rules, error) {
	r, err := Parse(tree)
	if err != nil {
		return nil, err
	}
	if err := p.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
