package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.yaml.in/yaml/v3"
)

// ErrNoRules 规则未配置（文件不存在 / Redis 键不存在）
var ErrNoRules = errors.New("评分规则未配置")

// Source 规则来源
type Source interface {
	Load(ctx context.Context) (*Rules, error)
}

// Sink 可写回的规则来源
type Sink interface {
	Save(ctx context.Context, r *Rules) error
}

// FileSource 从 YAML/JSON 文件读取规则
type FileSource struct {
	Path string
}

// NewFileSource 创建文件来源
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load 读取并解析规则文件
func (s *FileSource) Load(ctx context.Context) (*Rules, error) {
	if s == nil || strings.TrimSpace(s.Path) == "" {
		return nil, ErrNoRules
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoRules
		}
		return nil, fmt.Errorf("读取规则文件失败: %w", err)
	}

	var tree map[string]any
	if isJSON(s.Path) {
		err = json.Unmarshal(b, &tree)
	} else {
		err = yaml.Unmarshal(b, &tree)
	}
	if err != nil {
		return nil, fmt.Errorf("解析规则文件失败: %w", err)
	}
	return Parse(tree)
}

// Save 写回规则文件
func (s *FileSource) Save(ctx context.Context, r *Rules) error {
	if r == nil {
		return fmt.Errorf("rules 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("创建规则目录失败: %w", err)
	}

	var (
		b   []byte
		err error
	)
	if isJSON(s.Path) {
		b, err = json.MarshalIndent(r.Tree(), "", "  ")
	} else {
		b, err = yaml.Marshal(r.Tree())
	}
	if err != nil {
		return fmt.Errorf("序列化规则失败: %w", err)
	}
	if err := os.WriteFile(s.Path, b, 0o644); err != nil {
		return fmt.Errorf("写入规则文件失败: %w", err)
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// RedisSource 从 Redis 字符串键读取 JSON 规则
type RedisSource struct {
	rdb *redis.Client
	key string
}

// NewRedisSource 连接 Redis 并校验可用性
func NewRedisSource(ctx context.Context, addr, key string) (*RedisSource, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis_addr 不能为空")
	}
	if strings.TrimSpace(key) == "" {
		key = "lifemirror:scoring_rules"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping 失败: %w", err)
	}
	return NewRedisSourceFromClient(rdb, key), nil
}

// NewRedisSourceFromClient 复用已有客户端
func NewRedisSourceFromClient(rdb *redis.Client, key string) *RedisSource {
	return &RedisSource{rdb: rdb, key: key}
}

// Load 读取规则
func (s *RedisSource) Load(ctx context.Context) (*Rules, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoRules
		}
		return nil, fmt.Errorf("读取 redis 规则失败: %w", err)
	}
	return ParseJSON(raw)
}

// Save 写入规则并广播变更
func (s *RedisSource) Save(ctx context.Context, r *Rules) error {
	if r == nil {
		return fmt.Errorf("rules 不能为空")
	}
	b, err := json.Marshal(r.Tree())
	if err != nil {
		return fmt.Errorf("序列化规则失败: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("写入 redis 规则失败: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channel(), "updated").Err(); err != nil {
		return fmt.Errorf("广播规则变更失败: %w", err)
	}
	return nil
}

// Subscribe 订阅规则变更，收到消息时回调 onChange；ctx 结束时退出
func (s *RedisSource) Subscribe(ctx context.Context, onChange func()) error {
	sub := s.rdb.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis 订阅失败: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				onChange()
			}
		}
	}()
	return nil
}

// Close 关闭连接
func (s *RedisSource) Close() error {
	return s.rdb.Close()
}

func (s *RedisSource) channel() string {
	return s.key + ":changed"
}

// StaticSource 内存规则（测试与演示数据）
type StaticSource struct {
	Rules *Rules
	Err   error
}

// Load 返回固定规则
func (s StaticSource) Load(ctx context.Context) (*Rules, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Rules == nil {
		return nil, ErrNoRules
	}
	return s.Rules, nil
}
