package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath 可执行文件旁的 configs/config.yaml
func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "configs", "config.yaml"), nil
}

// WriteFile 以 YAML 写回完整配置
func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
			"log_path":  cfg.App.LogPath,
			"profile":   cfg.App.Profile,
		},
		"storage": map[string]any{
			"driver":  cfg.Storage.Driver,
			"db_path": cfg.Storage.DBPath,
			"dsn":     cfg.Storage.DSN,
		},
		"server": map[string]any{
			"listen_addr": cfg.Server.ListenAddr,
		},
		"rules": map[string]any{
			"source":     cfg.Rules.Source,
			"path":       cfg.Rules.Path,
			"watch":      cfg.Rules.Watch,
			"redis_addr": cfg.Rules.RedisAddr,
			"redis_key":  cfg.Rules.RedisKey,
		},
		"jobs": map[string]any{
			"snapshot_lookback_days": cfg.Jobs.SnapshotLookbackDays,
			"concurrency":            cfg.Jobs.Concurrency,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
