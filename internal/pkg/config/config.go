package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Rules   RulesConfig   `mapstructure:"rules"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	Profile  string `mapstructure:"profile"` // 默认评分画像
}

// StorageConfig 存储配置
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | postgres
	DBPath string `mapstructure:"db_path"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// RulesConfig 评分规则来源
type RulesConfig struct {
	Source    string `mapstructure:"source"` // file | redis
	Path      string `mapstructure:"path"`
	Watch     bool   `mapstructure:"watch"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisKey  string `mapstructure:"redis_key"`
}

// JobsConfig 批量任务配置
type JobsConfig struct {
	SnapshotLookbackDays int `mapstructure:"snapshot_lookback_days"`
	Concurrency          int `mapstructure:"concurrency"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// 支持环境变量，如 LIFEMIRROR_STORAGE_DSN
	v.SetEnvPrefix("LIFEMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	baseDir := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		baseDir = filepath.Dir(v.ConfigFileUsed())
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.Storage.DSN = expandEnv(cfg.Storage.DSN)
	cfg.Rules.RedisAddr = expandEnv(cfg.Rules.RedisAddr)

	// 相对路径以配置文件所在目录的上一级（仓库根）为基准
	if baseDir != "" && filepath.Base(baseDir) == "configs" {
		baseDir = filepath.Dir(baseDir)
	}
	if cfg.Storage.DBPath != ":memory:" {
		cfg.Storage.DBPath = resolvePath(baseDir, cfg.Storage.DBPath)
	}
	cfg.Rules.Path = resolvePath(baseDir, cfg.Rules.Path)
	if cfg.App.LogPath != "" {
		cfg.App.LogPath = resolvePath(baseDir, cfg.App.LogPath)
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "lifemirror")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.profile", "Student")

	// Storage
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.db_path", "./data/lifemirror.db")

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:8080")

	// Rules
	v.SetDefault("rules.source", "file")
	v.SetDefault("rules.path", "./configs/scoring_rules.yaml")
	v.SetDefault("rules.watch", true)
	v.SetDefault("rules.redis_key", "lifemirror:scoring_rules")

	// Jobs
	v.SetDefault("jobs.snapshot_lookback_days", 2)
	v.SetDefault("jobs.concurrency", 4)
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// resolvePath 相对路径按 baseDir 解析；baseDir 为空时按可执行文件目录
func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if baseDir != "" {
		return filepath.Join(baseDir, path)
	}
	exe, err := os.Executable()
	if err != nil {
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}

// LoggerOptions 日志配置
type LoggerOptions struct {
	Level     string
	Path      string // 为空只写 stdout
	Component string
}

// ParseLevel 解析日志级别，未知值回落 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger 安装全局 slog；配置了日志文件时同时写 stdout 与文件，返回的 Closer 关闭文件
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)
	return closer, nil
}
