package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"github.com/yuqie6/LifeMirror/internal/pkg/config"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	DB        *repository.Database
	LogCloser io.Closer
	Hub       *eventbus.Hub

	Rules struct {
		Provider *rules.Provider
		Watcher  *rules.FileWatcher
		Redis    *rules.RedisSource
	}

	Repos struct {
		Event    *repository.EventRepository
		Daily    *repository.DailyScoreRepository
		Movement *repository.MovementRepository
		Activity *repository.ActivityRepository
		Risk     *repository.RiskRepository
		Alert    *repository.AlertRepository
	}

	Services struct {
		Events      *service.EventService
		Daily       *service.DailyScoreService
		Movement    *service.MovementService
		Analytics   *service.AnalyticsService
		Risk        *service.RiskService
		Twin        *service.TwinService
		Patterns    *service.PatternService
		Mosaic      *service.MosaicService
		SnapshotJob *service.SnapshotJob
	}

	cancel context.CancelFunc
}

// NewCore 构建核心依赖；规则热更新在 ctx 生命周期内生效
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, err := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDatabase(repository.DatabaseOptions{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.DBPath,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Core{Cfg: cfg, DB: db, LogCloser: logCloser, Hub: eventbus.NewHub(), cancel: cancel}

	if err := c.setupRules(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	// Repos
	c.Repos.Event = repository.NewEventRepository(db.DB)
	c.Repos.Daily = repository.NewDailyScoreRepository(db.DB)
	c.Repos.Movement = repository.NewMovementRepository(db.DB)
	c.Repos.Activity = repository.NewActivityRepository(db.DB)
	c.Repos.Risk = repository.NewRiskRepository(db.DB)
	c.Repos.Alert = repository.NewAlertRepository(db.DB)

	// Services
	c.Services.Movement = service.NewMovementService(c.Repos.Event, c.Repos.Movement)
	c.Services.Daily = service.NewDailyScoreService(c.Repos.Event, c.Repos.Movement, c.Repos.Daily)
	c.Services.Analytics = service.NewAnalyticsService(c.Repos.Event, c.Repos.Movement)
	c.Services.Risk = service.NewRiskService(c.Repos.Event, c.Repos.Movement, c.Repos.Activity, c.Repos.Risk)
	c.Services.Twin = service.NewTwinService(c.Repos.Event)
	c.Services.Patterns = service.NewPatternService(c.Repos.Event, c.Repos.Daily)
	c.Services.Mosaic = service.NewMosaicService(c.Repos.Event, c.Repos.Movement, c.Repos.Activity)
	c.Services.Events = service.NewEventService(
		c.Repos.Event,
		c.Services.Daily,
		c.Services.Movement,
		c.Repos.Alert,
		c.Rules.Provider,
		c.Hub,
	).WithDefaultProfile(cfg.App.Profile)
	c.Services.SnapshotJob = service.NewSnapshotJob(
		c.Repos.Event,
		c.Services.Movement,
		c.Services.Daily,
		c.Services.Risk,
		c.Hub,
		cfg.Jobs.Concurrency,
	)

	return c, nil
}

// setupRules 按配置选择规则来源：file（可选 fsnotify 监听）或 redis（pub/sub 失效）
func (c *Core) setupRules(ctx context.Context) error {
	reloaded := func() {
		c.Hub.Publish(eventbus.Event{Type: eventbus.TypeRulesReloaded})
	}

	switch c.Cfg.Rules.Source {
	case "", "file":
		c.Rules.Provider = rules.NewProvider(rules.NewFileSource(c.Cfg.Rules.Path))
		if !c.Cfg.Rules.Watch {
			return nil
		}
		w, err := rules.NewFileWatcher(c.Cfg.Rules.Path, c.Rules.Provider)
		if err != nil {
			// 目录不存在等情况不影响主流程，只是没有热更新
			slog.Warn("规则文件监听未启用", "path", c.Cfg.Rules.Path, "error", err)
			return nil
		}
		w.OnReload = reloaded
		w.Start(ctx)
		c.Rules.Watcher = w
	case "redis":
		src, err := rules.NewRedisSource(ctx, c.Cfg.Rules.RedisAddr, c.Cfg.Rules.RedisKey)
		if err != nil {
			return err
		}
		c.Rules.Redis = src
		c.Rules.Provider = rules.NewProvider(src)
		if err := src.Subscribe(ctx, func() {
			c.Rules.Provider.Invalidate()
			reloaded()
		}); err != nil {
			slog.Warn("规则变更订阅失败，仅在重启后生效", "error", err)
		}
	default:
		return fmt.Errorf("未知规则来源: %s", c.Cfg.Rules.Source)
	}
	return nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.Rules.Watcher != nil {
		_ = c.Rules.Watcher.Stop()
	}
	if c.Rules.Redis != nil {
		_ = c.Rules.Redis.Close()
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}
