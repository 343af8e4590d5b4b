package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuqie6/LifeMirror/internal/bootstrap"
	"github.com/yuqie6/LifeMirror/internal/httpapi"
	"github.com/yuqie6/LifeMirror/internal/pkg/buildinfo"
)

func main() {
	cfgPath := flag.String("config", "", "配置文件路径")
	snapshotEvery := flag.Duration("snapshot-every", time.Hour, "批量快照间隔，0 表示关闭")
	flag.Parse()

	core, err := bootstrap.NewCore(*cfgPath)
	if err != nil {
		slog.Error("初始化失败", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	if core.DB.SafeMode {
		slog.Warn("数据库处于安全模式", "schema_version", core.DB.SchemaVersion, "error", core.DB.MigrationError)
	}
	if core.Cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := httpapi.Start(ctx, httpapi.DepsFromCore(core), httpapi.Options{ListenAddr: core.Cfg.Server.ListenAddr})
	if err != nil {
		slog.Error("HTTP 启动失败", "error", err)
		os.Exit(1)
	}
	slog.Info("LifeMirror 已启动", "version", buildinfo.String(), "base_url", srv.BaseURL())

	if *snapshotEvery > 0 {
		go runSnapshots(ctx, core, *snapshotEvery)
	}

	<-ctx.Done()
	slog.Info("正在退出")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runSnapshots 定期刷新近期活跃用户的快照
func runSnapshots(ctx context.Context, core *bootstrap.Core, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := core.Services.SnapshotJob.Run(ctx, "", core.Cfg.Jobs.SnapshotLookbackDays)
			if err != nil {
				slog.Warn("批量快照失败", "error", err)
				continue
			}
			slog.Info("批量快照完成", "date", res.Date, "users", res.Users, "succeeded", res.Succeeded, "failed", len(res.Failed))
		}
	}
}
