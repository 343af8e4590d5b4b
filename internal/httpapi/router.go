package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuqie6/LifeMirror/internal/bootstrap"
	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"github.com/yuqie6/LifeMirror/internal/pkg/buildinfo"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/service"
)

// Deps 路由依赖；为空的服务对应路由不注册
type Deps struct {
	Name string

	Events      *service.EventService
	Daily       *service.DailyScoreService
	Movement    *service.MovementService
	Analytics   *service.AnalyticsService
	Risk        *service.RiskService
	Twin        *service.TwinService
	Patterns    *service.PatternService
	Mosaic      *service.MosaicService
	SnapshotJob *service.SnapshotJob

	EventStore    *repository.EventRepository
	Alerts        *repository.AlertRepository
	Activities    *repository.ActivityRepository
	MovementStore *repository.MovementRepository

	Rules *rules.Provider
	Hub   *eventbus.Hub

	// SnapshotLookbackDays 批量任务默认回看天数
	SnapshotLookbackDays int
}

// DepsFromCore 由 bootstrap.Core 组装路由依赖
func DepsFromCore(c *bootstrap.Core) Deps {
	return Deps{
		Name:                 c.Cfg.App.Name,
		Events:               c.Services.Events,
		Daily:                c.Services.Daily,
		Movement:             c.Services.Movement,
		Analytics:            c.Services.Analytics,
		Risk:                 c.Services.Risk,
		Twin:                 c.Services.Twin,
		Patterns:             c.Services.Patterns,
		Mosaic:               c.Services.Mosaic,
		SnapshotJob:          c.Services.SnapshotJob,
		EventStore:           c.Repos.Event,
		Alerts:               c.Repos.Alert,
		Activities:           c.Repos.Activity,
		MovementStore:        c.Repos.Movement,
		Rules:                c.Rules.Provider,
		Hub:                  c.Hub,
		SnapshotLookbackDays: c.Cfg.Jobs.SnapshotLookbackDays,
	}
}

type api struct {
	Deps
	startTime time.Time
}

// NewRouter 构建 gin 路由
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	a := &api{Deps: deps, startTime: time.Now()}
	r.GET("/health", a.handleHealth)

	admin := r.Group("/api")
	if a.Rules != nil {
		admin.GET("/rules", a.handleGetRules)
		admin.PUT("/rules", a.handlePutRules)
	}
	if a.SnapshotJob != nil {
		admin.POST("/jobs/snapshot", a.handleRunSnapshotJob)
	}

	u := r.Group("/api", requireUser())
	if a.Hub != nil {
		u.GET("/stream", a.handleSSE)
	}
	if a.Events != nil {
		u.POST("/events", a.handleCreateEvent)
		u.POST("/events/import", a.handleImportEvents)
		u.POST("/events/rescore", a.handleRescore)
		u.GET("/events/stats", a.handleEventStats)
	}
	if a.EventStore != nil {
		u.GET("/events", a.handleListEvents)
		u.GET("/events/:id", a.handleGetEvent)
	}
	if a.Alerts != nil {
		u.GET("/alerts", a.handleListAlerts)
		u.POST("/alerts/:id/read", a.handleMarkAlertRead)
	}
	if a.Activities != nil {
		u.POST("/activities", a.handleCreateActivity)
	}
	if a.MovementStore != nil && a.Movement != nil {
		u.POST("/movement/tests", a.handleCreateMovementTest)
	}
	if a.Daily != nil {
		u.GET("/scores/daily", a.handleDailyScore)
		u.POST("/scores/daily", a.handleSaveDailyScore)
		u.GET("/scores/history", a.handleScoreHistory)
	}
	if a.Movement != nil {
		u.POST("/movement/daily", a.handleUpdateMovement)
		u.GET("/movement/history", a.handleMovementHistory)
		u.GET("/movement/stats", a.handleMovementStats)
	}
	if a.Analytics != nil {
		u.GET("/analytics/trend", a.handleTrend)
		u.GET("/analytics/breakdown", a.handleBreakdown)
		u.GET("/analytics/dashboard", a.handleDashboard)
		u.GET("/analytics/before-after", a.handleBeforeAfter)
	}
	if a.Risk != nil {
		u.GET("/risk/history", a.handleRiskHistory)
		u.POST("/risk/snapshot", a.handleSaveRiskSnapshot)
		u.GET("/risk/:kind", a.handleRisk)
	}
	if a.Twin != nil {
		u.GET("/twin/wallet", a.handleTwinWallet)
		u.GET("/twin/wallet/longterm", a.handleTwinWalletLongTerm)
		u.GET("/twin/wellness", a.handleTwinWellness)
		u.GET("/twin/sustainability", a.handleTwinSustainability)
		u.GET("/twin/all", a.handleTwinAll)
		u.POST("/twin/scenarios", a.handleCompareScenarios)
	}
	if a.Patterns != nil {
		u.GET("/insights/correlations", a.handleCorrelations)
		u.GET("/insights/triggers", a.handleTriggers)
		u.GET("/insights/notifications", a.handleNotifications)
		u.GET("/insights/positive", a.handlePositivePatterns)
	}
	if a.Mosaic != nil {
		u.GET("/mosaic/daily", a.handleMosaicDaily)
		u.GET("/mosaic/week", a.handleMosaicWeek)
	}

	return r
}

func (a *api) handleHealth(c *gin.Context) {
	respondOK(c, gin.H{
		"ok":          true,
		"name":        a.Name,
		"version":     buildinfo.Version,
		"started_at":  a.startTime.Format(time.RFC3339),
		"subscribers": a.Hub.Subscribers(),
	})
}
