package service

import (
	"context"

	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type EventRepository interface {
	Create(ctx context.Context, event *schema.Event) error
	BatchInsert(ctx context.Context, events []schema.Event) error
	Query(ctx context.Context, q repository.EventQuery) ([]schema.Event, error)
	DistinctUsersSince(ctx context.Context, since int64) ([]string, error)
	UpdateScores(ctx context.Context, events []schema.Event) error
	GetTypeStats(ctx context.Context, userID string, startTime, endTime int64) ([]repository.TypeStat, error)
	GetCategoryStats(ctx context.Context, userID string, startTime, endTime int64) ([]repository.CategoryStat, error)
}

type DailyScoreRepository interface {
	Upsert(ctx context.Context, score *schema.DailyScore) error
	GetByDate(ctx context.Context, userID, date string) (*schema.DailyScore, error)
	GetByDateRange(ctx context.Context, userID, startDate, endDate string) ([]schema.DailyScore, error)
}

type MovementRepository interface {
	UpsertDaily(ctx context.Context, agg *schema.MovementDaily) error
	GetDaily(ctx context.Context, userID, date string) (*schema.MovementDaily, error)
	GetDailyRange(ctx context.Context, userID, startDate, endDate string) ([]schema.MovementDaily, error)
	GetTests(ctx context.Context, userID string, startTime, endTime int64) ([]schema.MovementTest, error)
}

type ActivityRepository interface {
	GetByType(ctx context.Context, userID, activityType string, startTime, endTime int64) ([]schema.ActivityLog, error)
}

type RiskRepository interface {
	Upsert(ctx context.Context, snap *schema.RiskSnapshot) error
	GetByDateRange(ctx context.Context, userID, startDate, endDate string) ([]schema.RiskSnapshot, error)
}

type AlertRepository interface {
	Create(ctx context.Context, alert *schema.Alert) error
}

// RulesProvider 评分规则快照来源
type RulesProvider interface {
	Get(ctx context.Context) (*rules.Rules, error)
}

// Publisher 进程内事件广播
type Publisher interface {
	Publish(evt eventbus.Event)
}
