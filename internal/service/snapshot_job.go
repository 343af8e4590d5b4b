package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"golang.org/x/sync/errgroup"
)

// SnapshotJobResult 批量快照结果
type SnapshotJobResult struct {
	Date      string            `json:"date"`
	Users     int               `json:"users"`
	Succeeded int               `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// SnapshotJob 为近期活跃用户刷新运动聚合、每日评分和风险快照；用户之间互不影响
type SnapshotJob struct {
	events      EventRepository
	movement    *MovementService
	daily       *DailyScoreService
	risk        *RiskService
	bus         Publisher
	concurrency int
	now         func() time.Time
}

// NewSnapshotJob 创建批量任务；concurrency ≤ 0 时取 4
func NewSnapshotJob(events EventRepository, movement *MovementService, daily *DailyScoreService, risk *RiskService, bus Publisher, concurrency int) *SnapshotJob {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &SnapshotJob{
		events:      events,
		movement:    movement,
		daily:       daily,
		risk:        risk,
		bus:         bus,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run 处理 date（为空取今天）之前 lookbackDays 天内有事件的用户
func (j *SnapshotJob) Run(ctx context.Context, date string, lookbackDays int) (*SnapshotJobResult, error) {
	start := time.Now()
	if date == "" {
		date = todayKey(j.now)
	}
	day, err := parseDay(date)
	if err != nil {
		return nil, err
	}
	since := day.AddDate(0, 0, -max(1, lookbackDays)).UnixMilli()
	users, err := j.events.DistinctUsersSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("获取活跃用户失败: %w", err)
	}

	res := &SnapshotJobResult{Date: date, Users: len(users), Failed: map[string]string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := j.runUser(gctx, userID, date)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("用户快照失败", "user_id", userID, "date", date, "error", err)
				res.Failed[userID] = err.Error()
				return nil
			}
			res.Succeeded++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	slog.Info("批量快照完成", "date", date, "users", res.Users, "succeeded", res.Succeeded, "failed", len(res.Failed), "duration", res.Duration)
	return res, nil
}

func (j *SnapshotJob) runUser(ctx context.Context, userID, date string) error {
	if _, err := j.movement.UpdateDaily(ctx, userID, date); err != nil {
		return fmt.Errorf("运动聚合失败: %w", err)
	}
	scores, err := j.daily.Save(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("每日评分失败: %w", err)
	}
	if _, err := j.risk.SaveSnapshot(ctx, userID, date); err != nil {
		return fmt.Errorf("风险快照失败: %w", err)
	}
	if j.bus != nil {
		j.bus.Publish(eventbus.Event{
			Type:   eventbus.TypeSnapshotUpdated,
			UserID: userID,
			Data:   map[string]any{"date": date, "scores": scores},
		})
	}
	return nil
}
