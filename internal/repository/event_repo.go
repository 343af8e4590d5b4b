package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"gorm.io/gorm"
)

// EventRepository 事件仓储；事件只追加，唯一的更新路径是批量重算 scores
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// EventQuery 事件查询条件；Start/End 为毫秒闭区间，0 表示不限
type EventQuery struct {
	UserID     string
	Start      int64
	End        int64
	Types      []string
	Categories []string
}

// Create 创建单个事件
func (r *EventRepository) Create(ctx context.Context, event *schema.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("写入事件失败: %w", err)
	}
	return nil
}

// BatchInsert 批量插入事件（事务包裹）
func (r *EventRepository) BatchInsert(ctx context.Context, events []schema.Event) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(events, 100).Error
	})
	if err != nil {
		slog.Error("批量插入事件失败", "count", len(events), "error", err)
		return fmt.Errorf("批量插入事件失败: %w", err)
	}

	slog.Debug("批量插入事件成功", "count", len(events), "duration", time.Since(start))
	return nil
}

// Query 按条件查询事件，按写入顺序返回
func (r *EventRepository) Query(ctx context.Context, q EventQuery) ([]schema.Event, error) {
	tx := r.db.WithContext(ctx).Where("user_id = ?", q.UserID)
	if q.Start > 0 {
		tx = tx.Where("timestamp >= ?", q.Start)
	}
	if q.End > 0 {
		tx = tx.Where("timestamp <= ?", q.End)
	}
	if len(q.Types) > 0 {
		tx = tx.Where("event_type IN ?", q.Types)
	}
	if len(q.Categories) > 0 {
		tx = tx.Where("category IN ?", q.Categories)
	}

	var events []schema.Event
	if err := tx.Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}
	return events, nil
}

// GetByDate 按 UTC 日期查询用户事件
func (r *EventRepository) GetByDate(ctx context.Context, userID, date string) ([]schema.Event, error) {
	start, end, err := DayRange(date)
	if err != nil {
		return nil, err
	}
	return r.Query(ctx, EventQuery{UserID: userID, Start: start, End: end})
}

// GetByID 按 ID 获取
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*schema.Event, error) {
	var ev schema.Event
	if err := r.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}
	return &ev, nil
}

// DistinctUsersSince 指定时间之后有事件的用户
func (r *EventRepository) DistinctUsersSince(ctx context.Context, since int64) ([]string, error) {
	var users []string
	err := r.db.WithContext(ctx).
		Model(&schema.Event{}).
		Where("timestamp >= ?", since).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &users).Error
	if err != nil {
		return nil, fmt.Errorf("查询活跃用户失败: %w", err)
	}
	return users, nil
}

// UpdateScores 批量回写重算后的 scores（事务包裹）
func (r *EventRepository) UpdateScores(ctx context.Context, events []schema.Event) error {
	if len(events) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range events {
			if err := tx.Model(&schema.Event{}).
				Where("id = ?", events[i].ID).
				Update("scores", events[i].Scores).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("回写事件评分失败: %w", err)
	}
	return nil
}

// TypeStat 事件类型统计
type TypeStat struct {
	EventType   string  `json:"event_type"`
	EventCount  int64   `json:"event_count"`
	TotalAmount float64 `json:"total_amount"`
}

// GetTypeStats 区间内按类型统计
func (r *EventRepository) GetTypeStats(ctx context.Context, userID string, startTime, endTime int64) ([]TypeStat, error) {
	var stats []TypeStat
	err := r.statsQuery(ctx, userID, startTime, endTime).
		Select("event_type, COUNT(*) as event_count, COALESCE(SUM(amount), 0) as total_amount").
		Group("event_type").
		Order("event_count DESC, event_type ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("查询事件统计失败: %w", err)
	}
	return stats, nil
}

// CategoryStat 事件分类统计
type CategoryStat struct {
	Category    string  `json:"category"`
	EventCount  int64   `json:"event_count"`
	TotalAmount float64 `json:"total_amount"`
}

// GetCategoryStats 区间内按分类统计
func (r *EventRepository) GetCategoryStats(ctx context.Context, userID string, startTime, endTime int64) ([]CategoryStat, error) {
	var stats []CategoryStat
	err := r.statsQuery(ctx, userID, startTime, endTime).
		Select("category, COUNT(*) as event_count, COALESCE(SUM(amount), 0) as total_amount").
		Group("category").
		Order("event_count DESC, category ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("查询分类统计失败: %w", err)
	}
	return stats, nil
}

// statsQuery 0 表示不限
func (r *EventRepository) statsQuery(ctx context.Context, userID string, startTime, endTime int64) *gorm.DB {
	tx := r.db.WithContext(ctx).Model(&schema.Event{}).Where("user_id = ?", userID)
	if startTime > 0 {
		tx = tx.Where("timestamp >= ?", startTime)
	}
	if endTime > 0 {
		tx = tx.Where("timestamp <= ?", endTime)
	}
	return tx
}

// Count 统计用户事件总数
func (r *EventRepository) Count(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&schema.Event{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计事件失败: %w", err)
	}
	return count, nil
}
