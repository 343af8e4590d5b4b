package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"gorm.io/gorm"
)

// ActivityRepository 时间段活动仓储
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建仓储
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 写入活动
func (r *ActivityRepository) Create(ctx context.Context, log *schema.ActivityLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("写入活动失败: %w", err)
	}
	return nil
}

// GetByType 区间内某类活动（按开始时间升序）
func (r *ActivityRepository) GetByType(ctx context.Context, userID, activityType string, startTime, endTime int64) ([]schema.ActivityLog, error) {
	var out []schema.ActivityLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND activity_type = ? AND start_time >= ? AND start_time <= ?", userID, activityType, startTime, endTime).
		Order("start_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return out, nil
}
