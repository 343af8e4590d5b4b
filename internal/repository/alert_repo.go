package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"gorm.io/gorm"
)

// AlertRepository 提醒仓储
type AlertRepository struct {
	db *gorm.DB
}

// NewAlertRepository 创建仓储
func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create 写入提醒
func (r *AlertRepository) Create(ctx context.Context, alert *schema.Alert) error {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("写入提醒失败: %w", err)
	}
	return nil
}

// ListRecent 最近的提醒
func (r *AlertRepository) ListRecent(ctx context.Context, userID string, limit int) ([]schema.Alert, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []schema.Alert
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询提醒失败: %w", err)
	}
	return out, nil
}

// MarkRead 标记已读
func (r *AlertRepository) MarkRead(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Model(&schema.Alert{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return fmt.Errorf("更新提醒失败: %w", res.Error)
	}
	return nil
}
