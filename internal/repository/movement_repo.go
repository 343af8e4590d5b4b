package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementRepository 运动聚合与测评仓储
type MovementRepository struct {
	db *gorm.DB
}

// NewMovementRepository 创建仓储
func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// UpsertDaily 按 (user_id, date) 插入或更新
func (r *MovementRepository) UpsertDaily(ctx context.Context, agg *schema.MovementDaily) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"steps", "active_minutes", "sedentary_minutes", "workout_count", "total_movement_score", "updated_at",
		}),
	}).Create(agg).Error
	if err != nil {
		return fmt.Errorf("写入运动聚合失败: %w", err)
	}
	return nil
}

// GetDaily 单日聚合，不存在返回 nil
func (r *MovementRepository) GetDaily(ctx context.Context, userID, date string) (*schema.MovementDaily, error) {
	var agg schema.MovementDaily
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&agg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询运动聚合失败: %w", err)
	}
	return &agg, nil
}

// GetDailyRange 日期范围内的聚合（按日期升序）
func (r *MovementRepository) GetDailyRange(ctx context.Context, userID, startDate, endDate string) ([]schema.MovementDaily, error) {
	var out []schema.MovementDaily
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, startDate, endDate).
		Order("date ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询运动聚合失败: %w", err)
	}
	return out, nil
}

// CreateTest 写入测评（含可选 insight）
func (r *MovementRepository) CreateTest(ctx context.Context, test *schema.MovementTest) error {
	if err := r.db.WithContext(ctx).Create(test).Error; err != nil {
		return fmt.Errorf("写入动作测评失败: %w", err)
	}
	return nil
}

// GetTests 区间内测评，Insight 为空表示尚无分析结果
func (r *MovementRepository) GetTests(ctx context.Context, userID string, startTime, endTime int64) ([]schema.MovementTest, error) {
	var out []schema.MovementTest
	err := r.db.WithContext(ctx).
		Preload("Insight").
		Where("user_id = ? AND timestamp >= ? AND timestamp <= ?", userID, startTime, endTime).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询动作测评失败: %w", err)
	}
	return out, nil
}
