package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyScoreRepository 每日评分快照仓储
type DailyScoreRepository struct {
	db *gorm.DB
}

// NewDailyScoreRepository 创建仓储
func NewDailyScoreRepository(db *gorm.DB) *DailyScoreRepository {
	return &DailyScoreRepository{db: db}
}

// Upsert 按 (user_id, date) 插入或更新
func (r *DailyScoreRepository) Upsert(ctx context.Context, score *schema.DailyScore) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"wallet_score", "wellness_score", "sustainability_score", "movement_score", "updated_at"}),
	}).Create(score).Error
	if err != nil {
		return fmt.Errorf("写入每日评分失败: %w", err)
	}
	return nil
}

// GetByDate 按日期获取
func (r *DailyScoreRepository) GetByDate(ctx context.Context, userID, date string) (*schema.DailyScore, error) {
	var s schema.DailyScore
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询每日评分失败: %w", err)
	}
	return &s, nil
}

// GetByDateRange 获取日期范围内的快照（按日期升序）
func (r *DailyScoreRepository) GetByDateRange(ctx context.Context, userID, startDate, endDate string) ([]schema.DailyScore, error) {
	var out []schema.DailyScore
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, startDate, endDate).
		Order("date ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询日期范围评分失败: %w", err)
	}
	return out, nil
}
