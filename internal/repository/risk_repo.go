package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RiskRepository 风险快照仓储
type RiskRepository struct {
	db *gorm.DB
}

// NewRiskRepository 创建仓储
func NewRiskRepository(db *gorm.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// Upsert 按 (user_id, date) 插入或更新
func (r *RiskRepository) Upsert(ctx context.Context, snap *schema.RiskSnapshot) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"burnout_risk", "injury_risk", "isolation_risk", "financial_risk", "updated_at",
		}),
	}).Create(snap).Error
	if err != nil {
		return fmt.Errorf("写入风险快照失败: %w", err)
	}
	return nil
}

// GetByDateRange 日期范围内的快照（按日期升序）
func (r *RiskRepository) GetByDateRange(ctx context.Context, userID, startDate, endDate string) ([]schema.RiskSnapshot, error) {
	var out []schema.RiskSnapshot
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, startDate, endDate).
		Order("date ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("查询风险历史失败: %w", err)
	}
	return out, nil
}
