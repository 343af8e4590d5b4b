package schema

import "time"

// DailyScore 每日评分快照，(user_id, date) 唯一；可随时由当日事件重算
type DailyScore struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID              string    `gorm:"size:64;not null;uniqueIndex:uk_daily_scores_user_date,priority:1" json:"user_id"`
	Date                string    `gorm:"size:10;not null;uniqueIndex:uk_daily_scores_user_date,priority:2" json:"date"` // YYYY-MM-DD
	WalletScore         float64   `json:"wallet_score"`
	WellnessScore       float64   `json:"wellness_score"`
	SustainabilityScore float64   `json:"sustainability_score"`
	MovementScore       float64   `json:"movement_score"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (DailyScore) TableName() string {
	return "daily_scores"
}
