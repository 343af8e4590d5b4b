package schema

import "time"

// ActivityTypeFocusSession 专注时段
const ActivityTypeFocusSession = "focus_session"

// ActivityLog 时间段型活动记录（专注时段等）
type ActivityLog struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          string    `gorm:"size:64;not null;index:idx_activity_logs_user_start,priority:1" json:"user_id"`
	ActivityType    string    `gorm:"size:32;not null;index" json:"activity_type"`
	StartTime       int64     `gorm:"not null;index:idx_activity_logs_user_start,priority:2" json:"start_time"` // Unix 毫秒
	EndTime         int64     `json:"end_time"`
	DurationMinutes float64   `json:"duration_minutes"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ActivityLog) TableName() string {
	return "activity_logs"
}
