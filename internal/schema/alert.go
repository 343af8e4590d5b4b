package schema

import "time"

// Alert 应用内提醒（事件写入后的非关键后处理产生）
type Alert struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"` // UUID
	UserID     string    `gorm:"size:64;not null;index" json:"user_id"`
	AlertType  string    `gorm:"size:32;not null" json:"alert_type"`
	Title      string    `gorm:"size:255" json:"title"`
	Message    string    `gorm:"type:text" json:"message"`
	ActionLink string    `gorm:"size:255" json:"action_link,omitempty"`
	Read       bool      `gorm:"default:false" json:"read"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (Alert) TableName() string {
	return "alerts"
}
