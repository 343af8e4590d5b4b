package schema

import "time"

// MovementDaily 每日运动聚合，(user_id, date) 唯一
type MovementDaily struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID             string    `gorm:"size:64;not null;uniqueIndex:uk_movement_daily_user_date,priority:1" json:"user_id"`
	Date               string    `gorm:"size:10;not null;uniqueIndex:uk_movement_daily_user_date,priority:2" json:"date"`
	Steps              int       `json:"steps"`
	ActiveMinutes      int       `json:"active_minutes"`
	SedentaryMinutes   int       `json:"sedentary_minutes"`
	WorkoutCount       int       `json:"workout_count"`
	TotalMovementScore int       `json:"total_movement_score"` // 0-100
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (MovementDaily) TableName() string {
	return "movement_daily"
}

// MovementTest 动作测评记录（计入当日活跃分钟与训练次数）
type MovementTest struct {
	ID              int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          string               `gorm:"size:64;not null;index:idx_movement_tests_user_ts,priority:1" json:"user_id"`
	TestType        string               `gorm:"size:64" json:"test_type"`
	DurationSeconds float64              `json:"duration_seconds"`
	Timestamp       int64                `gorm:"not null;index:idx_movement_tests_user_ts,priority:2" json:"timestamp"` // Unix 毫秒
	Insight         *MovementTestInsight `gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE" json:"insight,omitempty"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (MovementTest) TableName() string {
	return "movement_tests"
}

// MovementTestInsight 测评分析结果，每个测评至多一条
type MovementTestInsight struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TestID    int64     `gorm:"not null;uniqueIndex" json:"test_id"`
	FormScore *float64  `json:"form_score,omitempty"`
	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (MovementTestInsight) TableName() string {
	return "movement_test_insights"
}
