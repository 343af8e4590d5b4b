package schema

import "time"

// SchemaMeta 记录库结构版本，作为 AutoMigrate 的升级门闸；表内只有 ID=1 一行
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	Driver        string    `gorm:"size:16"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}

// AllModels 需要迁移的全部模型
func AllModels() []any {
	return []any{
		&SchemaMeta{},
		&Event{},
		&DailyScore{},
		&MovementDaily{},
		&MovementTest{},
		&MovementTestInsight{},
		&ActivityLog{},
		&RiskSnapshot{},
		&Alert{},
	}
}
