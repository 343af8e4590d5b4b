package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// 事件类型
const (
	EventTypeSpending = "spending"
	EventTypeFood     = "food"
	EventTypeMovement = "movement"
	EventTypeHabit    = "habit"
	EventTypeMood     = "mood"
	EventTypeSleep    = "sleep"
	EventTypeSocial   = "social"
	EventTypeMeds     = "meds"
	EventTypeWork     = "work"
	EventTypeStudy    = "study"
	EventTypeBreak    = "break"
	EventTypeWater    = "water"
)

// 事件分类
const (
	CategoryFinance      = "finance"
	CategoryNutrition    = "nutrition"
	CategoryFitness      = "fitness"
	CategoryHealth       = "health"
	CategorySocial       = "social"
	CategoryProductivity = "productivity"
	CategorySelfcare     = "selfcare"
)

var knownEventTypes = map[string]struct{}{
	EventTypeSpending: {}, EventTypeFood: {}, EventTypeMovement: {}, EventTypeHabit: {},
	EventTypeMood: {}, EventTypeSleep: {}, EventTypeSocial: {}, EventTypeMeds: {},
	EventTypeWork: {}, EventTypeStudy: {}, EventTypeBreak: {}, EventTypeWater: {},
}

var knownCategories = map[string]struct{}{
	CategoryFinance: {}, CategoryNutrition: {}, CategoryFitness: {}, CategoryHealth: {},
	CategorySocial: {}, CategoryProductivity: {}, CategorySelfcare: {},
}

// IsEventType 是否为受支持的事件类型
func IsEventType(s string) bool {
	_, ok := knownEventTypes[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// IsCategory 是否为受支持的分类
func IsCategory(s string) bool {
	_, ok := knownCategories[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// DateLayout 日期键格式（UTC 日历日）
const DateLayout = "2006-01-02"

// Event 用户行为事件：只追加，除批量重算 scores 外不可变
// 数据量级：万级/用户/年
type Event struct {
	ID        int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string        `gorm:"size:64;not null;index:idx_events_user_ts,priority:1" json:"user_id"`
	EventType string        `gorm:"size:32;not null;index" json:"event_type"`
	Category  string        `gorm:"size:32;not null" json:"category"`
	Title     string        `gorm:"size:255" json:"title"`
	Timestamp int64         `gorm:"not null;index:idx_events_user_ts,priority:2" json:"timestamp"` // Unix 毫秒（UTC）
	Amount    *float64      `json:"amount,omitempty"`
	Metadata  EventMetadata `gorm:"type:text" json:"metadata"`
	Scores    EventScores   `gorm:"type:text" json:"scores"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Event) TableName() string {
	return "events"
}

// Type 小写事件类型
func (e *Event) Type() string {
	return strings.ToLower(e.EventType)
}

// Cat 小写分类
func (e *Event) Cat() string {
	return strings.ToLower(e.Category)
}

// LowerTitle 小写标题，便于关键字匹配
func (e *Event) LowerTitle() string {
	return strings.ToLower(e.Title)
}

// Time 事件发生时间（UTC）
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Day 事件所在日期键
func (e *Event) Day() string {
	return e.Time().Format(DateLayout)
}

// AmountOr 金额，缺失时返回 def
func (e *Event) AmountOr(def float64) float64 {
	if e.Amount == nil {
		return def
	}
	return *e.Amount
}

// EventScores 单事件评分结果，三项影响值均在 [-100, 100]
type EventScores struct {
	WellnessImpact       *float64          `json:"wellness_impact,omitempty"`
	CostImpact           *float64          `json:"cost_impact,omitempty"`
	SustainabilityImpact *float64          `json:"sustainability_impact,omitempty"`
	Explanations         ScoreExplanations `json:"explanations"`
}

// ScoreExplanations 评分说明
type ScoreExplanations struct {
	Wellness       string `json:"wellness"`
	Cost           string `json:"cost"`
	Sustainability string `json:"sustainability"`
}

// Value 实现 driver.Valuer 接口
func (s EventScores) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (s *EventScores) Scan(value interface{}) error {
	*s = EventScores{}
	b, ok := toBytes(value)
	if !ok || len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("解析 scores 失败: %w", err)
	}
	return nil
}

func toBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}

// Float 构造 *float64
func Float(v float64) *float64 {
	return &v
}
