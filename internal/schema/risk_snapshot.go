package schema

import "time"

// 风险类型
const (
	RiskBurnout   = "burnout"
	RiskInjury    = "injury"
	RiskIsolation = "isolation"
	RiskFinancial = "financial"
)

// RiskTypes 全部风险类型（固定顺序）
var RiskTypes = []string{RiskBurnout, RiskInjury, RiskIsolation, RiskFinancial}

// RiskSnapshot 每日风险快照，(user_id, date) 唯一
type RiskSnapshot struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID        string    `gorm:"size:64;not null;uniqueIndex:uk_risk_snapshots_user_date,priority:1" json:"user_id"`
	Date          string    `gorm:"size:10;not null;uniqueIndex:uk_risk_snapshots_user_date,priority:2" json:"date"`
	BurnoutRisk   float64   `json:"burnout_risk"`
	InjuryRisk    float64   `json:"injury_risk"`
	IsolationRisk float64   `json:"isolation_risk"`
	FinancialRisk float64   `json:"financial_risk"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"-"`
}

// TableName 指定表名
func (RiskSnapshot) TableName() string {
	return "risk_snapshots"
}

// Score 按风险类型取值
func (r RiskSnapshot) Score(riskType string) (float64, bool) {
	switch riskType {
	case RiskBurnout:
		return r.BurnoutRisk, true
	case RiskInjury:
		return r.InjuryRisk, true
	case RiskIsolation:
		return r.IsolationRisk, true
	case RiskFinancial:
		return r.FinancialRisk, true
	default:
		return 0, false
	}
}
