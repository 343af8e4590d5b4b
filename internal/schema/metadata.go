package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventMetadata 事件元数据：已知键强类型，未知键原样透传到 Extra
type EventMetadata struct {
	Merchant              string
	Category              string
	Ingredients           []string
	DurationMinutes       *float64
	Location              string
	Notes                 string
	Steps                 *float64
	Type                  string
	NutritionQualityScore *float64
	Hours                 *float64
	SustainabilityScore   *float64
	CurrentBalance        *float64
	Recurring             bool // recurring / is_recurring
	RecurringIntervalDays *float64
	NextDueDate           string // YYYY-MM-DD
	SwapAccepted          bool
	SwapSavings           *float64
	MoneySaved            *float64
	MoneySavedViaSwaps    *float64
	PainLevel             *float64 // pain_level，为空或 0 时回落到 pain_score
	Group                 bool
	MealPrep              bool
	LocalPurchase         bool
	Shipped               bool // shipping / shipped / delivery
	Mood                  string
	SocialContext         string

	Extra map[string]any
}

// MetadataError 已知键类型不合法
type MetadataError struct {
	Key    string
	Reason string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata.%s %s", e.Key, e.Reason)
}

// ParseMetadata 校验已知键并转换为强类型结构
func ParseMetadata(raw map[string]any) (EventMetadata, error) {
	var m EventMetadata
	var painScore *float64

	for key, val := range raw {
		if val == nil {
			continue
		}
		var err error
		var flag bool
		switch key {
		case "merchant":
			m.Merchant, err = asString(val)
		case "category":
			m.Category, err = asString(val)
		case "ingredients":
			m.Ingredients, err = asStringList(val)
		case "duration_minutes":
			m.DurationMinutes, err = asNumber(val)
		case "location":
			m.Location, err = asString(val)
		case "notes":
			m.Notes, err = asString(val)
		case "steps":
			m.Steps, err = asNumber(val)
		case "type":
			m.Type, err = asString(val)
		case "nutrition_quality_score":
			m.NutritionQualityScore, err = asNumber(val)
		case "hours":
			m.Hours, err = asNumber(val)
		case "sustainability_score":
			m.SustainabilityScore, err = asNumber(val)
		case "current_balance":
			m.CurrentBalance, err = asNumber(val)
		case "recurring", "is_recurring":
			flag, err = asFlag(val)
			m.Recurring = m.Recurring || flag
		case "recurring_interval_days":
			m.RecurringIntervalDays, err = asNumber(val)
		case "next_due_date":
			m.NextDueDate, err = asDate(val)
		case "swap_accepted":
			m.SwapAccepted, err = asFlag(val)
		case "swap_savings":
			m.SwapSavings, err = asNumber(val)
		case "money_saved":
			m.MoneySaved, err = asNumber(val)
		case "money_saved_via_swaps":
			m.MoneySavedViaSwaps, err = asNumber(val)
		case "pain_level":
			m.PainLevel, err = asNumber(val)
		case "pain_score":
			painScore, err = asNumber(val)
		case "group":
			m.Group, err = asFlag(val)
		case "meal_prep":
			m.MealPrep, err = asFlag(val)
		case "local_purchase":
			m.LocalPurchase, err = asFlag(val)
		case "shipping", "shipped", "delivery":
			flag, err = asFlag(val)
			m.Shipped = m.Shipped || flag
		case "mood":
			m.Mood, err = asString(val)
		case "social_context":
			m.SocialContext, err = asString(val)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[key] = val
		}
		if err != nil {
			return EventMetadata{}, &MetadataError{Key: key, Reason: err.Error()}
		}
	}

	if m.PainLevel == nil || *m.PainLevel == 0 {
		m.PainLevel = painScore
	}
	return m, nil
}

// ToMap 转回键值形式（规范化后的键名）
func (m EventMetadata) ToMap() map[string]any {
	out := make(map[string]any, len(m.Extra)+8)
	for k, v := range m.Extra {
		out[k] = v
	}
	putString := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	putNumber := func(k string, v *float64) {
		if v != nil {
			out[k] = *v
		}
	}
	putFlag := func(k string, v bool) {
		if v {
			out[k] = true
		}
	}

	putString("merchant", m.Merchant)
	putString("category", m.Category)
	if len(m.Ingredients) > 0 {
		out["ingredients"] = append([]string(nil), m.Ingredients...)
	}
	putNumber("duration_minutes", m.DurationMinutes)
	putString("location", m.Location)
	putString("notes", m.Notes)
	putNumber("steps", m.Steps)
	putString("type", m.Type)
	putNumber("nutrition_quality_score", m.NutritionQualityScore)
	putNumber("hours", m.Hours)
	putNumber("sustainability_score", m.SustainabilityScore)
	putNumber("current_balance", m.CurrentBalance)
	putFlag("recurring", m.Recurring)
	putNumber("recurring_interval_days", m.RecurringIntervalDays)
	putString("next_due_date", m.NextDueDate)
	putFlag("swap_accepted", m.SwapAccepted)
	putNumber("swap_savings", m.SwapSavings)
	putNumber("money_saved", m.MoneySaved)
	putNumber("money_saved_via_swaps", m.MoneySavedViaSwaps)
	putNumber("pain_level", m.PainLevel)
	putFlag("group", m.Group)
	putFlag("meal_prep", m.MealPrep)
	putFlag("local_purchase", m.LocalPurchase)
	putFlag("shipped", m.Shipped)
	putString("mood", m.Mood)
	putString("social_context", m.SocialContext)
	return out
}

// MarshalJSON 输出规范化键值
func (m EventMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON 解析并校验已知键
func (m *EventMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseMetadata(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value 实现 driver.Valuer 接口
func (m EventMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m.ToMap())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (m *EventMetadata) Scan(value interface{}) error {
	*m = EventMetadata{}
	b, ok := toBytes(value)
	if !ok || len(b) == 0 {
		return nil
	}
	if err := m.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("解析 metadata 失败: %w", err)
	}
	return nil
}

// TypeLower 小写 type
func (m EventMetadata) TypeLower() string {
	return strings.ToLower(strings.TrimSpace(m.Type))
}

// LowerIngredients 小写配料名
func (m EventMetadata) LowerIngredients() []string {
	out := make([]string, 0, len(m.Ingredients))
	for _, it := range m.Ingredients {
		out = append(out, strings.ToLower(it))
	}
	return out
}

// HasAnyIngredient 配料中是否存在任一关键字（整词匹配）
func (m EventMetadata) HasAnyIngredient(keywords ...string) bool {
	names := m.LowerIngredients()
	for _, kw := range keywords {
		for _, n := range names {
			if n == kw {
				return true
			}
		}
	}
	return false
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case json.Number:
		return s.String(), nil
	default:
		return "", fmt.Errorf("必须是字符串")
	}
}

func asNumber(v any) (*float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("必须是数字")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil, fmt.Errorf("必须是数字")
		}
		f = parsed
	default:
		return nil, fmt.Errorf("必须是数字")
	}
	return &f, nil
}

func asFlag(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case float64:
		return b != 0, nil
	case int:
		return b != 0, nil
	case int64:
		return b != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1", "y", "on":
			return true, nil
		default:
			return false, nil
		}
	default:
		return false, fmt.Errorf("必须是布尔值")
	}
}

func asStringList(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, it := range list {
			if s, err := asString(it); err == nil && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("必须是字符串数组")
	}
}

func asDate(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("必须是 YYYY-MM-DD 日期")
	}
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return "", fmt.Errorf("必须是 YYYY-MM-DD 日期")
	}
	t, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return "", fmt.Errorf("必须是 YYYY-MM-DD 日期")
	}
	return t.Format(DateLayout), nil
}
