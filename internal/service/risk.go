package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yuqie6/LifeMirror/internal/pkg/mathx"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// RiskFactor 风险因子
type RiskFactor struct {
	Name    string  `json:"name"`
	Impact  float64 `json:"impact"`
	Details string  `json:"details"`
}

// RiskAssessment 单领域风险评估
type RiskAssessment struct {
	Days            int          `json:"days"`
	Risk            float64      `json:"risk"`
	Level           string       `json:"level"`
	Factors         []RiskFactor `json:"factors"`
	Recommendations []string     `json:"recommendations"`
}

// RiskHistoryRow 风险历史行；未选中的类型为空
type RiskHistoryRow struct {
	Date          string   `json:"date"`
	BurnoutRisk   *float64 `json:"burnout_risk,omitempty"`
	InjuryRisk    *float64 `json:"injury_risk,omitempty"`
	IsolationRisk *float64 `json:"isolation_risk,omitempty"`
	FinancialRisk *float64 `json:"financial_risk,omitempty"`
}

// RiskService 倦怠 / 受伤 / 孤立 / 财务四个领域的风险评分
type RiskService struct {
	events   EventRepository
	movement MovementRepository
	activity ActivityRepository
	risks    RiskRepository
	now      func() time.Time
}

// NewRiskService 创建风险服务
func NewRiskService(events EventRepository, movement MovementRepository, activity ActivityRepository, risks RiskRepository) *RiskService {
	return &RiskService{events: events, movement: movement, activity: activity, risks: risks, now: time.Now}
}

// RiskLevel >70 high，≥41 medium，其余 low
func RiskLevel(score float64) string {
	switch {
	case score > 70:
		return "high"
	case score >= 41:
		return "medium"
	default:
		return "low"
	}
}

// assess 仅保留正影响因子，按影响降序取前三，风险为其和（封顶 100）
func assess(days int, factors []RiskFactor, recs []string) *RiskAssessment {
	kept := make([]RiskFactor, 0, len(factors))
	for _, f := range factors {
		if f.Impact > 0 {
			f.Impact = mathx.Round2(f.Impact)
			kept = append(kept, f)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Impact > kept[j].Impact })
	if len(kept) > 3 {
		kept = kept[:3]
	}
	total := 0.0
	for _, f := range kept {
		total += f.Impact
	}
	risk := mathx.Round2(math.Min(100, total))
	if recs == nil {
		recs = []string{}
	}
	return &RiskAssessment{Days: days, Risk: risk, Level: RiskLevel(risk), Factors: kept, Recommendations: recs}
}

// window 以 asOf 结尾的 days 个日历日
func (s *RiskService) window(asOf string, days int) (start, end string, n int, err error) {
	n = max(1, days)
	if asOf == "" {
		asOf = todayKey(s.now)
	}
	if _, err := parseDay(asOf); err != nil {
		return "", "", 0, err
	}
	return addDays(asOf, -(n - 1)), asOf, n, nil
}

type burnoutDay struct {
	sleepHours   float64
	moods        []float64
	focusMinutes float64
	breaks       int
	lateNight    bool
}

// Burnout 倦怠风险：睡眠不足、长时专注、低落情绪、熬夜、缺少休息
func (s *RiskService) Burnout(ctx context.Context, userID, asOf string, days int) (*RiskAssessment, error) {
	start, end, n, err := s.window(asOf, days)
	if err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, s.events, userID, start, end)
	if err != nil {
		return nil, err
	}
	startMs, endMs, err := repository.DateRange(start, end)
	if err != nil {
		return nil, err
	}
	focus, err := s.activity.GetByType(ctx, userID, schema.ActivityTypeFocusSession, startMs, endMs)
	if err != nil {
		return nil, err
	}
	return burnoutRisk(daysBetween(start, end), n, events, focus), nil
}

func burnoutRisk(dates []string, n int, events []schema.Event, focus []schema.ActivityLog) *RiskAssessment {
	daily := make(map[string]*burnoutDay, len(dates))
	for _, d := range dates {
		daily[d] = &burnoutDay{}
	}

	for i := range events {
		ev := &events[i]
		day, ok := daily[ev.Day()]
		if !ok {
			continue
		}
		et := ev.Type()
		if et == schema.EventTypeSleep {
			hours := ev.Amount
			if hours == nil {
				hours = ev.Metadata.Hours
			}
			if hours != nil && *hours > 0 {
				day.sleepHours += math.Min(24, *hours)
			}
		}
		if et == schema.EventTypeMood && ev.Amount != nil {
			day.moods = append(day.moods, mathx.Clamp(*ev.Amount, 0, 10))
		}
		if et == schema.EventTypeBreak || (et == schema.EventTypeHabit && ev.Metadata.TypeLower() == "break") {
			day.breaks++
		}
		if h := ev.Time().Hour(); h >= 23 || h < 5 {
			day.lateNight = true
		}
	}
	for _, f := range focus {
		day, ok := daily[dayKey(time.UnixMilli(f.StartTime))]
		if !ok {
			continue
		}
		day.focusMinutes += math.Max(0, f.DurationMinutes)
	}

	var deficit, totalSleep float64
	var sleepDays, focusDays, lateDays, noBreakDays int
	var lowMoodValues []float64
	lowMoodDays := 0
	for _, d := range dates {
		data := daily[d]
		if data.sleepHours > 0 {
			sleepDays++
			totalSleep += data.sleepHours
			if data.sleepHours < 7 {
				deficit += 7 - data.sleepHours
			}
		}
		if data.focusMinutes > 180 {
			focusDays++
		}
		if len(data.moods) > 0 && mathx.Mean(data.moods) < 5 {
			lowMoodDays++
			lowMoodValues = append(lowMoodValues, data.moods...)
		}
		if data.lateNight {
			lateDays++
		}
		if data.breaks < 2 {
			noBreakDays++
		}
	}

	sleepDetail := "No sleep logs available."
	if sleepDays > 0 {
		sleepDetail = fmt.Sprintf("Average %.1fh/night, need 7-8h. Missing %.1fh/night.", totalSleep/float64(sleepDays), deficit)
	}
	moodDetail := "Mood logged below 5."
	if len(lowMoodValues) > 0 {
		moodDetail = fmt.Sprintf("Average mood %.1f/10 on %d days.", mathx.Mean(lowMoodValues), lowMoodDays)
	}

	factors := []RiskFactor{
		{"Sleep deficit", deficit * 20, sleepDetail},
		{"Prolonged focus", float64(focusDays) * 15, fmt.Sprintf("%d days over 3h focus sessions.", focusDays)},
		{"Negative mood", float64(lowMoodDays) * 10, moodDetail},
		{"Late nights", float64(lateDays) * 10, fmt.Sprintf("%d nights with activity after 11pm.", lateDays)},
		{"Low breaks", float64(noBreakDays) * 10, fmt.Sprintf("%d days with fewer than 2 breaks.", noBreakDays)},
	}

	var recs []string
	if deficit > 0 {
		recs = append(recs, "Aim for 7-8 hours of sleep each night.")
	}
	if focusDays > 0 {
		recs = append(recs, "Plan a recovery break after 90-120 minutes of focus.")
	}
	if lowMoodDays > 0 {
		recs = append(recs, "Add a quick mood reset: stretch, hydrate, or brief walk.")
	}
	if lateDays > 0 {
		recs = append(recs, "Set a cutoff for work screens before 11pm.")
	}
	if noBreakDays > 0 {
		recs = append(recs, "Log at least two short breaks per day.")
	}
	return assess(n, factors, recs)
}

var rehabKeywords = []string{"rehab", "pt", "physio", "therapy"}

// Injury 受伤风险：缺少康复、活动量陡增、疼痛记录、动作质量差
func (s *RiskService) Injury(ctx context.Context, userID, asOf string, days int) (*RiskAssessment, error) {
	start, end, n, err := s.window(asOf, days)
	if err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, s.events, userID, start, end)
	if err != nil {
		return nil, err
	}
	movement, err := s.movement.GetDailyRange(ctx, userID, addDays(start, -n), end)
	if err != nil {
		return nil, err
	}
	startMs, endMs, err := repository.DateRange(start, end)
	if err != nil {
		return nil, err
	}
	tests, err := s.movement.GetTests(ctx, userID, startMs, endMs)
	if err != nil {
		return nil, err
	}
	return injuryRisk(start, n, events, movement, tests), nil
}

func injuryRisk(start string, n int, events []schema.Event, movement []schema.MovementDaily, tests []schema.MovementTest) *RiskAssessment {
	rehab, pain := 0, 0
	for i := range events {
		ev := &events[i]
		et := ev.Type()
		title := ev.LowerTitle()
		if (et == schema.EventTypeHabit && inSet(ev.Metadata.TypeLower(), rehabKeywords...)) || containsAny(title, rehabKeywords...) {
			rehab++
		}
		if et == "pain" || et == "injury" || ev.Metadata.PainLevel != nil || strings.Contains(title, "pain") {
			pain++
		}
	}

	prevStart := addDays(start, -n)
	var curTotal, prevTotal float64
	var curCount, prevCount int
	for _, r := range movement {
		switch {
		case r.Date >= start:
			curTotal += float64(r.ActiveMinutes)
			curCount++
		case r.Date >= prevStart:
			prevTotal += float64(r.ActiveMinutes)
			prevCount++
		}
	}
	curAvg := curTotal / float64(max(1, curCount))
	prevAvg := prevTotal / float64(max(1, prevCount))
	spike := false
	if prevAvg > 0 {
		spike = curAvg > prevAvg*1.5
	} else {
		spike = curAvg >= 30
	}

	poorForm := 0
	for _, t := range tests {
		if t.Insight != nil && t.Insight.FormScore != nil && *t.Insight.FormScore < 60 {
			poorForm++
		}
	}

	factors := []RiskFactor{
		{"Skipped rehab/PT", boolImpact(rehab == 0, 25), fmt.Sprintf("No rehab/PT sessions logged in %d days.", n)},
		{"Activity spike", boolImpact(spike, 20), fmt.Sprintf("Avg active minutes %.0f vs %.0f (+50%%).", curAvg, prevAvg)},
		{"Reported pain", float64(pain) * 15, fmt.Sprintf("%d pain-related logs recorded.", pain)},
		{"Poor form", float64(poorForm) * 10, fmt.Sprintf("%d tests under form score 60.", poorForm)},
	}
	return assess(n, factors, []string{"Gradual increase only", "Rest day needed", "See PT"})
}

var groupKeywords = []string{"group", "team", "class", "meetup"}

// Isolation 孤立风险：社交偏少、情绪低、互动下降、缺少群体活动
func (s *RiskService) Isolation(ctx context.Context, userID, asOf string, days int) (*RiskAssessment, error) {
	start, end, n, err := s.window(asOf, days)
	if err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, s.events, userID, addDays(start, -n), end)
	if err != nil {
		return nil, err
	}
	return isolationRisk(start, n, events), nil
}

func isolationRisk(start string, n int, events []schema.Event) *RiskAssessment {
	social, group, cur, prev := 0, 0, 0, 0
	var moods []float64
	for i := range events {
		ev := &events[i]
		inCurrent := ev.Day() >= start
		if inCurrent {
			cur++
		} else {
			prev++
			continue
		}
		switch ev.Type() {
		case schema.EventTypeSocial:
			social++
			if ev.Metadata.Group || inSet(ev.Metadata.TypeLower(), groupKeywords...) {
				group++
			}
			if containsAny(ev.Title, groupKeywords...) {
				group++
			}
		case schema.EventTypeMood:
			if ev.Amount != nil {
				moods = append(moods, mathx.Clamp(*ev.Amount, 0, 10))
			}
		}
	}

	target := 3.0 / 7.0 * float64(n)
	moodDetail := "No mood logs this window."
	lowMood := false
	if len(moods) > 0 {
		avg := mathx.Mean(moods)
		lowMood = avg < 5
		moodDetail = fmt.Sprintf("Average mood %.1f/10.", avg)
	}
	reduced := prev > 0 && float64(cur) < float64(prev)*0.8

	factors := []RiskFactor{
		{"Low social interactions", boolImpact(float64(social) < target, 30), fmt.Sprintf("%d social events logged, target %.1f.", social, target)},
		{"Flat/negative mood", boolImpact(lowMood, 20), moodDetail},
		{"Reduced communication", boolImpact(reduced, 15), fmt.Sprintf("%d events vs %d in prior window.", cur, prev)},
		{"No group activities", boolImpact(group == 0, 10), "No group activities logged."},
	}
	return assess(n, factors, []string{"Schedule social event", "Call a friend", "Join group activity"})
}

// Financial 财务风险：入不敷出、固定支出、应急金不足、净额走低
func (s *RiskService) Financial(ctx context.Context, userID, asOf string, days int) (*RiskAssessment, error) {
	start, end, n, err := s.window(asOf, days)
	if err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, s.events, userID, start, end)
	if err != nil {
		return nil, err
	}
	return financialRisk(n, events), nil
}

func financialRisk(n int, events []schema.Event) *RiskAssessment {
	var spend, income float64
	recurring := 0
	net := make(map[string]float64)
	var balance *float64
	var balanceTs int64

	for i := range events {
		ev := &events[i]
		day := ev.Day()
		et := ev.Type()
		amount := ev.AmountOr(0)

		// 取时间戳严格最新的余额，同一时间戳保留先写入的
		if b := ev.Metadata.CurrentBalance; b != nil {
			if balance == nil || ev.Timestamp > balanceTs {
				balance = b
				balanceTs = ev.Timestamp
			}
		}
		if et == schema.EventTypeSpending {
			spend += math.Abs(amount)
			net[day] -= math.Abs(amount)
			if ev.Metadata.Recurring {
				recurring++
			}
		}
		if ev.Cat() == schema.CategoryFinance || et == "income" {
			income += amount
			net[day] += amount
		}
	}

	dates := make([]string, 0, len(net))
	for d := range net {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	latest := 0.0
	if balance != nil {
		latest = *balance
	} else {
		for _, d := range dates {
			latest += net[d]
		}
	}

	monthSpend := spend / float64(n) * 30
	emergency := monthSpend > 0 && latest < monthSpend

	halfway := max(1, len(dates)/2)
	var first, second float64
	for i, d := range dates {
		if i < halfway {
			first += net[d]
		} else {
			second += net[d]
		}
	}
	debt := second < first && second < 0

	factors := []RiskFactor{
		{"Spending velocity", boolImpact(spend > income, 40), fmt.Sprintf("Spent %.2f vs earned %.2f.", spend, income)},
		{"Recurring expenses", boolImpact(recurring >= 3, 20), fmt.Sprintf("%d recurring expenses logged.", recurring)},
		{"Emergency fund low", boolImpact(emergency, 30), fmt.Sprintf("Balance %.2f vs monthly spend %.2f.", latest, monthSpend)},
		{"Increasing debt trend", boolImpact(debt, 20), fmt.Sprintf("Net trend %.2f vs %.2f.", second, first)},
	}
	return assess(n, factors, []string{"Review subscriptions", "Set spending limit", "Build emergency fund"})
}

func boolImpact(cond bool, impact float64) float64 {
	if cond {
		return impact
	}
	return 0
}

// SaveSnapshot 计算四项风险并写入 (user, date) 快照
func (s *RiskService) SaveSnapshot(ctx context.Context, userID, date string) (*schema.RiskSnapshot, error) {
	if date == "" {
		date = todayKey(s.now)
	}
	burnout, err := s.Burnout(ctx, userID, date, 7)
	if err != nil {
		return nil, err
	}
	injury, err := s.Injury(ctx, userID, date, 7)
	if err != nil {
		return nil, err
	}
	isolation, err := s.Isolation(ctx, userID, date, 7)
	if err != nil {
		return nil, err
	}
	financial, err := s.Financial(ctx, userID, date, 30)
	if err != nil {
		return nil, err
	}

	snap := &schema.RiskSnapshot{
		UserID:        userID,
		Date:          date,
		BurnoutRisk:   burnout.Risk,
		InjuryRisk:    injury.Risk,
		IsolationRisk: isolation.Risk,
		FinancialRisk: financial.Risk,
	}
	if err := s.risks.Upsert(ctx, snap); err != nil {
		return nil, fmt.Errorf("保存风险快照失败: %w", err)
	}
	return snap, nil
}

// History 最近 days 天的风险历史；types 为空时返回全部类型
func (s *RiskService) History(ctx context.Context, userID string, days int, types []string) ([]RiskHistoryRow, error) {
	selected := make(map[string]bool, len(schema.RiskTypes))
	if len(types) == 0 {
		for _, t := range schema.RiskTypes {
			selected[t] = true
		}
	}
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if !inSet(t, schema.RiskTypes...) {
			return nil, unsupported("type", t)
		}
		selected[t] = true
	}

	n := max(1, days)
	end := todayKey(s.now)
	rows, err := s.risks.GetByDateRange(ctx, userID, addDays(end, -(n-1)), end)
	if err != nil {
		return nil, err
	}

	out := make([]RiskHistoryRow, 0, len(rows))
	for _, r := range rows {
		row := RiskHistoryRow{Date: r.Date}
		for _, t := range schema.RiskTypes {
			if !selected[t] {
				continue
			}
			v, _ := r.Score(t)
			v = mathx.Round2(v)
			switch t {
			case schema.RiskBurnout:
				row.BurnoutRisk = &v
			case schema.RiskInjury:
				row.InjuryRisk = &v
			case schema.RiskIsolation:
				row.IsolationRisk = &v
			case schema.RiskFinancial:
				row.FinancialRisk = &v
			}
		}
		out = append(out, row)
	}
	return out, nil
}
