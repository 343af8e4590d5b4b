package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/yuqie6/LifeMirror/internal/pkg/mathx"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// 趋势指标
const (
	MetricSpending        = "spending"
	MetricWellness        = "wellness"
	MetricSustainability  = "sustainability"
	MetricMovementMinutes = "movement_minutes"
	MetricSteps           = "steps"
	MetricWallet          = "wallet"
)

// 分解维度
const (
	BreakdownSpendingByCategory = "spending_by_category"
	BreakdownFoodByQuality      = "food_by_quality"
	BreakdownTimeByActivity     = "time_by_activity"
)

// SeriesPoint 时间序列点
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// BreakdownSlice 分解切片
type BreakdownSlice struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// StatDelta 单项看板指标
type StatDelta struct {
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// DashboardStats 看板统计
type DashboardStats struct {
	Period string               `json:"period"`
	Stats  map[string]StatDelta `json:"stats"`
}

// BeforeAfter 干预前后对比
type BeforeAfter struct {
	Metric           string        `json:"metric"`
	InterventionDate string        `json:"intervention_date"`
	BeforeAvg        float64       `json:"before_avg"`
	AfterAvg         float64       `json:"after_avg"`
	Change           float64       `json:"change"`
	ChangePercent    float64       `json:"change_percent"`
	BeforeData       []SeriesPoint `json:"before_data"`
	AfterData        []SeriesPoint `json:"after_data"`
}

// AnalyticsService 趋势 / 分解 / 看板 / 前后对比
type AnalyticsService struct {
	events   EventRepository
	movement MovementRepository
	now      func() time.Time
}

// NewAnalyticsService 创建分析服务
func NewAnalyticsService(events EventRepository, movement MovementRepository) *AnalyticsService {
	return &AnalyticsService{events: events, movement: movement, now: time.Now}
}

func bucketKey(t time.Time, granularity string) string {
	switch granularity {
	case "week":
		return weekStartMonday(t)
	case "month":
		return monthStart(t)
	default:
		return dayKey(t)
	}
}

// Trend 按 day/week/month 分桶的指标序列，空桶省略
func (s *AnalyticsService) Trend(ctx context.Context, userID, metric, startDate, endDate, granularity string) ([]SeriesPoint, error) {
	if !inSet(metric, MetricSpending, MetricWellness, MetricSustainability, MetricMovementMinutes) {
		return nil, unsupported("metric", metric)
	}
	if granularity == "" {
		granularity = "day"
	}
	if !inSet(granularity, "day", "week", "month") {
		return nil, unsupported("granularity", granularity)
	}
	if _, err := parseDay(startDate); err != nil {
		return nil, err
	}
	if _, err := parseDay(endDate); err != nil {
		return nil, err
	}

	if metric == MetricMovementMinutes {
		rows, err := s.movement.GetDailyRange(ctx, userID, startDate, endDate)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			sums := make(map[string]float64)
			for _, r := range rows {
				sums[bucketKey(mustDay(r.Date), granularity)] += float64(r.ActiveMinutes)
			}
			return sortedSeries(sums, nil), nil
		}
	}

	events, err := loadEvents(ctx, s.events, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return trendFromEvents(events, metric, granularity), nil
}

func trendFromEvents(events []schema.Event, metric, granularity string) []SeriesPoint {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for i := range events {
		ev := &events[i]
		key := bucketKey(ev.Time(), granularity)
		switch metric {
		case MetricSpending:
			if ev.Type() == schema.EventTypeSpending && ev.Amount != nil {
				sums[key] += math.Abs(*ev.Amount)
				counts[key]++
			}
		case MetricWellness:
			if v := ev.Scores.WellnessImpact; v != nil {
				sums[key] += *v
				counts[key]++
			}
		case MetricSustainability:
			if v := ev.Scores.SustainabilityImpact; v != nil {
				sums[key] += *v
				counts[key]++
			}
		case MetricMovementMinutes:
			if ev.Type() == schema.EventTypeMovement {
				if minutes, ok := eventMinutes(ev); ok {
					sums[key] += minutes
					counts[key]++
				}
			}
		}
	}

	if metric == MetricWellness || metric == MetricSustainability {
		return sortedSeries(sums, counts)
	}
	return sortedSeries(sums, nil)
}

// eventMinutes duration_minutes 为空或 0 时回落 amount
func eventMinutes(ev *schema.Event) (float64, bool) {
	if d := ev.Metadata.DurationMinutes; d != nil && *d != 0 {
		return *d, true
	}
	if ev.Amount != nil {
		return *ev.Amount, true
	}
	return 0, false
}

// sortedSeries counts 非空时输出均值，否则输出合计
func sortedSeries(sums map[string]float64, counts map[string]int) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(sums))
	for k, v := range sums {
		if counts != nil {
			if counts[k] == 0 {
				continue
			}
			v = v / float64(counts[k])
		}
		out = append(out, SeriesPoint{Date: k, Value: mathx.Round2(v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

var activityLabels = map[string]string{
	schema.EventTypeMovement: "Movement",
	schema.EventTypeWork:     "Work",
	schema.EventTypeStudy:    "Study",
	schema.EventTypeSocial:   "Social",
	schema.EventTypeSleep:    "Sleep",
	schema.EventTypeHabit:    "Habits",
	schema.EventTypeBreak:    "Break",
}

// Breakdown 按维度分解，切片按值降序
func (s *AnalyticsService) Breakdown(ctx context.Context, userID, breakdownType, startDate, endDate string) ([]BreakdownSlice, error) {
	if !inSet(breakdownType, BreakdownSpendingByCategory, BreakdownFoodByQuality, BreakdownTimeByActivity) {
		return nil, unsupported("breakdown_type", breakdownType)
	}
	if _, err := parseDay(startDate); err != nil {
		return nil, err
	}
	if _, err := parseDay(endDate); err != nil {
		return nil, err
	}

	var types []string
	switch breakdownType {
	case BreakdownSpendingByCategory:
		types = []string{schema.EventTypeSpending}
	case BreakdownFoodByQuality:
		types = []string{schema.EventTypeFood}
	case BreakdownTimeByActivity:
		types = []string{"movement", "work", "study", "social", "sleep", "habit", "break"}
	}
	events, err := loadEvents(ctx, s.events, userID, startDate, endDate, types...)
	if err != nil {
		return nil, err
	}
	return breakdown(events, breakdownType), nil
}

func breakdown(events []schema.Event, breakdownType string) []BreakdownSlice {
	totals := make(map[string]float64)
	var order []string
	add := func(name string, v float64) {
		if _, ok := totals[name]; !ok {
			order = append(order, name)
		}
		totals[name] += v
	}

	switch breakdownType {
	case BreakdownSpendingByCategory:
		for i := range events {
			ev := &events[i]
			name := ev.Metadata.Category
			if name == "" {
				name = "Other"
			}
			add(name, math.Abs(ev.AmountOr(0)))
		}
	case BreakdownFoodByQuality:
		for _, name := range []string{"Excellent", "Good", "Fair", "Poor"} {
			add(name, 0)
		}
		for i := range events {
			ev := &events[i]
			q := ev.Metadata.NutritionQualityScore
			if q == nil {
				q = ev.Scores.WellnessImpact
			}
			if q == nil {
				continue
			}
			switch {
			case *q >= 8:
				add("Excellent", 1)
			case *q >= 6:
				add("Good", 1)
			case *q >= 4:
				add("Fair", 1)
			default:
				add("Poor", 1)
			}
		}
	case BreakdownTimeByActivity:
		for i := range events {
			ev := &events[i]
			var minutes float64
			if d := ev.Metadata.DurationMinutes; d != nil {
				minutes = *d
			} else if ev.Amount != nil {
				minutes = *ev.Amount
				if ev.Type() == schema.EventTypeSleep && minutes <= 24 {
					minutes *= 60
				}
			} else {
				continue
			}
			label, ok := activityLabels[ev.Type()]
			if !ok {
				label = "Other"
			}
			add(label, minutes)
		}
	}

	total := 0.0
	for _, v := range totals {
		total += v
	}
	out := make([]BreakdownSlice, 0, len(order))
	for _, name := range order {
		v := totals[name]
		if breakdownType == BreakdownFoodByQuality && v == 0 {
			continue
		}
		pct := 0.0
		if total > 0 {
			pct = v / total * 100
		}
		out = append(out, BreakdownSlice{Name: name, Value: mathx.Round2(v), Percentage: mathx.Round2(pct)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// DashboardStats 当前窗口与上一个等长窗口对比；period 为 week(7) 或 month(30)
func (s *AnalyticsService) DashboardStats(ctx context.Context, userID, period string) (*DashboardStats, error) {
	var days int
	switch period {
	case "week":
		days = 7
	case "month":
		days = 30
	default:
		return nil, unsupported("period", period)
	}

	today := todayKey(s.now)
	curStart := addDays(today, -(days - 1))
	prevEnd := addDays(curStart, -1)
	prevStart := addDays(prevEnd, -(days - 1))

	cur, err := s.periodTotals(ctx, userID, curStart, today)
	if err != nil {
		return nil, err
	}
	prev, err := s.periodTotals(ctx, userID, prevStart, prevEnd)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]StatDelta, len(cur))
	for name, v := range cur {
		p := prev[name]
		stats[name] = StatDelta{
			Value:         mathx.Round2(v),
			Change:        mathx.Round2(v - p),
			ChangePercent: mathx.PctChange(v, p),
		}
	}
	return &DashboardStats{Period: period, Stats: stats}, nil
}

func (s *AnalyticsService) periodTotals(ctx context.Context, userID, startDate, endDate string) (map[string]float64, error) {
	events, err := loadEvents(ctx, s.events, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	rows, err := s.movement.GetDailyRange(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	var spending, meals, steps, workouts, swaps, savings float64
	var wellness []float64
	for i := range events {
		ev := &events[i]
		switch ev.Type() {
		case schema.EventTypeSpending:
			spending += math.Abs(ev.AmountOr(0))
		case schema.EventTypeFood:
			meals++
		}
		if v := ev.Scores.WellnessImpact; v != nil {
			wellness = append(wellness, *v)
		}
		if ev.Metadata.SwapAccepted {
			swaps++
			savings += swapSavings(ev.Metadata)
		}
	}
	for _, r := range rows {
		steps += float64(r.Steps)
		workouts += float64(r.WorkoutCount)
	}

	wellAvg := 0.0
	if len(wellness) > 0 {
		wellAvg = mathx.Round2(mathx.Mean(wellness))
	}
	return map[string]float64{
		"spending_total":        mathx.Round2(spending),
		"steps_total":           steps,
		"meals_logged":          meals,
		"workouts_completed":    workouts,
		"wellness_score_avg":    wellAvg,
		"swaps_accepted":        swaps,
		"money_saved_via_swaps": mathx.Round2(savings),
	}, nil
}

// swapSavings swap_savings 为空或 0 时回落 money_saved
func swapSavings(m schema.EventMetadata) float64 {
	if v := m.SwapSavings; v != nil && *v != 0 {
		return *v
	}
	return orFloat(m.MoneySaved, 0)
}

// BeforeAfter 干预日前后各 14 天的日均对比
func (s *AnalyticsService) BeforeAfter(ctx context.Context, userID, interventionDate, metric string) (*BeforeAfter, error) {
	if !inSet(metric, MetricSpending, MetricWellness, MetricMovementMinutes, MetricSteps) {
		return nil, unsupported("metric", metric)
	}
	if _, err := parseDay(interventionDate); err != nil {
		return nil, err
	}

	const window = 14
	beforeDays := daysBetween(addDays(interventionDate, -window), addDays(interventionDate, -1))
	afterDays := daysBetween(interventionDate, addDays(interventionDate, window-1))

	before, err := s.dailyValues(ctx, userID, beforeDays, metric)
	if err != nil {
		return nil, err
	}
	after, err := s.dailyValues(ctx, userID, afterDays, metric)
	if err != nil {
		return nil, err
	}

	beforeAvg := seriesAvg(before)
	afterAvg := seriesAvg(after)
	return &BeforeAfter{
		Metric:           metric,
		InterventionDate: interventionDate,
		BeforeAvg:        beforeAvg,
		AfterAvg:         afterAvg,
		Change:           mathx.Round2(afterAvg - beforeAvg),
		ChangePercent:    mathx.PctChange(afterAvg, beforeAvg),
		BeforeData:       before,
		AfterData:        after,
	}, nil
}

func seriesAvg(points []SeriesPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range points {
		total += p.Value
	}
	return mathx.Round2(total / float64(len(points)))
}

func (s *AnalyticsService) dailyValues(ctx context.Context, userID string, days []string, metric string) ([]SeriesPoint, error) {
	start, end := days[0], days[len(days)-1]
	out := make([]SeriesPoint, 0, len(days))

	if metric == MetricSteps || metric == MetricMovementMinutes {
		rows, err := s.movement.GetDailyRange(ctx, userID, start, end)
		if err != nil {
			return nil, err
		}
		lookup := make(map[string]schema.MovementDaily, len(rows))
		for _, r := range rows {
			lookup[r.Date] = r
		}
		for _, d := range days {
			v := 0.0
			if r, ok := lookup[d]; ok {
				if metric == MetricSteps {
					v = float64(r.Steps)
				} else {
					v = float64(r.ActiveMinutes)
				}
			}
			out = append(out, SeriesPoint{Date: d, Value: mathx.Round2(v)})
		}
		return out, nil
	}

	events, err := loadEvents(ctx, s.events, userID, start, end)
	if err != nil {
		return nil, err
	}
	values := make(map[string][]float64, len(days))
	for i := range events {
		ev := &events[i]
		key := ev.Day()
		switch metric {
		case MetricSpending:
			if ev.Type() == schema.EventTypeSpending {
				values[key] = append(values[key], math.Abs(ev.AmountOr(0)))
			}
		case MetricWellness:
			if v := ev.Scores.WellnessImpact; v != nil {
				values[key] = append(values[key], *v)
			}
		}
	}
	for _, d := range days {
		vals := values[d]
		v := mathx.Sum(vals)
		if metric == MetricWellness {
			v = mathx.Mean(vals)
		}
		out = append(out, SeriesPoint{Date: d, Value: mathx.Round2(v)})
	}
	return out, nil
}
