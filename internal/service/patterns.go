package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yuqie6/LifeMirror/internal/pkg/mathx"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// CorrelationInsight 指标与结果之间的相关性洞察
type CorrelationInsight struct {
	Pattern           string  `json:"pattern"`
	Frequency         int     `json:"frequency"`
	ImpactMetric      string  `json:"impact_metric"`
	ImpactValue       float64 `json:"impact_value"`
	ImpactDescription string  `json:"impact_description"`
	Confidence        float64 `json:"confidence"`
	Recommendation    string  `json:"recommendation"`
}

// Trigger 负面模式的触发条件
type Trigger struct {
	Type           string  `json:"type"`
	Value          string  `json:"value"`
	OccurrenceRate float64 `json:"occurrence_rate"`
	ImpactMetric   string  `json:"impact_metric"`
	ImpactValue    float64 `json:"impact_value"`
}

// TriggerReport 触发条件分析
type TriggerReport struct {
	NegativePattern string    `json:"negative_pattern"`
	Triggers        []Trigger `json:"triggers"`
	Recommendations []string  `json:"recommendations"`
}

// Notification 洞察通知
type Notification struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Action   string `json:"action"`
	Link     string `json:"link"`
}

// PositivePattern 正向习惯
type PositivePattern struct {
	Pattern       string `json:"pattern"`
	StartedDate   string `json:"started_date"`
	Improvement   string `json:"improvement"`
	Streak        int    `json:"streak"`
	Message       string `json:"message"`
	Encouragement string `json:"encouragement"`
}

// 相关性阈值
const correlationThreshold = 0.5

// PatternService 相关性 / 触发条件 / 通知 / 正向模式
type PatternService struct {
	events EventRepository
	scores DailyScoreRepository
	now    func() time.Time
}

// NewPatternService 创建模式检测服务
func NewPatternService(events EventRepository, scores DailyScoreRepository) *PatternService {
	return &PatternService{events: events, scores: scores, now: time.Now}
}

// window 以今天结尾、向前 days 天的区间
func (s *PatternService) window(days int) (string, string) {
	end := todayKey(s.now)
	return addDays(end, -max(1, days)), end
}

func (s *PatternService) load(ctx context.Context, userID, start, end string) ([]schema.Event, []schema.DailyScore, error) {
	events, err := loadEvents(ctx, s.events, userID, start, end)
	if err != nil {
		return nil, nil, err
	}
	scores, err := s.scores.GetByDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("读取每日评分失败: %w", err)
	}
	return events, scores, nil
}

// isMealPrep 备餐事件
func isMealPrep(ev *schema.Event) bool {
	if ev.Type() == schema.EventTypeHabit && ev.Cat() == "meal_prep" {
		return true
	}
	if containsAny(ev.Title, "meal prep", "mealprep", "meal-prep") {
		return true
	}
	return ev.Metadata.MealPrep
}

// weekKey 周日对齐的周起始日
func weekKey(ev *schema.Event) string {
	return weekStartSunday(ev.Time())
}

// dayStreak 以最近出现的日期为终点，向前数连续天数
func dayStreak(days map[string]bool) (int, string) {
	keys := sortedKeys(days)
	if len(keys) == 0 {
		return 0, ""
	}
	streak, start := 1, keys[len(keys)-1]
	for i := len(keys) - 2; i >= 0; i-- {
		if addDays(keys[i], 1) != start {
			break
		}
		streak++
		start = keys[i]
	}
	return streak, start
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// splitAvg 按指标 (>0.5 / ≤0.5) 分组求结果均值
func splitAvg(x, y []float64) (with, without float64) {
	var w, wo []float64
	for i := range x {
		if x[i] > 0.5 {
			w = append(w, y[i])
		} else {
			wo = append(wo, y[i])
		}
	}
	return mathx.Mean(w), mathx.Mean(wo)
}

// mealPrepSeries 有支出的周：x=该周日是否备餐，y=该周支出
func mealPrepSeries(weeklySpend map[string]float64, prepWeeks map[string]bool) (weeks []string, x, y []float64) {
	union := make(map[string]bool, len(weeklySpend)+len(prepWeeks))
	for k := range weeklySpend {
		union[k] = true
	}
	for k := range prepWeeks {
		union[k] = true
	}
	weeks = sortedKeys(union)
	for _, w := range weeks {
		spend, ok := weeklySpend[w]
		if !ok {
			continue
		}
		if prepWeeks[w] {
			x = append(x, 1)
		} else {
			x = append(x, 0)
		}
		y = append(y, spend)
	}
	return weeks, x, y
}

// Correlations 三组指标与结果的相关性；仅输出 |r| ≥ 0.5 的
func (s *PatternService) Correlations(ctx context.Context, userID string, lookbackDays int) ([]CorrelationInsight, error) {
	start, end := s.window(lookbackDays)
	events, scores, err := s.load(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return detectCorrelations(events, scores), nil
}

func detectCorrelations(events []schema.Event, scores []schema.DailyScore) []CorrelationInsight {
	lateEating := make(map[string]bool)
	moodByWeek := make(map[string][]float64)
	mondayWorkouts := make(map[string]bool)
	weeklySpend := make(map[string]float64)
	prepWeeks := make(map[string]bool)

	for i := range events {
		ev := &events[i]
		ts := ev.Time()
		day, week := ev.Day(), weekKey(ev)
		amount := ev.AmountOr(0)
		switch ev.Type() {
		case schema.EventTypeFood:
			if ts.Hour() >= 21 {
				lateEating[day] = true
			}
		case schema.EventTypeMood:
			moodByWeek[week] = append(moodByWeek[week], amount)
		case schema.EventTypeMovement:
			if ts.Weekday() == time.Monday {
				mondayWorkouts[week] = true
			}
		case schema.EventTypeSpending:
			weeklySpend[week] += math.Abs(amount)
		}
		if isMealPrep(ev) && ts.Weekday() == time.Sunday {
			prepWeeks[week] = true
		}
	}

	wellnessByDay := make(map[string]float64, len(scores))
	for _, sc := range scores {
		wellnessByDay[sc.Date] = sc.WellnessScore
	}

	insights := make([]CorrelationInsight, 0, 3)

	// 深夜进食 → 次日健康分
	var xLate, yNext []float64
	for _, day := range sortedKeys(wellnessByDay) {
		next, ok := wellnessByDay[addDays(day, 1)]
		if !ok {
			continue
		}
		if lateEating[day] {
			xLate = append(xLate, 1)
		} else {
			xLate = append(xLate, 0)
		}
		yNext = append(yNext, next)
	}
	if r := mathx.Pearson(xLate, yNext); math.Abs(r) >= correlationThreshold && len(xLate) > 0 {
		with, without := splitAvg(xLate, yNext)
		impact := mathx.Round2(mathx.Round2(with) - mathx.Round2(without))
		verb := "rises"
		if impact < 0 {
			verb = "drops"
		}
		insights = append(insights, CorrelationInsight{
			Pattern:           "Late-night eating (after 9pm)",
			Frequency:         len(lateEating),
			ImpactMetric:      "wellness_score",
			ImpactValue:       impact,
			ImpactDescription: fmt.Sprintf("Wellness %s %d pts next day", verb, absInt(int(impact))),
			Confidence:        mathx.Round2(math.Abs(r)),
			Recommendation:    "Move dinner to 7–8pm window",
		})
	}

	// 周一未运动 → 当周情绪
	weekSet := make(map[string]bool, len(moodByWeek)+len(mondayWorkouts))
	for k := range moodByWeek {
		weekSet[k] = true
	}
	for k := range mondayWorkouts {
		weekSet[k] = true
	}
	var xMonday, yMood []float64
	for _, week := range sortedKeys(weekSet) {
		moods := moodByWeek[week]
		if len(moods) == 0 {
			continue
		}
		if mondayWorkouts[week] {
			xMonday = append(xMonday, 1)
		} else {
			xMonday = append(xMonday, 0)
		}
		yMood = append(yMood, mathx.Mean(moods))
	}
	if r := mathx.Pearson(xMonday, yMood); math.Abs(r) >= correlationThreshold && len(xMonday) > 0 {
		with, without := splitAvg(xMonday, yMood)
		change := 0.0
		if with != 0 {
			change = mathx.Round((without-with)/with*100, 1)
		}
		skipped := 0
		for _, v := range xMonday {
			if v <= 0.5 {
				skipped++
			}
		}
		insights = append(insights, CorrelationInsight{
			Pattern:           "Skipping workouts on Mondays",
			Frequency:         skipped,
			ImpactMetric:      "mood_score",
			ImpactValue:       change,
			ImpactDescription: fmt.Sprintf("Mood dips %.1f%% that week", math.Abs(change)),
			Confidence:        mathx.Round2(math.Abs(r)),
			Recommendation:    "Schedule a short Monday workout to stabilize mood",
		})
	}

	// 周日备餐 → 当周支出
	_, xPrep, ySpend := mealPrepSeries(weeklySpend, prepWeeks)
	if r := mathx.Pearson(xPrep, ySpend); math.Abs(r) >= correlationThreshold && len(xPrep) > 0 {
		with, without := splitAvg(xPrep, ySpend)
		savings := mathx.Round2(without - with)
		insights = append(insights, CorrelationInsight{
			Pattern:           "Meal prep Sundays",
			Frequency:         int(mathx.Sum(xPrep)),
			ImpactMetric:      "spending",
			ImpactValue:       savings,
			ImpactDescription: fmt.Sprintf("Save $%.0f/week", math.Abs(savings)),
			Confidence:        mathx.Round2(math.Abs(r)),
			Recommendation:    "Plan two batch meals on Sunday afternoon",
		})
	}

	sort.SliceStable(insights, func(i, j int) bool {
		return math.Abs(insights[i].ImpactValue) > math.Abs(insights[j].ImpactValue)
	})
	return insights
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// 负面模式名关键字
const (
	patternOverspending = "overspending"
	patternSkipped      = "skipped"
	patternPoorFood     = "poor food"
	patternLowMood      = "low mood"
)

// Triggers 针对负面模式，按时段 / 地点 / 情绪 / 社交场景交叉统计
func (s *PatternService) Triggers(ctx context.Context, userID, negativePattern string, lookbackDays int) (*TriggerReport, error) {
	start, end := s.window(lookbackDays)
	events, err := loadEvents(ctx, s.events, userID, start, end)
	if err != nil {
		return nil, err
	}
	return identifyTriggers(events, negativePattern, start, end), nil
}

func selectTargets(events []schema.Event, pattern, start, end string) []schema.Event {
	switch {
	case strings.Contains(pattern, patternOverspending):
		var amounts []float64
		for i := range events {
			if events[i].Type() == schema.EventTypeSpending {
				amounts = append(amounts, math.Abs(events[i].AmountOr(0)))
			}
		}
		threshold := mathx.Mean(amounts) * 1.2
		var out []schema.Event
		for i := range events {
			ev := &events[i]
			if ev.Type() != schema.EventTypeSpending || math.Abs(ev.AmountOr(0)) < threshold {
				continue
			}
			if containsAny(ev.Category, "food", "grocer", "restaurant") || containsAny(ev.Metadata.Category, "food", "grocer", "restaurant") {
				out = append(out, *ev)
			}
		}
		return out

	case strings.Contains(pattern, patternSkipped):
		byDay := make(map[string][]schema.Event)
		for i := range events {
			byDay[events[i].Day()] = append(byDay[events[i].Day()], events[i])
		}
		var out []schema.Event
		for _, day := range daysBetween(start, end) {
			rows := byDay[day]
			moved := false
			for i := range rows {
				if rows[i].Type() == schema.EventTypeMovement {
					moved = true
					break
				}
			}
			if !moved {
				out = append(out, rows...)
			}
		}
		return out

	case strings.Contains(pattern, patternPoorFood):
		var out []schema.Event
		for i := range events {
			q := events[i].Metadata.NutritionQualityScore
			if events[i].Type() == schema.EventTypeFood && q != nil && *q <= 4 {
				out = append(out, events[i])
			}
		}
		return out

	case strings.Contains(pattern, patternLowMood):
		var out []schema.Event
		for i := range events {
			a := events[i].Amount
			if events[i].Type() == schema.EventTypeMood && a != nil && *a <= 4 {
				out = append(out, events[i])
			}
		}
		return out
	}
	return events
}

func timeOfDay(t time.Time) string {
	switch {
	case t.Hour() < 12:
		return "morning"
	case t.Hour() < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

func identifyTriggers(events []schema.Event, negativePattern, start, end string) *TriggerReport {
	pattern := strings.ToLower(negativePattern)
	targets := selectTargets(events, pattern, start, end)
	total := float64(max(1, len(targets)))

	type bucket struct {
		kind, value string
		amounts     []float64
	}
	var order []*bucket
	buckets := make(map[string]*bucket)
	add := func(kind, value string, amount float64) {
		key := kind + "::" + value
		b, ok := buckets[key]
		if !ok {
			b = &bucket{kind: kind, value: value}
			buckets[key] = b
			order = append(order, b)
		}
		b.amounts = append(b.amounts, amount)
	}

	for i := range targets {
		ev := &targets[i]
		amount := math.Abs(ev.AmountOr(0))
		ts := ev.Time()
		add("time", ts.Weekday().String()+" "+timeOfDay(ts), amount)
		if v := ev.Metadata.Location; v != "" {
			add("location", v, amount)
		}
		if v := ev.Metadata.Mood; v != "" {
			add("mood", v, amount)
		}
		if v := ev.Metadata.SocialContext; v != "" {
			add("social", v, amount)
		}
	}

	metric := "avg_impact"
	if strings.Contains(pattern, patternOverspending) {
		metric = "avg_overspend"
	}
	triggers := make([]Trigger, 0, len(order))
	for _, b := range order {
		triggers = append(triggers, Trigger{
			Type:           b.kind,
			Value:          b.value,
			OccurrenceRate: mathx.Round2(float64(len(b.amounts)) / total),
			ImpactMetric:   metric,
			ImpactValue:    mathx.Round2(mathx.Mean(b.amounts)),
		})
	}
	sort.SliceStable(triggers, func(i, j int) bool { return triggers[i].OccurrenceRate > triggers[j].OccurrenceRate })

	var recs []string
	switch {
	case strings.Contains(pattern, patternOverspending):
		recs = []string{"Plan Friday meals ahead", "Set a budget for evening outings", "Keep healthy snacks ready to avoid impulse buys"}
	case strings.Contains(pattern, patternSkipped):
		recs = []string{"Schedule workouts earlier in the day", "Lay out gear the night before", "Use a buddy system for accountability"}
	case strings.Contains(pattern, patternPoorFood):
		recs = []string{"Keep healthy snacks prepped", "Swap fast food with simple home meals"}
	default:
		recs = []string{"Plan a gentle reset routine", "Check in with mood before decisions"}
	}
	return &TriggerReport{NegativePattern: negativePattern, Triggers: triggers, Recommendations: recs}
}

// wellnessImprovement 最近 7 条评分相对之前 7 条的健康分提升；无提升时 ok=false
func wellnessImprovement(scores []schema.DailyScore) (pct int, ok bool) {
	n := len(scores)
	if n < 8 {
		return 0, false
	}
	recent := scores[n-7:]
	previous := scores[max(0, n-14) : n-7]
	var r, p []float64
	for _, sc := range recent {
		r = append(r, sc.WellnessScore)
	}
	for _, sc := range previous {
		p = append(p, sc.WellnessScore)
	}
	recentAvg, prevAvg := mathx.Mean(r), mathx.Mean(p)
	if prevAvg <= 0 || recentAvg <= prevAvg {
		return 0, false
	}
	return mathx.RoundInt((recentAvg - prevAvg) / prevAvg * 100), true
}

var severityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// Notifications 最近 14 天的洞察通知，按严重程度排序
func (s *PatternService) Notifications(ctx context.Context, userID string) ([]Notification, error) {
	start, end := s.window(14)
	events, scores, err := s.load(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return insightNotifications(events, scores), nil
}

func insightNotifications(events []schema.Event, scores []schema.DailyScore) []Notification {
	weekendSpend := make(map[string]float64)
	dailySpend := make(map[string]float64)
	movementDays := make(map[string]bool)

	for i := range events {
		ev := &events[i]
		switch ev.Type() {
		case schema.EventTypeSpending:
			amount := math.Abs(ev.AmountOr(0))
			dailySpend[ev.Day()] += amount
			if wd := ev.Time().Weekday(); wd == time.Saturday || wd == time.Sunday {
				weekendSpend[weekKey(ev)] += amount
			}
		case schema.EventTypeMovement:
			movementDays[ev.Day()] = true
		}
	}

	out := make([]Notification, 0, 3)

	if weeks := sortedKeys(weekendSpend); len(weeks) >= 2 {
		last, prev := weekendSpend[weeks[len(weeks)-1]], weekendSpend[weeks[len(weeks)-2]]
		if prev > 0 {
			change := (last - prev) / prev
			if change >= 0.2 {
				severity := "medium"
				if change >= 0.35 {
					severity = "high"
				}
				out = append(out, Notification{
					Type:     "spending",
					Title:    "Weekend spending up",
					Message:  fmt.Sprintf("Weekend spending up %d%% ($%.0f)", mathx.RoundInt(change*100), last),
					Severity: severity,
					Action:   "Review spending",
					Link:     "/analytics",
				})
			}
		}
	}

	if days := sortedKeys(dailySpend); len(days) > 0 {
		total := 0.0
		for _, d := range days {
			total += dailySpend[d]
		}
		avg := total / float64(len(days))
		latestDay := days[len(days)-1]
		latest := dailySpend[latestDay]
		if avg > 0 && latest >= avg*1.4 {
			out = append(out, Notification{
				Type:     "spending",
				Title:    "Daily spend spike",
				Message:  fmt.Sprintf("Spending hit $%.0f on %s", latest, latestDay),
				Severity: "medium",
				Action:   "Set a cap",
				Link:     "/settings/profile",
			})
		}
	}

	if streak, _ := dayStreak(movementDays); streak >= 3 {
		if pct, ok := wellnessImprovement(scores); ok {
			out = append(out, Notification{
				Type:     "movement",
				Title:    "Walking streak improving mood",
				Message:  fmt.Sprintf("%d-day streak with wellness up %d%%", streak, pct),
				Severity: "low",
				Action:   "Keep it going",
				Link:     "/insights",
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return severityRank[out[i].Severity] < severityRank[out[j].Severity] })
	return out
}

// PositivePatterns 备餐省钱与连续运动两类正向模式，按连续长度排序
func (s *PatternService) PositivePatterns(ctx context.Context, userID string, days int) ([]PositivePattern, error) {
	start, end := s.window(days)
	events, scores, err := s.load(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	return positivePatterns(events, scores), nil
}

func positivePatterns(events []schema.Event, scores []schema.DailyScore) []PositivePattern {
	weeklySpend := make(map[string]float64)
	prepWeeks := make(map[string]bool)
	movementDays := make(map[string]bool)

	for i := range events {
		ev := &events[i]
		week := weekKey(ev)
		switch ev.Type() {
		case schema.EventTypeSpending:
			weeklySpend[week] += math.Abs(ev.AmountOr(0))
		case schema.EventTypeMovement:
			movementDays[ev.Day()] = true
		}
		if isMealPrep(ev) && ev.Time().Weekday() == time.Sunday {
			prepWeeks[week] = true
		}
	}

	out := make([]PositivePattern, 0, 2)

	weeks, xPrep, ySpend := mealPrepSeries(weeklySpend, prepWeeks)
	if len(xPrep) > 0 {
		with, without := splitAvg(xPrep, ySpend)
		savings := mathx.Round2(without - with)
		if savings > 0 && mathx.Sum(xPrep) >= 2 {
			streak, started := 0, ""
			for i := len(weeks) - 1; i >= 0 && prepWeeks[weeks[i]]; i-- {
				streak++
				started = weeks[i]
			}
			if started == "" {
				started = weeks[len(weeks)-1]
			}
			out = append(out, PositivePattern{
				Pattern:       "Sunday meal prep",
				StartedDate:   started,
				Improvement:   fmt.Sprintf("Save $%.0f/week", math.Abs(savings)),
				Streak:        streak,
				Message:       "Meal prep weeks reduced food spending.",
				Encouragement: "Keep the prep streak alive.",
			})
		}
	}

	if streak, started := dayStreak(movementDays); streak >= 3 {
		if pct, ok := wellnessImprovement(scores); ok {
			out = append(out, PositivePattern{
				Pattern:       "Daily movement streak",
				StartedDate:   started,
				Improvement:   fmt.Sprintf("Wellness +%d%%", pct),
				Streak:        streak,
				Message:       fmt.Sprintf("Movement streak lifted wellness by %d%%.", pct),
				Encouragement: "Stay steady and keep moving.",
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Streak > out[j].Streak })
	return out
}
