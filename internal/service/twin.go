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

// BalancePoint 余额轨迹点，带不确定性区间
type BalancePoint struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
}

// WalletTrajectories 当前 / 采纳替换建议两条轨迹
type WalletTrajectories struct {
	Current   []BalancePoint `json:"current"`
	WithSwaps []BalancePoint `json:"with_swaps"`
}

// RecurringExpense 识别出的周期性支出
type RecurringExpense struct {
	Name        string  `json:"name"`
	Amount      float64 `json:"amount"`
	CadenceDays int     `json:"cadence_days"`
	NextDue     string  `json:"next_due"`
}

// WalletProjection 短期钱包预测
type WalletProjection struct {
	CurrentBalance    float64            `json:"current_balance"`
	Trajectories      WalletTrajectories `json:"trajectories"`
	RecurringExpenses []RecurringExpense `json:"recurring_expenses"`
	SavingsPotential  float64            `json:"savings_potential"`
}

// MonthlyProjection 长期预测的月度拆分
type MonthlyProjection struct {
	Month             string  `json:"month"`
	ProjectedIncome   float64 `json:"projected_income"`
	ProjectedSpend    float64 `json:"projected_spend"`
	Net               float64 `json:"net"`
	CumulativeBalance float64 `json:"cumulative_balance"`
}

// CumulativeSavings 整个周期的累计净额
type CumulativeSavings struct {
	Current   float64 `json:"current"`
	WithSwaps float64 `json:"with_swaps"`
}

// MajorExpense 周期内到期的大额周期性支出
type MajorExpense struct {
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
	NextDue string  `json:"next_due"`
}

// WalletLongTermProjection 长期（按月）钱包预测
type WalletLongTermProjection struct {
	CurrentBalance    float64             `json:"current_balance"`
	Trajectories      WalletTrajectories  `json:"trajectories"`
	MonthlyBreakdown  []MonthlyProjection `json:"monthly_breakdown"`
	CumulativeSavings CumulativeSavings   `json:"cumulative_savings"`
	MajorExpenses     []MajorExpense      `json:"major_expenses"`
}

// WellnessPoint 健康分轨迹点
type WellnessPoint struct {
	Date     string  `json:"date"`
	Score    float64 `json:"score"`
	Sleep    float64 `json:"sleep"`
	Diet     float64 `json:"diet"`
	Movement float64 `json:"movement"`
	Stress   float64 `json:"stress"`
}

// WellnessTrajectories 当前 / 改善后
type WellnessTrajectories struct {
	Current  []WellnessPoint `json:"current"`
	Improved []WellnessPoint `json:"improved"`
}

// ProjectionFactor 预测影响因素
type ProjectionFactor struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"`
	Detail string  `json:"detail"`
}

// WellnessProjection 健康预测
type WellnessProjection struct {
	CurrentScore       float64              `json:"current_score"`
	ProjectedScores    []WellnessPoint      `json:"projected_scores"`
	Trajectories       WellnessTrajectories `json:"trajectories"`
	FactorsImpacting   []ProjectionFactor   `json:"factors_impacting"`
	RecommendedChanges []string             `json:"recommended_changes"`
}

// FootprintPoint 环境足迹轨迹点
type FootprintPoint struct {
	Date  string  `json:"date"`
	CO2e  float64 `json:"co2e"`
	Water float64 `json:"water"`
	Waste float64 `json:"waste"`
}

// FootprintTrajectories 当前 / 绿色替换
type FootprintTrajectories struct {
	Current    []FootprintPoint `json:"current"`
	GreenSwaps []FootprintPoint `json:"green_swaps"`
}

// SustainabilityProjection 可持续性预测
type SustainabilityProjection struct {
	CurrentFootprint     float64               `json:"current_footprint"`
	ProjectedFootprint   float64               `json:"projected_footprint"`
	Trajectories         FootprintTrajectories `json:"trajectories"`
	ImprovementPotential float64               `json:"improvement_potential"`
	TopImpactAreas       []ProjectionFactor    `json:"top_impact_areas"`
}

// 情景名
const (
	ScenarioCurrent   = "current"
	ScenarioWithSwaps = "with_swaps"
	ScenarioCustom    = "custom"
)

// 情景对比指标
const (
	TwinMetricWallet         = "wallet"
	TwinMetricWellness       = "wellness"
	TwinMetricSustainability = "sustainability"
)

// Scenario 情景；custom 情景携带 daily_spending / sleep_hours / exercise_days / meal_quality
type Scenario struct {
	Name   string             `json:"name"`
	Inputs map[string]float64 `json:"inputs,omitempty"`
}

// ScenarioResult 单个情景的序列
type ScenarioResult struct {
	Name       string        `json:"name"`
	Data       []SeriesPoint `json:"data"`
	FinalValue float64       `json:"final_value"`
}

// DivergencePoint 情景间差距最大的日期
type DivergencePoint struct {
	Date   string  `json:"date"`
	Impact float64 `json:"impact"`
}

// ScenarioComparison 情景对比结果
type ScenarioComparison struct {
	Scenarios        []ScenarioResult  `json:"scenarios"`
	DivergencePoints []DivergencePoint `json:"divergence_points"`
}

// TwinProjections 一次性生成的全部预测
type TwinProjections struct {
	Wallet         *WalletProjection         `json:"wallet"`
	WalletLongTerm *WalletLongTermProjection `json:"wallet_longterm"`
	Wellness       *WellnessProjection       `json:"wellness"`
	Sustainability *SustainabilityProjection `json:"sustainability"`
}

// TwinService 数字孪生：基于历史日均速率外推未来轨迹
type TwinService struct {
	events EventRepository
	now    func() time.Time
}

// NewTwinService 创建预测服务
func NewTwinService(events EventRepository) *TwinService {
	return &TwinService{events: events, now: time.Now}
}

type recurringEntry struct {
	name    string
	amounts []float64
	last    string
	cadence int
	nextDue string
}

// walletHistory 钱包预测所需的历史折叠结果
type walletHistory struct {
	balance      float64
	netByDay     map[string]float64
	incomeByDay  map[string]float64
	spendByDay   map[string]float64
	savingsTotal float64
	recurring    []*recurringEntry
}

func foldWallet(events []schema.Event) walletHistory {
	h := walletHistory{
		netByDay:    make(map[string]float64),
		incomeByDay: make(map[string]float64),
		spendByDay:  make(map[string]float64),
	}
	var balance *float64
	var balanceTs int64
	byKey := make(map[string]*recurringEntry)

	for i := range events {
		ev := &events[i]
		day := ev.Day()
		amount := ev.AmountOr(0)
		isSpending := ev.Type() == schema.EventTypeSpending

		if b := ev.Metadata.CurrentBalance; b != nil {
			if balance == nil || ev.Timestamp > balanceTs {
				balance = b
				balanceTs = ev.Timestamp
			}
		}

		if isSpending {
			h.netByDay[day] -= math.Abs(amount)
			h.spendByDay[day] += math.Abs(amount)
		} else if ev.Cat() == schema.CategoryFinance {
			h.netByDay[day] += amount
			h.incomeByDay[day] += amount
		}

		savings := ev.Metadata.MoneySavedViaSwaps
		if savings == nil {
			savings = ev.Metadata.SwapSavings
		}
		if savings != nil {
			h.savingsTotal += math.Max(0, *savings)
		}

		if isSpending && ev.Metadata.Recurring {
			key := recurringKey(ev)
			cadence := 30
			if d := ev.Metadata.RecurringIntervalDays; d != nil && *d != 0 {
				cadence = int(*d)
			}
			entry, ok := byKey[key]
			if !ok {
				entry = &recurringEntry{name: key, last: day, cadence: cadence, nextDue: ev.Metadata.NextDueDate}
				byKey[key] = entry
				h.recurring = append(h.recurring, entry)
			}
			entry.amounts = append(entry.amounts, math.Abs(amount))
			if day > entry.last {
				entry.last = day
			}
			entry.cadence = cadence
		}
	}

	if balance != nil {
		h.balance = *balance
	} else {
		for _, v := range h.netByDay {
			h.balance += v
		}
	}
	return h
}

func recurringKey(ev *schema.Event) string {
	switch {
	case ev.Metadata.Merchant != "":
		return ev.Metadata.Merchant
	case ev.Title != "":
		return ev.Title
	case ev.Metadata.Category != "":
		return ev.Metadata.Category
	default:
		return "Recurring"
	}
}

// dueDate 下次到期：显式 next_due_date 优先，否则最近一次 + 周期
func (e *recurringEntry) dueDate() (string, int) {
	cadence := max(1, e.cadence)
	if e.nextDue != "" {
		return e.nextDue, cadence
	}
	return addDays(e.last, cadence), cadence
}

// lookbackSeries 以 today 结尾的 n 天逐日取值，缺失为 0
func lookbackSeries(values map[string]float64, today string, n int) []float64 {
	start := addDays(today, -(n - 1))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = values[addDays(start, i)]
	}
	return out
}

func balancePoint(date string, balance, interval float64) BalancePoint {
	return BalancePoint{
		Date:    date,
		Balance: mathx.Round2(balance),
		Lower:   mathx.Round2(balance - interval),
		Upper:   mathx.Round2(balance + interval),
	}
}

// WalletShortTerm 1~90 天的逐日余额预测
func (s *TwinService) WalletShortTerm(ctx context.Context, userID string, days int) (*WalletProjection, error) {
	today := todayKey(s.now)
	events, err := loadEvents(ctx, s.events, userID, addDays(today, -90), today)
	if err != nil {
		return nil, err
	}
	return walletShortTerm(events, today, days), nil
}

func walletShortTerm(events []schema.Event, today string, days int) *WalletProjection {
	horizon := min(90, max(1, days))
	h := foldWallet(events)

	lookback := max(1, min(30, len(h.netByDay)))
	nets := lookbackSeries(h.netByDay, today, lookback)
	avgNet := mathx.Mean(nets)
	savingsPerDay := h.savingsTotal / float64(lookback)
	std := mathx.PopStdDev(nets)

	traj := WalletTrajectories{
		Current:   make([]BalancePoint, 0, horizon+1),
		WithSwaps: make([]BalancePoint, 0, horizon+1),
	}
	for t := 0; t <= horizon; t++ {
		date := addDays(today, t)
		interval := std * math.Sqrt(float64(max(1, t)))
		traj.Current = append(traj.Current, balancePoint(date, h.balance+avgNet*float64(t), interval))
		traj.WithSwaps = append(traj.WithSwaps, balancePoint(date, h.balance+(avgNet+savingsPerDay)*float64(t), interval))
	}

	expenses := make([]RecurringExpense, 0, len(h.recurring))
	for _, e := range h.recurring {
		due, cadence := e.dueDate()
		expenses = append(expenses, RecurringExpense{
			Name:        e.name,
			Amount:      mathx.Round2(mathx.Mean(e.amounts)),
			CadenceDays: cadence,
			NextDue:     due,
		})
	}
	sort.SliceStable(expenses, func(i, j int) bool { return expenses[i].NextDue < expenses[j].NextDue })

	return &WalletProjection{
		CurrentBalance:    mathx.Round2(h.balance),
		Trajectories:      traj,
		RecurringExpenses: expenses,
		SavingsPotential:  mathx.Round2(savingsPerDay * float64(horizon)),
	}
}

// WalletLongTerm 3~6 个月的按月预测
func (s *TwinService) WalletLongTerm(ctx context.Context, userID string, months int) (*WalletLongTermProjection, error) {
	today := todayKey(s.now)
	events, err := loadEvents(ctx, s.events, userID, addDays(today, -180), today)
	if err != nil {
		return nil, err
	}
	return walletLongTerm(events, today, months), nil
}

func walletLongTerm(events []schema.Event, today string, months int) *WalletLongTermProjection {
	horizon := min(6, max(3, months))
	h := foldWallet(events)

	lookback := max(1, min(90, len(h.netByDay)))
	nets := lookbackSeries(h.netByDay, today, lookback)
	avgNet := mathx.Mean(nets)
	avgIncome := mathx.Mean(lookbackSeries(h.incomeByDay, today, lookback))
	avgSpend := mathx.Mean(lookbackSeries(h.spendByDay, today, lookback))
	savingsPerDay := h.savingsTotal / float64(lookback)
	std := mathx.PopStdDev(nets)

	todayT := mustDay(today)
	traj := WalletTrajectories{}
	breakdown := make([]MonthlyProjection, 0, horizon)
	cumulative := h.balance
	for k := 0; k <= horizon; k++ {
		date := addMonths(todayT, k)
		t := float64(30 * k)
		interval := std * math.Sqrt(math.Max(1, t))
		key := dayKey(date)
		traj.Current = append(traj.Current, balancePoint(key, h.balance+avgNet*t, interval))
		traj.WithSwaps = append(traj.WithSwaps, balancePoint(key, h.balance+(avgNet+savingsPerDay)*t, interval))

		if k > 0 {
			income, spend := avgIncome*30, avgSpend*30
			net := income - spend
			cumulative += net
			breakdown = append(breakdown, MonthlyProjection{
				Month:             date.Format("2006-01"),
				ProjectedIncome:   mathx.Round2(income),
				ProjectedSpend:    mathx.Round2(spend),
				Net:               mathx.Round2(net),
				CumulativeBalance: mathx.Round2(cumulative),
			})
		}
	}

	horizonDate := dayKey(addMonths(todayT, horizon))
	major := make([]MajorExpense, 0)
	for _, e := range h.recurring {
		due, _ := e.dueDate()
		if due > horizonDate {
			continue
		}
		major = append(major, MajorExpense{Name: e.name, Amount: mathx.Round2(mathx.Mean(e.amounts)), NextDue: due})
	}
	sort.SliceStable(major, func(i, j int) bool { return major[i].Amount > major[j].Amount })
	if len(major) > 6 {
		major = major[:6]
	}

	totalDays := float64(horizon * 30)
	return &WalletLongTermProjection{
		CurrentBalance:   mathx.Round2(h.balance),
		Trajectories:     traj,
		MonthlyBreakdown: breakdown,
		CumulativeSavings: CumulativeSavings{
			Current:   mathx.Round2(avgNet * totalDays),
			WithSwaps: mathx.Round2((avgNet + savingsPerDay) * totalDays),
		},
		MajorExpenses: major,
	}
}

type wellnessDay struct {
	sleepHours      float64
	movementMinutes float64
	diet            []float64
	mood            []float64
}

// 健康分权重与改善目标
const (
	wellnessWeightSleep    = 0.3
	wellnessWeightMovement = 0.3
	wellnessWeightDiet     = 0.2
	wellnessWeightStress   = 0.2
)

func weightedWellness(sleep, movement, diet, stress float64) float64 {
	return sleep*wellnessWeightSleep + movement*wellnessWeightMovement + diet*wellnessWeightDiet + stress*wellnessWeightStress
}

func improveTarget(base, ceiling, rate float64) float64 {
	return math.Min(100, base+math.Max(5, ceiling-base)*rate)
}

// Wellness 30~90 天健康分预测
func (s *TwinService) Wellness(ctx context.Context, userID string, days int) (*WellnessProjection, error) {
	today := todayKey(s.now)
	events, err := loadEvents(ctx, s.events, userID, addDays(today, -90), today)
	if err != nil {
		return nil, err
	}
	return projectWellness(events, today, days), nil
}

func projectWellness(events []schema.Event, today string, days int) *WellnessProjection {
	horizon := min(90, max(30, days))
	const lookback = 14
	start := addDays(today, -(lookback - 1))

	daily := make(map[string]*wellnessDay, lookback)
	for _, d := range daysBetween(start, today) {
		daily[d] = &wellnessDay{}
	}
	for i := range events {
		ev := &events[i]
		day, ok := daily[ev.Day()]
		if !ok {
			continue
		}
		amount := ev.AmountOr(0)
		switch ev.Type() {
		case schema.EventTypeSleep:
			hours := amount
			if hours == 0 {
				hours = orFloat(ev.Metadata.Hours, 0)
			}
			day.sleepHours += math.Max(0, hours)
		case schema.EventTypeMovement:
			minutes := orFloat(ev.Metadata.DurationMinutes, 0)
			if minutes == 0 {
				minutes = amount
			}
			day.movementMinutes += math.Max(0, minutes)
		case schema.EventTypeFood:
			quality := ev.Metadata.NutritionQualityScore
			if quality == nil {
				quality = ev.Scores.WellnessImpact
			}
			if quality != nil {
				q := *quality
				if q <= 10 {
					day.diet = append(day.diet, q*10)
				} else {
					day.diet = append(day.diet, (q+100)/2)
				}
			}
		case schema.EventTypeMood:
			if ev.Amount != nil {
				day.mood = append(day.mood, mathx.Clamp100(*ev.Amount*10))
			}
		}
	}

	var sleepScores, movementScores, dietScores, stressScores []float64
	for _, d := range daysBetween(start, today) {
		day := daily[d]
		sleep := 100 - math.Min(50, math.Abs(day.sleepHours-7.5)*12)
		movement := math.Min(100, day.movementMinutes/120*100)
		diet := mathx.Mean(day.diet)
		mood := 50.0
		if len(day.mood) > 0 {
			mood = mathx.Mean(day.mood)
		}
		sleepScores = append(sleepScores, mathx.Clamp100(sleep))
		movementScores = append(movementScores, mathx.Clamp100(movement))
		dietScores = append(dietScores, mathx.Clamp100(diet))
		stressScores = append(stressScores, mathx.Clamp100(mood))
	}

	sleepBase := mathx.Mean(sleepScores)
	movementBase := mathx.Mean(movementScores)
	dietBase := mathx.Mean(dietScores)
	stressBase := mathx.Mean(stressScores)
	current := weightedWellness(sleepBase, movementBase, dietBase, stressBase)

	sleepT := improveTarget(sleepBase, 80, 0.5)
	movementT := improveTarget(movementBase, 80, 0.6)
	dietT := improveTarget(dietBase, 80, 0.5)
	stressT := improveTarget(stressBase, 75, 0.5)
	improved := weightedWellness(sleepT, movementT, dietT, stressT)

	lerp := func(from, to, ratio float64) float64 { return mathx.Round2(from + (to-from)*ratio) }
	traj := WellnessTrajectories{}
	for t := 0; t <= horizon; t++ {
		ratio := float64(t) / float64(horizon)
		date := addDays(today, t)
		traj.Current = append(traj.Current, WellnessPoint{
			Date:     date,
			Score:    mathx.Round2(current),
			Sleep:    mathx.Round2(sleepBase),
			Diet:     mathx.Round2(dietBase),
			Movement: mathx.Round2(movementBase),
			Stress:   mathx.Round2(stressBase),
		})
		traj.Improved = append(traj.Improved, WellnessPoint{
			Date:     date,
			Score:    lerp(current, improved, ratio),
			Sleep:    lerp(sleepBase, sleepT, ratio),
			Diet:     lerp(dietBase, dietT, ratio),
			Movement: lerp(movementBase, movementT, ratio),
			Stress:   lerp(stressBase, stressT, ratio),
		})
	}

	factors := make([]ProjectionFactor, 0, 4)
	recs := make([]string, 0, 4)
	if sleepBase < 75 {
		factors = append(factors, ProjectionFactor{"Sleep consistency", mathx.Round2(75 - sleepBase), "Below 7-8h target"})
		recs = append(recs, "Aim for a consistent 7-8h sleep window.")
	}
	if movementBase < 70 {
		factors = append(factors, ProjectionFactor{"Movement minutes", mathx.Round2(70 - movementBase), "Below 120 min/day"})
		recs = append(recs, "Add 20-30 minutes of movement most days.")
	}
	if dietBase < 70 {
		factors = append(factors, ProjectionFactor{"Diet quality", mathx.Round2(70 - dietBase), "Low nutrition scores"})
		recs = append(recs, "Increase meals with whole foods or vegetables.")
	}
	if stressBase < 65 {
		factors = append(factors, ProjectionFactor{"Stress load", mathx.Round2(65 - stressBase), "Low mood logs"})
		recs = append(recs, "Schedule a daily decompression ritual.")
	}
	sort.SliceStable(factors, func(i, j int) bool { return factors[i].Impact > factors[j].Impact })

	return &WellnessProjection{
		CurrentScore:       mathx.Round2(current),
		ProjectedScores:    traj.Current,
		Trajectories:       traj,
		FactorsImpacting:   factors,
		RecommendedChanges: recs,
	}
}

type footprint struct{ co2e, water, waste float64 }

func (f footprint) total() float64 { return f.co2e + f.water + f.waste }

var footprintMeat = []string{"beef", "pork", "lamb", "chicken", "turkey", "meat", "steak"}

// Sustainability 30~90 天环境足迹预测
func (s *TwinService) Sustainability(ctx context.Context, userID string, days int) (*SustainabilityProjection, error) {
	today := todayKey(s.now)
	events, err := loadEvents(ctx, s.events, userID, addDays(today, -90), today)
	if err != nil {
		return nil, err
	}
	return projectSustainability(events, today, days), nil
}

// eventFootprint 单事件的 co2e / 水 / 废弃物贡献；area 为空表示不计入
func eventFootprint(ev *schema.Event) (f footprint, area string, tag string) {
	m := ev.Metadata
	switch ev.Type() {
	case schema.EventTypeFood:
		switch {
		case m.HasAnyIngredient(footprintMeat...):
			return footprint{5, 4, 2}, "Food", "meat"
		case m.HasAnyIngredient(plantFoods...):
			return footprint{2, 2, 1}, "Food", "plant"
		default:
			score := m.SustainabilityScore
			if score == nil {
				score = ev.Scores.SustainabilityImpact
			}
			base := 3.5
			if score != nil {
				base = 5 - *score/20
			}
			return footprint{base, base * 0.8, base * 0.5}, "Food", ""
		}
	case schema.EventTypeMovement:
		mode := m.TypeLower()
		switch {
		case strings.Contains(mode, "car"), strings.Contains(mode, "drive"):
			return footprint{4, 1.2, 1}, "Transport", "car"
		case strings.Contains(mode, "walk"), strings.Contains(mode, "bike"):
			return footprint{0.5, 0.3, 0.2}, "Transport", "walk"
		default:
			return footprint{1.5, 0.6, 0.4}, "Transport", ""
		}
	case schema.EventTypeSpending:
		switch {
		case m.LocalPurchase:
			return footprint{1.2, 0.8, 0.6}, "Purchases", "local"
		case m.Shipped:
			return footprint{3.2, 1.6, 1.4}, "Purchases", "shipped"
		default:
			return footprint{2.2, 1.2, 1.0}, "Purchases", ""
		}
	}
	return footprint{}, "", ""
}

func projectSustainability(events []schema.Event, today string, days int) *SustainabilityProjection {
	horizon := min(90, max(30, days))
	historyStart := addDays(today, -90)

	daily := make(map[string]footprint)
	areas := []string{"Food", "Transport", "Purchases"}
	areaTotals := make(map[string]float64, len(areas))
	tags := make(map[string]int)

	for i := range events {
		ev := &events[i]
		day := ev.Day()
		if day < historyStart || day > today {
			continue
		}
		f, area, tag := eventFootprint(ev)
		if area == "" {
			continue
		}
		d := daily[day]
		d.co2e += f.co2e
		d.water += f.water
		d.waste += f.waste
		daily[day] = d
		areaTotals[area] += f.total()
		if tag != "" {
			tags[tag]++
		}
	}

	const lookback = 30
	var co2e, water, waste []float64
	for _, d := range daysBetween(addDays(today, -(lookback-1)), today) {
		f := daily[d]
		co2e = append(co2e, f.co2e)
		water = append(water, f.water)
		waste = append(waste, f.waste)
	}
	co2eBase, waterBase, wasteBase := mathx.Mean(co2e), mathx.Mean(water), mathx.Mean(waste)
	currentFootprint := co2eBase + waterBase + wasteBase

	ratio := func(hit, other string) float64 {
		total := tags[hit] + tags[other]
		if total == 0 {
			return 0
		}
		return float64(tags[hit]) / float64(total)
	}
	factor := math.Min(0.4, 0.15+ratio("meat", "plant")*0.2+ratio("car", "walk")*0.2+ratio("shipped", "local")*0.15)

	traj := FootprintTrajectories{}
	for t := 0; t <= horizon; t++ {
		date := addDays(today, t)
		traj.Current = append(traj.Current, FootprintPoint{
			Date: date, CO2e: mathx.Round2(co2eBase), Water: mathx.Round2(waterBase), Waste: mathx.Round2(wasteBase),
		})
		traj.GreenSwaps = append(traj.GreenSwaps, FootprintPoint{
			Date:  date,
			CO2e:  mathx.Round2(co2eBase * (1 - factor)),
			Water: mathx.Round2(waterBase * (1 - factor)),
			Waste: mathx.Round2(wasteBase * (1 - factor)),
		})
	}

	grand := 0.0
	for _, a := range areas {
		grand += areaTotals[a]
	}
	if grand == 0 {
		grand = 1
	}
	top := make([]ProjectionFactor, 0, len(areas))
	for _, a := range areas {
		v := areaTotals[a]
		if v <= 0 {
			continue
		}
		top = append(top, ProjectionFactor{
			Name:   a,
			Impact: mathx.Round2(v / grand * 100),
			Detail: fmt.Sprintf("%.1f impact units", mathx.Round(v, 1)),
		})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Impact > top[j].Impact })

	return &SustainabilityProjection{
		CurrentFootprint:     mathx.Round2(currentFootprint),
		ProjectedFootprint:   mathx.Round2(currentFootprint * float64(horizon)),
		Trajectories:         traj,
		ImprovementPotential: mathx.Round2(factor * 100),
		TopImpactAreas:       top,
	}
}

// CompareScenarios 在同一指标下对比 current / with_swaps / custom 情景
func (s *TwinService) CompareScenarios(ctx context.Context, userID string, scenarios []Scenario, metric string, days int) (*ScenarioComparison, error) {
	metric = strings.ToLower(strings.TrimSpace(metric))
	if !inSet(metric, TwinMetricWallet, TwinMetricWellness, TwinMetricSustainability) {
		return nil, unsupported("metric", metric)
	}
	order := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		name := strings.ToLower(strings.TrimSpace(sc.Name))
		if name == "" {
			continue
		}
		if !inSet(name, ScenarioCurrent, ScenarioWithSwaps, ScenarioCustom) {
			return nil, unsupported("scenario", name)
		}
		order = append(order, name)
	}
	if len(order) == 0 {
		order = []string{ScenarioCurrent, ScenarioWithSwaps, ScenarioCustom}
	}

	horizon := max(1, days)
	today := todayKey(s.now)
	lookback := min(30, horizon)
	spendEvents, err := loadEvents(ctx, s.events, userID, addDays(today, -(lookback-1)), today, schema.EventTypeSpending)
	if err != nil {
		return nil, err
	}
	spendTotal := 0.0
	for i := range spendEvents {
		if spendEvents[i].Amount != nil {
			spendTotal += math.Abs(*spendEvents[i].Amount)
		}
	}
	baselineSpend := spendTotal / float64(lookback)
	inputs := customInputs(scenarios)

	var series map[string][]SeriesPoint
	switch metric {
	case TwinMetricWallet:
		base, err := s.WalletShortTerm(ctx, userID, horizon)
		if err != nil {
			return nil, err
		}
		series = walletScenarioSeries(base, inputs, baselineSpend)
	case TwinMetricWellness:
		base, err := s.Wellness(ctx, userID, horizon)
		if err != nil {
			return nil, err
		}
		series = wellnessScenarioSeries(base, inputs, baselineSpend)
	case TwinMetricSustainability:
		base, err := s.Sustainability(ctx, userID, horizon)
		if err != nil {
			return nil, err
		}
		series = sustainabilityScenarioSeries(base, inputs, baselineSpend)
	}
	return buildComparison(order, series), nil
}

func customInputs(scenarios []Scenario) map[string]float64 {
	for _, sc := range scenarios {
		if strings.EqualFold(strings.TrimSpace(sc.Name), ScenarioCustom) {
			if sc.Inputs == nil {
				return map[string]float64{}
			}
			return sc.Inputs
		}
	}
	return map[string]float64{}
}

func inputOr(inputs map[string]float64, key string, def float64) float64 {
	if v, ok := inputs[key]; ok {
		return v
	}
	return def
}

func walletScenarioSeries(base *WalletProjection, inputs map[string]float64, baselineSpend float64) map[string][]SeriesPoint {
	cur := base.Trajectories.Current
	swaps := base.Trajectories.WithSwaps
	horizon := max(1, len(cur)-1)
	start, end := 0.0, 0.0
	if len(cur) > 0 {
		start, end = cur[0].Balance, cur[len(cur)-1].Balance
	}
	dailyNet := (end - start) / float64(horizon)
	customNet := dailyNet + (baselineSpend - inputOr(inputs, "daily_spending", baselineSpend))

	out := map[string][]SeriesPoint{}
	for i, p := range cur {
		out[ScenarioCurrent] = append(out[ScenarioCurrent], SeriesPoint{Date: p.Date, Value: p.Balance})
		out[ScenarioCustom] = append(out[ScenarioCustom], SeriesPoint{Date: p.Date, Value: mathx.Round2(start + customNet*float64(i))})
	}
	for _, p := range swaps {
		out[ScenarioWithSwaps] = append(out[ScenarioWithSwaps], SeriesPoint{Date: p.Date, Value: p.Balance})
	}
	return out
}

func wellnessScenarioSeries(base *WellnessProjection, inputs map[string]float64, baselineSpend float64) map[string][]SeriesPoint {
	cur := base.Trajectories.Current
	improved := base.Trajectories.Improved
	horizon := max(1, len(cur)-1)
	baseStress, currentScore := 50.0, 0.0
	if len(cur) > 0 {
		baseStress, currentScore = cur[0].Stress, cur[0].Score
	}

	sleep := mathx.Clamp100(100 - math.Abs(inputOr(inputs, "sleep_hours", 7.5)-7.5)*12)
	minutes := inputOr(inputs, "exercise_days", 3) / 7 * 45
	movement := mathx.Clamp100(math.Min(100, minutes/120*100))
	diet := mathx.Clamp100(inputOr(inputs, "meal_quality", 6) * 10)
	spendPenalty := mathx.Clamp100(100 - math.Max(0, inputOr(inputs, "daily_spending", baselineSpend)-baselineSpend)*0.2)
	stress := mathx.Clamp100((baseStress + spendPenalty) / 2)
	custom := weightedWellness(sleep, movement, diet, stress)

	out := map[string][]SeriesPoint{}
	for i, p := range cur {
		out[ScenarioCurrent] = append(out[ScenarioCurrent], SeriesPoint{Date: p.Date, Value: p.Score})
		ratio := float64(i) / float64(horizon)
		out[ScenarioCustom] = append(out[ScenarioCustom], SeriesPoint{
			Date:  p.Date,
			Value: mathx.Round2(currentScore + (custom-currentScore)*ratio),
		})
	}
	for _, p := range improved {
		out[ScenarioWithSwaps] = append(out[ScenarioWithSwaps], SeriesPoint{Date: p.Date, Value: p.Score})
	}
	return out
}

func sustainabilityScenarioSeries(base *SustainabilityProjection, inputs map[string]float64, baselineSpend float64) map[string][]SeriesPoint {
	meal := 1 - (inputOr(inputs, "meal_quality", 6)-1)/9*0.2
	spend := 1 + (inputOr(inputs, "daily_spending", baselineSpend)-baselineSpend)/math.Max(50, baselineSpend)*0.15
	exercise := 1 - inputOr(inputs, "exercise_days", 3)/7*0.05
	factor := mathx.Clamp(meal*spend*exercise, 0.6, 1.4)

	total := func(p FootprintPoint) float64 { return p.CO2e + p.Water + p.Waste }
	out := map[string][]SeriesPoint{}
	for _, p := range base.Trajectories.Current {
		out[ScenarioCurrent] = append(out[ScenarioCurrent], SeriesPoint{Date: p.Date, Value: mathx.Round2(total(p))})
		out[ScenarioCustom] = append(out[ScenarioCustom], SeriesPoint{Date: p.Date, Value: mathx.Round2(total(p) * factor)})
	}
	for _, p := range base.Trajectories.GreenSwaps {
		out[ScenarioWithSwaps] = append(out[ScenarioWithSwaps], SeriesPoint{Date: p.Date, Value: mathx.Round2(total(p))})
	}
	return out
}

// buildComparison 按请求顺序组装情景，并找出差距最大的三个日期
func buildComparison(order []string, series map[string][]SeriesPoint) *ScenarioComparison {
	out := &ScenarioComparison{
		Scenarios:        make([]ScenarioResult, 0, len(order)),
		DivergencePoints: []DivergencePoint{},
	}
	all := make([][]SeriesPoint, 0, len(order))
	for _, name := range order {
		data := series[name]
		if data == nil {
			data = []SeriesPoint{}
		}
		final := 0.0
		if len(data) > 0 {
			final = data[len(data)-1].Value
		}
		out.Scenarios = append(out.Scenarios, ScenarioResult{Name: name, Data: data, FinalValue: mathx.Round2(final)})
		all = append(all, data)
	}
	out.DivergencePoints = divergencePoints(all)
	return out
}

func divergencePoints(all [][]SeriesPoint) []DivergencePoint {
	points := []DivergencePoint{}
	if len(all) == 0 || len(all[0]) == 0 {
		return points
	}
	length := -1
	for _, s := range all {
		if len(s) > 0 && (length < 0 || len(s) < length) {
			length = len(s)
		}
	}
	for i := 0; i < length; i++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, s := range all {
			if len(s) <= i {
				continue
			}
			lo = math.Min(lo, s[i].Value)
			hi = math.Max(hi, s[i].Value)
		}
		points = append(points, DivergencePoint{Date: all[0][i].Date, Impact: mathx.Round2(hi - lo)})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Impact > points[j].Impact })
	if len(points) > 3 {
		points = points[:3]
	}
	return points
}

// ProjectAll 依次生成全部预测
func (s *TwinService) ProjectAll(ctx context.Context, userID string, days, months int) (*TwinProjections, error) {
	wallet, err := s.WalletShortTerm(ctx, userID, days)
	if err != nil {
		return nil, fmt.Errorf("钱包短期预测失败: %w", err)
	}
	longTerm, err := s.WalletLongTerm(ctx, userID, months)
	if err != nil {
		return nil, fmt.Errorf("钱包长期预测失败: %w", err)
	}
	wellness, err := s.Wellness(ctx, userID, days)
	if err != nil {
		return nil, fmt.Errorf("健康预测失败: %w", err)
	}
	sustainability, err := s.Sustainability(ctx, userID, days)
	if err != nil {
		return nil, fmt.Errorf("可持续性预测失败: %w", err)
	}
	return &TwinProjections{Wallet: wallet, WalletLongTerm: longTerm, Wellness: wellness, Sustainability: sustainability}, nil
}
