package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yuqie6/LifeMirror/internal/pkg/mathx"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

var workoutKeywords = []string{"workout", "run", "yoga", "lift", "training"}

// MovementService 每日运动聚合服务
type MovementService struct {
	events   EventRepository
	movement MovementRepository
	now      func() time.Time
}

// NewMovementService 创建运动聚合服务
func NewMovementService(events EventRepository, movement MovementRepository) *MovementService {
	return &MovementService{events: events, movement: movement, now: time.Now}
}

// UpdateDaily 由当日运动/睡眠事件与动作测评重算聚合并写入
func (s *MovementService) UpdateDaily(ctx context.Context, userID, date string) (*schema.MovementDaily, error) {
	if _, err := parseDay(date); err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, s.events, userID, date, date)
	if err != nil {
		return nil, err
	}
	start, end, err := repository.DayRange(date)
	if err != nil {
		return nil, err
	}
	tests, err := s.movement.GetTests(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	agg := aggregateMovement(events, tests)
	agg.UserID = userID
	agg.Date = date
	if err := s.movement.UpsertDaily(ctx, &agg); err != nil {
		return nil, fmt.Errorf("保存运动聚合失败: %w", err)
	}
	return &agg, nil
}

// aggregateMovement 纯函数
func aggregateMovement(events []schema.Event, tests []schema.MovementTest) schema.MovementDaily {
	var steps, active, workouts int
	var sleepHours float64

	for i := range events {
		ev := &events[i]
		switch ev.Type() {
		case schema.EventTypeMovement:
			m := ev.Metadata
			if m.Steps != nil {
				steps += safeInt(*m.Steps)
			} else if strings.Contains(ev.LowerTitle(), "step") {
				steps += safeInt(ev.AmountOr(0))
			}

			if m.DurationMinutes != nil {
				active += safeInt(*m.DurationMinutes)
			} else {
				active += safeInt(ev.AmountOr(0))
			}

			if isWorkout(ev.Title, m.Type) {
				workouts++
			}
		case schema.EventTypeSleep:
			sleepHours += ev.AmountOr(0)
		}
	}

	for _, t := range tests {
		active += safeInt(t.DurationSeconds / 60)
	}
	workouts += len(tests)

	sleepMinutes := mathx.RoundInt(sleepHours * 60)
	sedentary := 24*60 - sleepMinutes - active
	if sedentary < 0 {
		sedentary = 0
	}

	return schema.MovementDaily{
		Steps:              steps,
		ActiveMinutes:      active,
		SedentaryMinutes:   sedentary,
		WorkoutCount:       workouts,
		TotalMovementScore: movementScore(steps, active),
	}
}

// movementScore 步数与活跃分钟各占 50 分
func movementScore(steps, activeMinutes int) int {
	stepsPart := math.Min(1, float64(steps)/10000) * 50
	activePart := math.Min(1, float64(activeMinutes)/30) * 50
	return mathx.RoundInt(math.Min(100, stepsPart+activePart))
}

func isWorkout(title, metaType string) bool {
	if metaType != "" && inSet(strings.ToLower(metaType), workoutKeywords...) {
		return true
	}
	return containsAny(title, workoutKeywords...)
}

// safeInt 截断为非负整数
func safeInt(v float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return int(v)
}

// History 日期范围内的聚合
func (s *MovementService) History(ctx context.Context, userID, startDate, endDate string) ([]schema.MovementDaily, error) {
	if _, err := parseDay(startDate); err != nil {
		return nil, err
	}
	if _, err := parseDay(endDate); err != nil {
		return nil, err
	}
	return s.movement.GetDailyRange(ctx, userID, startDate, endDate)
}

// MovementTotals 区间合计
type MovementTotals struct {
	StepsTotal     int `json:"steps_total"`
	ActiveTotal    int `json:"active_total"`
	SedentaryTotal int `json:"sedentary_total"`
	WorkoutsTotal  int `json:"workouts_total"`
	ScoreTotal     int `json:"score_total"`
}

// MovementAverages 区间日均
type MovementAverages struct {
	StepsAvg     int `json:"steps_avg"`
	ActiveAvg    int `json:"active_avg"`
	SedentaryAvg int `json:"sedentary_avg"`
	ScoreAvg     int `json:"score_avg"`
}

// MovementStats 最近 N 天统计
type MovementStats struct {
	Totals   MovementTotals   `json:"totals"`
	Averages MovementAverages `json:"averages"`
	Days     int              `json:"days"`
}

// Stats 最近 days 天（含今天）已存聚合的合计与日均
func (s *MovementService) Stats(ctx context.Context, userID string, days int) (*MovementStats, error) {
	if days <= 0 {
		days = 7
	}
	today := todayKey(s.now)
	rows, err := s.movement.GetDailyRange(ctx, userID, addDays(today, -(days-1)), today)
	if err != nil {
		return nil, err
	}

	var t MovementTotals
	for _, r := range rows {
		t.StepsTotal += max(0, r.Steps)
		t.ActiveTotal += max(0, r.ActiveMinutes)
		t.SedentaryTotal += max(0, r.SedentaryMinutes)
		t.WorkoutsTotal += max(0, r.WorkoutCount)
		t.ScoreTotal += max(0, r.TotalMovementScore)
	}
	n := float64(max(1, len(rows)))
	return &MovementStats{
		Totals: t,
		Averages: MovementAverages{
			StepsAvg:     mathx.RoundInt(float64(t.StepsTotal) / n),
			ActiveAvg:    mathx.RoundInt(float64(t.ActiveTotal) / n),
			SedentaryAvg: mathx.RoundInt(float64(t.SedentaryTotal) / n),
			ScoreAvg:     mathx.RoundInt(float64(t.ScoreTotal) / n),
		},
		Days: len(rows),
	}, nil
}
