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

// MosaicTile 生活马赛克中的一块
type MosaicTile struct {
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Color  string  `json:"color"`
	Detail string  `json:"detail"`
}

// DailyMosaic 单日马赛克
type DailyMosaic struct {
	Date         string       `json:"date"`
	OverallScore float64      `json:"overall_score"`
	Story        string       `json:"story"`
	Tiles        []MosaicTile `json:"tiles"`
}

// MosaicService 把一天的信号拼成 8 块命名区块和一句话总结
type MosaicService struct {
	events   EventRepository
	movement MovementRepository
	activity ActivityRepository
	now      func() time.Time
}

// NewMosaicService 创建马赛克服务
func NewMosaicService(events EventRepository, movement MovementRepository, activity ActivityRepository) *MosaicService {
	return &MosaicService{events: events, movement: movement, activity: activity, now: time.Now}
}

func tileColor(score float64) string {
	switch {
	case score >= 80:
		return "green"
	case score >= 50:
		return "yellow"
	default:
		return "red"
	}
}

func newTile(key string, score float64, detail string) MosaicTile {
	score = mathx.Clamp100(score)
	return MosaicTile{
		Key:    key,
		Name:   strings.ToUpper(key[:1]) + key[1:],
		Score:  mathx.Round2(score),
		Color:  tileColor(score),
		Detail: detail,
	}
}

// Daily 生成指定日期的马赛克；date 为空时取今天
func (s *MosaicService) Daily(ctx context.Context, userID, date string) (*DailyMosaic, error) {
	if date == "" {
		date = todayKey(s.now)
	}
	if _, err := parseDay(date); err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, s.events, userID, date, date)
	if err != nil {
		return nil, err
	}
	agg, err := s.movement.GetDaily(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("读取运动聚合失败: %w", err)
	}
	startMs, endMs, err := repository.DayRange(date)
	if err != nil {
		return nil, err
	}
	focus, err := s.activity.GetByType(ctx, userID, schema.ActivityTypeFocusSession, startMs, endMs)
	if err != nil {
		return nil, err
	}
	// 只统计当天内开始且结束的专注时段
	inDay := focus[:0:0]
	for _, f := range focus {
		if f.EndTime <= endMs {
			inDay = append(inDay, f)
		}
	}
	return composeMosaic(date, events, agg, inDay), nil
}

// Week 从 start 起连续 7 天的马赛克
func (s *MosaicService) Week(ctx context.Context, userID, start string) ([]DailyMosaic, error) {
	if start == "" {
		start = addDays(todayKey(s.now), -6)
	}
	if _, err := parseDay(start); err != nil {
		return nil, err
	}
	out := make([]DailyMosaic, 0, 7)
	for i := 0; i < 7; i++ {
		day, err := s.Daily(ctx, userID, addDays(start, i))
		if err != nil {
			return nil, err
		}
		out = append(out, *day)
	}
	return out, nil
}

func composeMosaic(date string, events []schema.Event, agg *schema.MovementDaily, focus []schema.ActivityLog) *DailyMosaic {
	var sleepHours, socialMinutes float64
	var nutrition, moods []float64
	meds, selfcare := 0, 0

	for i := range events {
		ev := &events[i]
		et := ev.Type()
		switch et {
		case schema.EventTypeSleep:
			if ev.Amount != nil {
				sleepHours += math.Max(0, *ev.Amount)
			}
		case schema.EventTypeSocial:
			minutes := orFloat(ev.Metadata.DurationMinutes, 0)
			if minutes == 0 {
				minutes = ev.AmountOr(0)
			}
			// 不超过 24 视为小时
			if minutes > 0 && minutes <= 24 {
				minutes *= 60
			}
			socialMinutes += minutes
		case schema.EventTypeFood:
			if q := ev.Metadata.NutritionQualityScore; q != nil {
				nutrition = append(nutrition, *q)
			} else if w := ev.Scores.WellnessImpact; w != nil {
				if math.Abs(*w) > 10 {
					nutrition = append(nutrition, (*w+100)/2)
				} else {
					nutrition = append(nutrition, *w*10)
				}
			}
		case schema.EventTypeMood:
			if ev.Amount != nil {
				moods = append(moods, mathx.Clamp(*ev.Amount, 0, 10)*10)
			}
		case schema.EventTypeMeds:
			meds++
		}
		if ev.Cat() == schema.CategorySelfcare || et == schema.EventTypeHabit || et == schema.EventTypeBreak {
			selfcare++
		}
	}

	focusMinutes := 0.0
	for _, f := range focus {
		focusMinutes += f.DurationMinutes
	}

	ratioScore := func(v, full float64) float64 {
		if v <= 0 {
			return 0
		}
		return math.Min(100, v/full*100)
	}
	movementScore, activeMinutes := 0.0, 0
	if agg != nil {
		movementScore = float64(agg.TotalMovementScore)
		activeMinutes = agg.ActiveMinutes
	}
	medsScore := 0.0
	if meds > 0 {
		medsScore = 90
	}

	tiles := []MosaicTile{
		newTile("sleep", ratioScore(sleepHours, 8), fmt.Sprintf("%.1fh", sleepHours)),
		newTile("movement", movementScore, fmt.Sprintf("%d min", activeMinutes)),
		newTile("focus", ratioScore(focusMinutes, 120), fmt.Sprintf("%d min", mathx.RoundInt(focusMinutes))),
		newTile("social", ratioScore(socialMinutes, 120), fmt.Sprintf("%d min", mathx.RoundInt(socialMinutes))),
		newTile("nutrition", math.Min(100, mathx.Mean(nutrition)), fmt.Sprintf("%d meals", len(nutrition))),
		newTile("meds", medsScore, fmt.Sprintf("%d entries", meds)),
		newTile("selfcare", math.Min(100, float64(selfcare)*25), fmt.Sprintf("%d entries", selfcare)),
		newTile("mood", math.Min(100, mathx.Mean(moods)), fmt.Sprintf("%d logs", len(moods))),
	}

	total := 0.0
	for _, t := range tiles {
		total += t.Score
	}
	return &DailyMosaic{
		Date:         date,
		OverallScore: mathx.Round2(total / float64(len(tiles))),
		Story:        DailyStory(tiles),
		Tiles:        tiles,
	}
}

func bandLabel(score float64) string {
	switch {
	case score >= 80:
		return "high"
	case score < 50:
		return "low"
	default:
		return "moderate"
	}
}

// DailyStory 取最高、最低和一个接近 65 的中等区块，拼成一句话
func DailyStory(tiles []MosaicTile) string {
	if len(tiles) == 0 {
		return "No activity data yet."
	}
	high, low := tiles[0], tiles[0]
	for _, t := range tiles[1:] {
		if t.Score > high.Score {
			high = t
		}
		if t.Score < low.Score {
			low = t
		}
	}

	var moderate *MosaicTile
	var fallback *MosaicTile
	for i := range tiles {
		t := &tiles[i]
		if t.Key == high.Key || t.Key == low.Key {
			continue
		}
		if fallback == nil {
			fallback = t
		}
		if t.Score >= 50 && t.Score < 80 {
			if moderate == nil || math.Abs(t.Score-65) < math.Abs(moderate.Score-65) {
				moderate = t
			}
		}
	}
	if moderate == nil {
		moderate = fallback
	}
	if moderate == nil {
		moderate = &high
	}

	var parts []string
	for _, t := range []MosaicTile{high, low, *moderate} {
		p := bandLabel(t.Score) + " " + strings.ToLower(t.Name)
		if !inSet(p, parts...) {
			parts = append(parts, p)
		}
	}
	parts[0] = strings.ToUpper(parts[0][:1]) + parts[0][1:]
	switch len(parts) {
	case 1:
		return parts[0] + "."
	case 2:
		return parts[0] + " and " + parts[1] + "."
	default:
		return parts[0] + ", " + parts[1] + ", and " + parts[2] + "."
	}
}
