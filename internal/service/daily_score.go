package service

import (
	"context"
	"fmt"
	"math"

	"github.com/yuqie6/LifeMirror/internal/pkg/mathx"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// DailyScores 单日四项评分，均在 [0, 100]
type DailyScores struct {
	Date                string  `json:"date"`
	WalletScore         float64 `json:"wallet_score"`
	WellnessScore       float64 `json:"wellness_score"`
	SustainabilityScore float64 `json:"sustainability_score"`
	MovementScore       float64 `json:"movement_score"`
}

// DailyScoreService 每日评分快照服务
type DailyScoreService struct {
	events   EventRepository
	movement MovementRepository
	scores   DailyScoreRepository
}

// NewDailyScoreService 创建每日评分服务
func NewDailyScoreService(events EventRepository, movement MovementRepository, scores DailyScoreRepository) *DailyScoreService {
	return &DailyScoreService{events: events, movement: movement, scores: scores}
}

// Compute 由当日事件与运动聚合计算评分（不落库）
func (s *DailyScoreService) Compute(ctx context.Context, userID, date string) (*DailyScores, error) {
	if _, err := parseDay(date); err != nil {
		return nil, err
	}
	events, err := loadEvents(ctx, s.events, userID, date, date)
	if err != nil {
		return nil, err
	}
	agg, err := s.movement.GetDaily(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	out := computeDailyScores(events, agg)
	out.Date = date
	return &out, nil
}

// computeDailyScores 纯函数：同一事件集合必然得到同一结果
func computeDailyScores(events []schema.Event, agg *schema.MovementDaily) DailyScores {
	var spend, income float64
	var wellness, sustainability []float64

	for i := range events {
		ev := &events[i]
		et := ev.Type()
		amount := ev.AmountOr(0)
		if et == schema.EventTypeSpending {
			spend += math.Abs(amount)
		}
		if ev.Cat() == schema.CategoryFinance || et == "income" {
			income += amount
		}
		if v := ev.Scores.WellnessImpact; v != nil {
			wellness = append(wellness, 50+*v/2)
		}
		if v := ev.Scores.SustainabilityImpact; v != nil {
			sustainability = append(sustainability, 50+*v/2)
		}
	}

	wallet := 50.0
	if income+spend > 0 {
		wallet = 50 + (income-spend)/(income+spend)*50
	}
	well := 50.0
	if len(wellness) > 0 {
		well = mathx.Mean(wellness)
	}
	sus := 50.0
	if len(sustainability) > 0 {
		sus = mathx.Mean(sustainability)
	}
	movement := 0.0
	if agg != nil {
		movement = float64(agg.TotalMovementScore)
	}

	return DailyScores{
		WalletScore:         mathx.Round2(mathx.Clamp100(wallet)),
		WellnessScore:       mathx.Round2(mathx.Clamp100(well)),
		SustainabilityScore: mathx.Round2(mathx.Clamp100(sus)),
		MovementScore:       mathx.Round2(mathx.Clamp100(movement)),
	}
}

// Save 计算并按 (user, date) 写入快照；重复调用结果一致
func (s *DailyScoreService) Save(ctx context.Context, userID, date string) (*DailyScores, error) {
	scores, err := s.Compute(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	row := &schema.DailyScore{
		UserID:              userID,
		Date:                date,
		WalletScore:         scores.WalletScore,
		WellnessScore:       scores.WellnessScore,
		SustainabilityScore: scores.SustainabilityScore,
		MovementScore:       scores.MovementScore,
	}
	if err := s.scores.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("保存每日评分失败: %w", err)
	}
	return scores, nil
}

// History 日期范围内的快照（按日期升序）
func (s *DailyScoreService) History(ctx context.Context, userID, startDate, endDate string) ([]DailyScores, error) {
	if _, err := parseDay(startDate); err != nil {
		return nil, err
	}
	if _, err := parseDay(endDate); err != nil {
		return nil, err
	}
	rows, err := s.scores.GetByDateRange(ctx, userID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	out := make([]DailyScores, 0, len(rows))
	for _, r := range rows {
		out = append(out, DailyScores{
			Date:                r.Date,
			WalletScore:         r.WalletScore,
			WellnessScore:       r.WellnessScore,
			SustainabilityScore: r.SustainabilityScore,
			MovementScore:       r.MovementScore,
		})
	}
	return out, nil
}
