package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// CreateEventInput 新事件
type CreateEventInput struct {
	UserID    string         `json:"user_id"`
	EventType string         `json:"event_type"`
	Category  string         `json:"category"`
	Title     string         `json:"title"`
	Timestamp int64          `json:"timestamp,omitempty"` // Unix 毫秒，0 表示当前时间
	Amount    *float64       `json:"amount,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Profile   string         `json:"profile,omitempty"`
}

// 写入后的非关键后处理步骤
const (
	StepDailySnapshot  = "daily_snapshot"
	StepMovement       = "movement_aggregate"
	StepSpendingAlert  = "spending_alert"
	spendingAlertRatio = 1.4
)

// PostProcessFailure 单个后处理步骤的失败
type PostProcessFailure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// CreateResult 写入结果；Degraded 表示事件已保存但部分后处理失败
type CreateResult struct {
	Event    *schema.Event        `json:"event"`
	Degraded bool                 `json:"degraded"`
	Failures []PostProcessFailure `json:"failures,omitempty"`
	Alert    *schema.Alert        `json:"alert,omitempty"`
}

// RescoreQuery 重算范围；Start/End 为毫秒，0 表示不限
type RescoreQuery struct {
	UserID     string
	Start      int64
	End        int64
	Types      []string
	Categories []string
	Profile    string
}

// StatBucket 计数与金额合计
type StatBucket struct {
	Count       int64   `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}

// EventStats 按类型 / 分类的统计
type EventStats struct {
	ByType     map[string]StatBucket `json:"by_type"`
	ByCategory map[string]StatBucket `json:"by_category"`
}

// EventService 事件写入、重算与统计
type EventService struct {
	events   EventRepository
	daily    *DailyScoreService
	movement *MovementService
	alerts   AlertRepository
	rules    RulesProvider
	bus      Publisher
	now      func() time.Time

	defaultProfile string
}

// NewEventService 创建事件服务；alerts / bus 可为 nil
func NewEventService(events EventRepository, daily *DailyScoreService, movement *MovementService, alerts AlertRepository, rules RulesProvider, bus Publisher) *EventService {
	return &EventService{
		events:   events,
		daily:    daily,
		movement: movement,
		alerts:   alerts,
		rules:    rules,
		bus:      bus,
		now:      time.Now,
	}
}

// WithDefaultProfile 请求未指定画像时使用的画像名
func (s *EventService) WithDefaultProfile(name string) *EventService {
	s.defaultProfile = strings.TrimSpace(name)
	return s
}

func (s *EventService) profile(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultProfile
}

func (in *CreateEventInput) validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return invalid("user_id", "不能为空")
	}
	if !schema.IsEventType(in.EventType) {
		return unsupported("event_type", in.EventType)
	}
	if !schema.IsCategory(in.Category) {
		return unsupported("category", in.Category)
	}
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "不能为空")
	}
	return nil
}

// Create 评分并写入事件，随后执行非关键后处理；后处理失败只降级不报错
func (s *EventService) Create(ctx context.Context, in CreateEventInput) (*CreateResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	meta, err := schema.ParseMetadata(in.Metadata)
	if err != nil {
		var me *schema.MetadataError
		if errors.As(err, &me) {
			return nil, invalid("metadata."+me.Key, me.Reason)
		}
		return nil, err
	}
	if s.rules == nil {
		return nil, ErrNotConfigured
	}
	r, err := s.rules.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载评分规则失败: %w", err)
	}

	ts := in.Timestamp
	if ts == 0 {
		ts = s.now().UnixMilli()
	}
	ev := &schema.Event{
		UserID:    in.UserID,
		EventType: strings.ToLower(strings.TrimSpace(in.EventType)),
		Category:  strings.ToLower(strings.TrimSpace(in.Category)),
		Title:     normalizeTitle(in.Title),
		Timestamp: ts,
		Amount:    in.Amount,
		Metadata:  meta,
	}
	ev.Scores = ScoreEvent(ScoreInput{
		EventType: ev.EventType,
		Category:  ev.Category,
		Amount:    ev.Amount,
		Metadata:  meta,
		Profile:   s.profile(in.Profile),
	}, r)

	if err := s.events.Create(ctx, ev); err != nil {
		return nil, err
	}

	res := &CreateResult{Event: ev}
	s.postProcess(ctx, ev, res)
	s.publish(eventbus.Event{
		Type:   eventbus.TypeEventCreated,
		UserID: ev.UserID,
		Data:   map[string]any{"id": ev.ID, "event_type": ev.EventType, "date": ev.Day(), "degraded": res.Degraded},
	})
	return res, nil
}

func (s *EventService) postProcess(ctx context.Context, ev *schema.Event, res *CreateResult) {
	fail := func(step string, err error) {
		slog.Warn("事件后处理失败", "step", step, "event_id", ev.ID, "user_id", ev.UserID, "error", err)
		res.Degraded = true
		res.Failures = append(res.Failures, PostProcessFailure{Step: step, Error: err.Error()})
	}
	day := ev.Day()

	// 运动聚合先于每日评分，评分读取当日运动分
	if ev.Type() == schema.EventTypeMovement && s.movement != nil {
		if _, err := s.movement.UpdateDaily(ctx, ev.UserID, day); err != nil {
			fail(StepMovement, err)
		}
	}
	if s.daily != nil {
		if scores, err := s.daily.Save(ctx, ev.UserID, day); err != nil {
			fail(StepDailySnapshot, err)
		} else {
			s.publish(eventbus.Event{
				Type:   eventbus.TypeSnapshotUpdated,
				UserID: ev.UserID,
				Data:   map[string]any{"date": day, "scores": scores},
			})
		}
	}
	if ev.Type() == schema.EventTypeSpending && ev.Amount != nil && s.alerts != nil {
		alert, err := s.maybeSpendingAlert(ctx, ev)
		if err != nil {
			fail(StepSpendingAlert, err)
		} else if alert != nil {
			res.Alert = alert
			s.publish(eventbus.Event{
				Type:   eventbus.TypeAlertCreated,
				UserID: ev.UserID,
				Data:   map[string]any{"id": alert.ID, "title": alert.Title},
			})
		}
	}
}

// maybeSpendingAlert 单笔支出 ≥ 近 7 天日均支出 × 1.4 时写入提醒
func (s *EventService) maybeSpendingAlert(ctx context.Context, ev *schema.Event) (*schema.Alert, error) {
	end := ev.Timestamp
	start := ev.Time().AddDate(0, 0, -7).UnixMilli()
	rows, err := s.events.Query(ctx, repository.EventQuery{
		UserID: ev.UserID,
		Start:  start,
		End:    end,
		Types:  []string{schema.EventTypeSpending},
	})
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	for i := range rows {
		if rows[i].Amount == nil {
			continue
		}
		totals[rows[i].Day()] += math.Abs(*rows[i].Amount)
	}
	if len(totals) == 0 {
		return nil, nil
	}
	sum := 0.0
	for _, v := range totals {
		sum += v
	}
	avg := sum / float64(len(totals))
	current := math.Abs(*ev.Amount)
	if avg <= 0 || current < avg*spendingAlertRatio {
		return nil, nil
	}

	alert := &schema.Alert{
		ID:         uuid.NewString(),
		UserID:     ev.UserID,
		AlertType:  "reminders",
		Title:      "Spending alert",
		Message:    fmt.Sprintf("Spending hit $%.2f today", current),
		ActionLink: "/analytics",
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	slog.Info("触发支出提醒", "user_id", ev.UserID, "amount", current, "avg_daily", avg)
	return alert, nil
}

func (s *EventService) publish(evt eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}

// Rescore 用当前规则快照重算范围内事件的 scores，返回更新条数
func (s *EventService) Rescore(ctx context.Context, q RescoreQuery) (int, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return 0, invalid("user_id", "不能为空")
	}
	if s.rules == nil {
		return 0, ErrNotConfigured
	}
	r, err := s.rules.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("加载评分规则失败: %w", err)
	}
	events, err := s.events.Query(ctx, repository.EventQuery{
		UserID:     q.UserID,
		Start:      q.Start,
		End:        q.End,
		Types:      q.Types,
		Categories: q.Categories,
	})
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	for i := range events {
		ev := &events[i]
		ev.Scores = ScoreEvent(ScoreInput{
			EventType: ev.EventType,
			Category:  ev.Category,
			Amount:    ev.Amount,
			Metadata:  ev.Metadata,
			Profile:   s.profile(q.Profile),
		}, r)
	}
	if err := s.events.UpdateScores(ctx, events); err != nil {
		return 0, err
	}
	slog.Info("事件重算完成", "user_id", q.UserID, "count", len(events))
	return len(events), nil
}

// Stats 区间内按类型与分类统计；start/end 为 0 表示不限
func (s *EventService) Stats(ctx context.Context, userID string, start, end int64) (*EventStats, error) {
	byType, err := s.events.GetTypeStats(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.events.GetCategoryStats(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	out := &EventStats{
		ByType:     make(map[string]StatBucket, len(byType)),
		ByCategory: make(map[string]StatBucket, len(byCategory)),
	}
	for _, st := range byType {
		out.ByType[st.EventType] = StatBucket{Count: st.EventCount, TotalAmount: st.TotalAmount}
	}
	for _, st := range byCategory {
		out.ByCategory[st.Category] = StatBucket{Count: st.EventCount, TotalAmount: st.TotalAmount}
	}
	return out, nil
}

// Import 批量导入已结构化的事件（演示数据 / 外部导入），逐条评分后一次性写入
func (s *EventService) Import(ctx context.Context, inputs []CreateEventInput) (int, error) {
	if s.rules == nil {
		return 0, ErrNotConfigured
	}
	r, err := s.rules.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("加载评分规则失败: %w", err)
	}
	events := make([]schema.Event, 0, len(inputs))
	for i := range inputs {
		in := &inputs[i]
		if err := in.validate(); err != nil {
			return 0, fmt.Errorf("第 %d 条事件不合法: %w", i+1, err)
		}
		meta, err := schema.ParseMetadata(in.Metadata)
		if err != nil {
			return 0, fmt.Errorf("第 %d 条事件 metadata 不合法: %w", i+1, err)
		}
		ts := in.Timestamp
		if ts == 0 {
			ts = s.now().UnixMilli()
		}
		ev := schema.Event{
			UserID:    in.UserID,
			EventType: strings.ToLower(strings.TrimSpace(in.EventType)),
			Category:  strings.ToLower(strings.TrimSpace(in.Category)),
			Title:     normalizeTitle(in.Title),
			Timestamp: ts,
			Amount:    in.Amount,
			Metadata:  meta,
		}
		ev.Scores = ScoreEvent(ScoreInput{EventType: ev.EventType, Category: ev.Category, Amount: ev.Amount, Metadata: meta, Profile: s.profile(in.Profile)}, r)
		events = append(events, ev)
	}
	if err := s.events.BatchInsert(ctx, events); err != nil {
		return 0, err
	}
	return len(events), nil
}
