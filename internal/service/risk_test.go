package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yuqie6/LifeMirror/internal/schema"
)

func TestRiskLevelBoundaries(t *testing.T) {
	cases := map[float64]string{
		0:    "low",
		40:   "low",
		41:   "medium",
		70:   "medium",
		70.5: "high",
		71:   "high",
		100:  "high",
	}
	for score, want := range cases {
		if got := RiskLevel(score); got != want {
			t.Fatalf("RiskLevel(%v)=%s, want %s", score, got, want)
		}
	}
}

func TestAssessTopThreePositiveFactors(t *testing.T) {
	got := assess(7, []RiskFactor{
		{Name: "a", Impact: 10},
		{Name: "zero", Impact: 0},
		{Name: "b", Impact: 30},
		{Name: "c", Impact: 20},
		{Name: "d", Impact: 30},
	}, nil)

	if len(got.Factors) != 3 {
		t.Fatalf("factors=%d, want 3", len(got.Factors))
	}
	if got.Factors[0].Name != "b" || got.Factors[1].Name != "d" || got.Factors[2].Name != "c" {
		t.Fatalf("order=%v", got.Factors)
	}
	if got.Risk != 80 || got.Level != "high" {
		t.Fatalf("risk=%v level=%s, want 80 high", got.Risk, got.Level)
	}
	if got.Recommendations == nil {
		t.Fatalf("recommendations should be empty slice, not nil")
	}

	capped := assess(7, []RiskFactor{{Name: "x", Impact: 140}}, nil)
	if capped.Risk != 100 {
		t.Fatalf("risk=%v, want capped 100", capped.Risk)
	}
}

func TestBurnoutRiskSleepDeficit(t *testing.T) {
	start, end := "2025-03-04", "2025-03-10"
	dates := daysBetween(start, end)

	var events []schema.Event
	for _, d := range dates {
		events = append(events,
			newEvent("u1", schema.EventTypeBreak, schema.CategorySelfcare, "Stretch", at(d, 10, 0), nil),
			newEvent("u1", schema.EventTypeBreak, schema.CategorySelfcare, "Walk", at(d, 15, 0), nil),
		)
	}
	events = append(events, newEvent("u1", schema.EventTypeSleep, schema.CategoryHealth, "Sleep", at(start, 7, 0), num(6)))

	got := burnoutRisk(dates, len(dates), events, nil)
	if got.Risk != 20 || got.Level != "low" {
		t.Fatalf("risk=%v level=%s, want 20 low", got.Risk, got.Level)
	}
	if len(got.Factors) != 1 || got.Factors[0].Name != "Sleep deficit" {
		t.Fatalf("factors=%+v", got.Factors)
	}
	if len(got.Recommendations) != 1 {
		t.Fatalf("recommendations=%v", got.Recommendations)
	}
}

func TestBurnoutRiskFocusAndLateNights(t *testing.T) {
	dates := daysBetween("2025-03-10", "2025-03-10")
	events := []schema.Event{
		newEvent("u1", schema.EventTypeWork, schema.CategoryProductivity, "Deploy", at("2025-03-10", 23, 30), nil),
		newEvent("u1", schema.EventTypeMood, schema.CategoryHealth, "Mood", at("2025-03-10", 20, 0), num(3)),
	}
	focus := []schema.ActivityLog{{
		UserID:          "u1",
		ActivityType:    schema.ActivityTypeFocusSession,
		StartTime:       at("2025-03-10", 9, 0),
		EndTime:         at("2025-03-10", 13, 0),
		DurationMinutes: 240,
	}}

	got := burnoutRisk(dates, 1, events, focus)
	// 专注 15 + 情绪 10 + 熬夜 10 + 缺少休息 10，取前三
	if got.Risk != 35 {
		t.Fatalf("risk=%v, want 35", got.Risk)
	}
	if got.Factors[0].Name != "Prolonged focus" {
		t.Fatalf("top factor=%s", got.Factors[0].Name)
	}
}

func TestFinancialRiskOverspending(t *testing.T) {
	events := []schema.Event{
		newEvent("u1", schema.EventTypeSpending, schema.CategoryNutrition, "Dinner", at("2025-03-10", 19, 0), num(100)),
	}
	got := financialRisk(30, events)
	// 入不敷出 40 + 应急金不足 30
	if got.Risk != 70 || got.Level != "medium" {
		t.Fatalf("risk=%v level=%s, want 70 medium", got.Risk, got.Level)
	}

	withBalance := []schema.Event{events[0]}
	withBalance[0].Metadata.CurrentBalance = num(5000)
	if got := financialRisk(30, withBalance); got.Risk != 40 {
		t.Fatalf("risk=%v, want 40 with healthy balance", got.Risk)
	}
}

func TestFinancialRiskEmptyWindow(t *testing.T) {
	got := financialRisk(30, nil)
	if got.Risk != 0 || len(got.Factors) != 0 {
		t.Fatalf("risk=%v factors=%v, want zero", got.Risk, got.Factors)
	}
}

func TestIsolationRiskGroupActivity(t *testing.T) {
	start := "2025-03-04"
	var events []schema.Event
	for _, d := range []string{"2025-03-04", "2025-03-06", "2025-03-08"} {
		events = append(events, newEvent("u1", schema.EventTypeSocial, schema.CategorySocial, "Dinner with friends", at(d, 19, 0), nil))
	}
	events = append(events, newEvent("u1", schema.EventTypeSocial, schema.CategorySocial, "Team climbing class", at("2025-03-09", 18, 0), nil))

	got := isolationRisk(start, 7, events)
	if got.Risk != 0 {
		t.Fatalf("risk=%v factors=%+v, want 0", got.Risk, got.Factors)
	}

	empty := isolationRisk(start, 7, nil)
	if empty.Risk != 40 {
		t.Fatalf("risk=%v, want 40 (low social + no group)", empty.Risk)
	}
}

func TestInjuryRiskPainAndForm(t *testing.T) {
	start := "2025-03-04"
	pain := newEvent("u1", schema.EventTypeHabit, schema.CategoryHealth, "Knee pain", at("2025-03-05", 9, 0), nil)
	rehab := newEvent("u1", schema.EventTypeHabit, schema.CategoryHealth, "Physio session", at("2025-03-06", 9, 0), nil)
	tests := []schema.MovementTest{{Insight: &schema.MovementTestInsight{FormScore: num(45)}}}

	got := injuryRisk(start, 7, []schema.Event{pain, rehab}, nil, tests)
	// 疼痛 15 + 动作质量 10
	if got.Risk != 25 {
		t.Fatalf("risk=%v factors=%+v, want 25", got.Risk, got.Factors)
	}

	movement := []schema.MovementDaily{
		{Date: "2025-02-27", ActiveMinutes: 20},
		{Date: "2025-03-05", ActiveMinutes: 60},
	}
	spike := injuryRisk(start, 7, []schema.Event{rehab}, movement, nil)
	if spike.Risk != 20 || spike.Factors[0].Name != "Activity spike" {
		t.Fatalf("spike=%+v", spike)
	}
}

func TestRiskSnapshotAndHistory(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewRiskService(st.events, st.movement, st.activity, st.risks)
	day := "2025-03-10"
	svc.now = fixedClock(day)

	snap, err := svc.SaveSnapshot(ctx, "u1", day)
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	// 无数据：缺少休息 70，未做康复 25，社交偏少 + 无群体活动 40，财务 0
	if snap.BurnoutRisk != 70 || snap.InjuryRisk != 25 || snap.IsolationRisk != 40 || snap.FinancialRisk != 0 {
		t.Fatalf("snapshot=%+v", snap)
	}
	if _, err := svc.SaveSnapshot(ctx, "u1", day); err != nil {
		t.Fatalf("save snapshot again: %v", err)
	}

	rows, err := svc.History(ctx, "u1", 7, []string{"Burnout"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(rows))
	}
	if rows[0].BurnoutRisk == nil || *rows[0].BurnoutRisk != 70 {
		t.Fatalf("burnout=%v", rows[0].BurnoutRisk)
	}
	if rows[0].InjuryRisk != nil {
		t.Fatalf("injury should be omitted when not selected")
	}

	if _, err := svc.History(ctx, "u1", 7, []string{"stress"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err=%v, want ErrUnsupported", err)
	}
}
