package service

import (
	"context"
	"testing"

	"github.com/yuqie6/LifeMirror/internal/schema"
)

func TestComputeDailyScoresWallet(t *testing.T) {
	day := "2025-03-10"
	events := []schema.Event{
		newEvent("u1", schema.EventTypeSpending, schema.CategoryNutrition, "Groceries", at(day, 9, 0), num(50)),
		newEvent("u1", "income", schema.CategoryFinance, "Paycheck", at(day, 10, 0), num(200)),
	}
	got := computeDailyScores(events, nil)
	if got.WalletScore != 80 {
		t.Fatalf("wallet=%v, want 80", got.WalletScore)
	}
	if got.WellnessScore != 50 || got.SustainabilityScore != 50 {
		t.Fatalf("wellness=%v sustainability=%v, want neutral 50", got.WellnessScore, got.SustainabilityScore)
	}
	if got.MovementScore != 0 {
		t.Fatalf("movement=%v, want 0 without aggregate", got.MovementScore)
	}
}

func TestComputeDailyScoresNeutral(t *testing.T) {
	got := computeDailyScores(nil, nil)
	if got.WalletScore != 50 {
		t.Fatalf("wallet=%v, want 50", got.WalletScore)
	}
}

func TestComputeDailyScoresImpactsAndMovement(t *testing.T) {
	day := "2025-03-10"
	a := newEvent("u1", schema.EventTypeFood, schema.CategoryNutrition, "Salad", at(day, 12, 0), nil)
	a.Scores = schema.EventScores{WellnessImpact: num(50), SustainabilityImpact: num(40)}
	b := newEvent("u1", schema.EventTypeSleep, schema.CategoryHealth, "Sleep", at(day, 1, 0), num(5))
	b.Scores = schema.EventScores{WellnessImpact: num(-20)}

	got := computeDailyScores([]schema.Event{a, b}, &schema.MovementDaily{TotalMovementScore: 120})
	// (75 + 40) / 2
	if got.WellnessScore != 57.5 {
		t.Fatalf("wellness=%v, want 57.5", got.WellnessScore)
	}
	if got.SustainabilityScore != 70 {
		t.Fatalf("sustainability=%v, want 70", got.SustainabilityScore)
	}
	if got.MovementScore != 100 {
		t.Fatalf("movement=%v, want clamped 100", got.MovementScore)
	}
}

func TestDailyScoreSaveIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	day := "2025-03-10"
	st.insert(t,
		newEvent("u1", schema.EventTypeSpending, schema.CategoryNutrition, "Lunch", at(day, 12, 0), num(50)),
		newEvent("u1", "income", schema.CategoryFinance, "Paycheck", at(day, 9, 0), num(200)),
		newEvent("u2", schema.EventTypeSpending, schema.CategoryNutrition, "Other user", at(day, 12, 0), num(999)),
	)
	svc := NewDailyScoreService(st.events, st.movement, st.scores)

	first, err := svc.Save(ctx, "u1", day)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := svc.Save(ctx, "u1", day)
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if *first != *second {
		t.Fatalf("save not deterministic: %+v vs %+v", first, second)
	}
	if first.WalletScore != 80 {
		t.Fatalf("wallet=%v, want 80", first.WalletScore)
	}

	rows, err := svc.History(ctx, "u1", day, day)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d, want 1 after repeated save", len(rows))
	}
	if rows[0].WalletScore != 80 {
		t.Fatalf("stored wallet=%v, want 80", rows[0].WalletScore)
	}
}

func TestDailyScoreComputeBadDate(t *testing.T) {
	st := newTestStore(t)
	svc := NewDailyScoreService(st.events, st.movement, st.scores)
	if _, err := svc.Compute(context.Background(), "u1", "03/10/2025"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}
