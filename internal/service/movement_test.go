package service

import (
	"context"
	"testing"

	"github.com/yuqie6/LifeMirror/internal/schema"
)

func TestMovementScoreBounds(t *testing.T) {
	cases := []struct {
		steps, active, want int
	}{
		{10000, 30, 100},
		{0, 0, 0},
		{5000, 15, 50},
		{40000, 300, 100},
	}
	for _, tc := range cases {
		if got := movementScore(tc.steps, tc.active); got != tc.want {
			t.Fatalf("movementScore(%d, %d)=%d, want %d", tc.steps, tc.active, got, tc.want)
		}
	}
}

func TestAggregateMovement(t *testing.T) {
	day := "2025-03-10"
	walk := newEvent("u1", schema.EventTypeMovement, schema.CategoryFitness, "Evening walk", at(day, 18, 0), nil)
	walk.Metadata = schema.EventMetadata{Steps: num(10000), DurationMinutes: num(20)}
	run := newEvent("u1", schema.EventTypeMovement, schema.CategoryFitness, "Morning run", at(day, 7, 0), num(25))
	sleep := newEvent("u1", schema.EventTypeSleep, schema.CategoryHealth, "Night", at(day, 0, 30), num(7))
	tests := []schema.MovementTest{{TestType: "squat", DurationSeconds: 600}}

	got := aggregateMovement([]schema.Event{walk, run, sleep}, tests)

	if got.Steps != 10000 {
		t.Fatalf("steps=%d, want 10000", got.Steps)
	}
	// 20 + 25 + 测评 10 分钟
	if got.ActiveMinutes != 55 {
		t.Fatalf("active=%d, want 55", got.ActiveMinutes)
	}
	if got.SedentaryMinutes != 24*60-420-55 {
		t.Fatalf("sedentary=%d, want %d", got.SedentaryMinutes, 24*60-420-55)
	}
	if got.WorkoutCount != 2 {
		t.Fatalf("workouts=%d, want 2", got.WorkoutCount)
	}
	if got.TotalMovementScore != 100 {
		t.Fatalf("score=%d, want 100", got.TotalMovementScore)
	}
}

func TestAggregateMovementSedentary(t *testing.T) {
	day := "2025-03-10"
	walk := newEvent("u1", schema.EventTypeMovement, schema.CategoryFitness, "Walk", at(day, 18, 0), nil)
	walk.Metadata = schema.EventMetadata{DurationMinutes: num(30)}
	sleep := newEvent("u1", schema.EventTypeSleep, schema.CategoryHealth, "Night", at(day, 0, 30), num(8))

	got := aggregateMovement([]schema.Event{walk, sleep}, nil)
	if got.SedentaryMinutes != 24*60-480-30 {
		t.Fatalf("sedentary=%d, want %d", got.SedentaryMinutes, 24*60-480-30)
	}
	if got.TotalMovementScore != 50 {
		t.Fatalf("score=%d, want 50", got.TotalMovementScore)
	}
	if got.WorkoutCount != 0 {
		t.Fatalf("workouts=%d, want 0", got.WorkoutCount)
	}
}

func TestMovementUpdateDailyAndStats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	day := "2025-03-10"

	walk := newEvent("u1", schema.EventTypeMovement, schema.CategoryFitness, "Walk", at(day, 8, 0), nil)
	walk.Metadata = schema.EventMetadata{Steps: num(10000), DurationMinutes: num(30)}
	st.insert(t, walk)
	if err := st.movement.CreateTest(ctx, &schema.MovementTest{UserID: "u1", TestType: "plank", DurationSeconds: 120, Timestamp: at(day, 9, 0)}); err != nil {
		t.Fatalf("create test: %v", err)
	}

	svc := NewMovementService(st.events, st.movement)
	svc.now = fixedClock(day)

	agg, err := svc.UpdateDaily(ctx, "u1", day)
	if err != nil {
		t.Fatalf("update daily: %v", err)
	}
	if agg.ActiveMinutes != 32 || agg.WorkoutCount != 1 || agg.TotalMovementScore != 100 {
		t.Fatalf("agg=%+v", agg)
	}
	// 重复聚合覆盖同一行
	if _, err := svc.UpdateDaily(ctx, "u1", day); err != nil {
		t.Fatalf("update daily again: %v", err)
	}

	stats, err := svc.Stats(ctx, "u1", 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Days != 1 {
		t.Fatalf("days=%d, want 1", stats.Days)
	}
	if stats.Totals.StepsTotal != 10000 || stats.Averages.ScoreAvg != 100 {
		t.Fatalf("stats=%+v", stats)
	}
}
