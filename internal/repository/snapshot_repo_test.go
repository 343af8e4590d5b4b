package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"github.com/yuqie6/LifeMirror/internal/testutil"
)

func TestDailyScoreUpsertIsIdempotent(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDailyScoreRepository(db)
	ctx := context.Background()

	s := &schema.DailyScore{UserID: "u1", Date: "2025-03-10", WalletScore: 80, WellnessScore: 50}
	if err := repo.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	again := &schema.DailyScore{UserID: "u1", Date: "2025-03-10", WalletScore: 60, WellnessScore: 55}
	if err := repo.Upsert(ctx, again); err != nil {
		t.Fatalf("second Upsert error: %v", err)
	}

	rows, err := repo.GetByDateRange(ctx, "u1", "2025-03-01", "2025-03-31")
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows err=%v len=%d, want 1", err, len(rows))
	}
	if rows[0].WalletScore != 60 || rows[0].WellnessScore != 55 {
		t.Fatalf("row=%+v, want updated values", rows[0])
	}

	missing, err := repo.GetByDate(ctx, "u1", "2025-03-11")
	if err != nil || missing != nil {
		t.Fatalf("missing=%v err=%v, want nil,nil", missing, err)
	}
}

func TestMovementTestsPreloadInsight(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewMovementRepository(db)
	ctx := context.Background()

	ts := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC).UnixMilli()
	withInsight := &schema.MovementTest{UserID: "u1", TestType: "squat", DurationSeconds: 120, Timestamp: ts,
		Insight: &schema.MovementTestInsight{FormScore: schema.Float(55)}}
	plain := &schema.MovementTest{UserID: "u1", TestType: "plank", DurationSeconds: 60, Timestamp: ts + 1000}
	if err := repo.CreateTest(ctx, withInsight); err != nil {
		t.Fatalf("CreateTest error: %v", err)
	}
	if err := repo.CreateTest(ctx, plain); err != nil {
		t.Fatalf("CreateTest error: %v", err)
	}

	tests, err := repo.GetTests(ctx, "u1", ts-1, ts+2000)
	if err != nil || len(tests) != 2 {
		t.Fatalf("GetTests err=%v len=%d", err, len(tests))
	}
	if tests[0].Insight == nil || *tests[0].Insight.FormScore != 55 {
		t.Fatalf("insight not preloaded: %+v", tests[0].Insight)
	}
	if tests[1].Insight != nil {
		t.Fatalf("plain test should have no insight")
	}

	if err := repo.UpsertDaily(ctx, &schema.MovementDaily{UserID: "u1", Date: "2025-03-10", Steps: 100}); err != nil {
		t.Fatalf("UpsertDaily: %v", err)
	}
	if err := repo.UpsertDaily(ctx, &schema.MovementDaily{UserID: "u1", Date: "2025-03-10", Steps: 200}); err != nil {
		t.Fatalf("UpsertDaily again: %v", err)
	}
	agg, err := repo.GetDaily(ctx, "u1", "2025-03-10")
	if err != nil || agg == nil || agg.Steps != 200 {
		t.Fatalf("agg=%+v err=%v", agg, err)
	}
}

func TestRiskRepositoryRange(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewRiskRepository(db)
	ctx := context.Background()

	for _, d := range []string{"2025-03-12", "2025-03-10", "2025-03-11"} {
		if err := repo.Upsert(ctx, &schema.RiskSnapshot{UserID: "u1", Date: d, BurnoutRisk: 10}); err != nil {
			t.Fatalf("Upsert %s: %v", d, err)
		}
	}
	rows, err := repo.GetByDateRange(ctx, "u1", "2025-03-10", "2025-03-11")
	if err != nil || len(rows) != 2 || rows[0].Date != "2025-03-10" {
		t.Fatalf("rows=%v err=%v", rows, err)
	}
}

func TestDateRangeIsUTCInclusive(t *testing.T) {
	start, end, err := DateRange("2025-03-10", "2025-03-11")
	if err != nil {
		t.Fatalf("DateRange: %v", err)
	}
	wantStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).UnixMilli()
	if start != wantStart || end != wantStart+2*24*3600*1000-1 {
		t.Fatalf("range=[%d,%d]", start, end)
	}
	if _, _, err := DayRange("bad"); err == nil {
		t.Fatalf("expected parse error")
	}
}
