package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/LifeMirror/internal/schema"
	"github.com/yuqie6/LifeMirror/internal/testutil"
)

func TestEventRepositoryQueryFilters(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []schema.Event{
		{UserID: "u1", EventType: "spending", Category: "finance", Title: "Lunch", Timestamp: day.Add(12 * time.Hour).UnixMilli(), Amount: schema.Float(12)},
		{UserID: "u1", EventType: "food", Category: "nutrition", Title: "Salad", Timestamp: day.Add(13 * time.Hour).UnixMilli(),
			Metadata: schema.EventMetadata{Ingredients: []string{"tofu"}}},
		{UserID: "u1", EventType: "movement", Category: "fitness", Title: "Run", Timestamp: day.Add(30 * time.Hour).UnixMilli()},
		{UserID: "u2", EventType: "spending", Category: "finance", Title: "Coffee", Timestamp: day.Add(9 * time.Hour).UnixMilli(), Amount: schema.Float(4)},
	}
	if err := repo.BatchInsert(ctx, events); err != nil {
		t.Fatalf("BatchInsert error: %v", err)
	}

	got, err := repo.GetByDate(ctx, "u1", "2025-03-10")
	if err != nil || len(got) != 2 {
		t.Fatalf("GetByDate err=%v len=%d, want 2", err, len(got))
	}
	if got[1].Metadata.Ingredients[0] != "tofu" {
		t.Fatalf("metadata not round-tripped: %+v", got[1].Metadata)
	}

	spending, err := repo.Query(ctx, EventQuery{UserID: "u1", Types: []string{"spending"}})
	if err != nil || len(spending) != 1 || spending[0].AmountOr(0) != 12 {
		t.Fatalf("Query by type err=%v got=%v", err, spending)
	}

	users, err := repo.DistinctUsersSince(ctx, day.UnixMilli())
	if err != nil || len(users) != 2 || users[0] != "u1" {
		t.Fatalf("DistinctUsersSince err=%v users=%v", err, users)
	}
}

func TestEventRepositoryUpdateScores(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	ev := &schema.Event{UserID: "u1", EventType: "social", Category: "social", Title: "Dinner", Timestamp: time.Now().UnixMilli()}
	if err := repo.Create(ctx, ev); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	ev.Scores = schema.EventScores{WellnessImpact: schema.Float(30)}
	if err := repo.UpdateScores(ctx, []schema.Event{*ev}); err != nil {
		t.Fatalf("UpdateScores error: %v", err)
	}

	back, err := repo.GetByID(ctx, ev.ID)
	if err != nil || back == nil {
		t.Fatalf("GetByID err=%v", err)
	}
	if back.Scores.WellnessImpact == nil || *back.Scores.WellnessImpact != 30 {
		t.Fatalf("scores=%+v, want wellness 30", back.Scores)
	}
}

func TestEventRepositoryTypeStats(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	_ = repo.BatchInsert(ctx, []schema.Event{
		{UserID: "u1", EventType: "spending", Category: "finance", Timestamp: now, Amount: schema.Float(10)},
		{UserID: "u1", EventType: "spending", Category: "finance", Timestamp: now, Amount: schema.Float(5)},
		{UserID: "u1", EventType: "mood", Category: "health", Timestamp: now},
	})

	stats, err := repo.GetTypeStats(ctx, "u1", now-1000, now+1000)
	if err != nil || len(stats) != 2 {
		t.Fatalf("GetTypeStats err=%v stats=%v", err, stats)
	}
	if stats[0].EventType != "spending" || stats[0].TotalAmount != 15 {
		t.Fatalf("stats[0]=%+v", stats[0])
	}
}

func TestEventRepositoryCategoryStatsUnbounded(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewEventRepository(db)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	_ = repo.BatchInsert(ctx, []schema.Event{
		{UserID: "u1", EventType: "food", Category: "nutrition", Timestamp: now},
		{UserID: "u1", EventType: "spending", Category: "finance", Timestamp: now - 86400000, Amount: schema.Float(7)},
		{UserID: "u1", EventType: "spending", Category: "finance", Timestamp: now, Amount: schema.Float(3)},
		{UserID: "u2", EventType: "spending", Category: "finance", Timestamp: now, Amount: schema.Float(100)},
	})

	stats, err := repo.GetCategoryStats(ctx, "u1", 0, 0)
	if err != nil || len(stats) != 2 {
		t.Fatalf("GetCategoryStats err=%v stats=%v", err, stats)
	}
	if stats[0].Category != "finance" || stats[0].EventCount != 2 || stats[0].TotalAmount != 10 {
		t.Fatalf("stats[0]=%+v", stats[0])
	}
}
