package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yuqie6/LifeMirror/internal/schema"
)

type flakyMovement struct {
	MovementRepository
	failUser string
}

func (f flakyMovement) UpsertDaily(ctx context.Context, agg *schema.MovementDaily) error {
	if agg.UserID == f.failUser {
		return errors.New("locked")
	}
	return f.MovementRepository.UpsertDaily(ctx, agg)
}

func newSnapshotJobForTest(st *testStore, movementRepo MovementRepository, bus Publisher) *SnapshotJob {
	movement := NewMovementService(st.events, movementRepo)
	daily := NewDailyScoreService(st.events, st.movement, st.scores)
	risk := NewRiskService(st.events, st.movement, st.activity, st.risks)
	return NewSnapshotJob(st.events, movement, daily, risk, bus, 2)
}

func TestSnapshotJobRun(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	day := "2025-03-10"
	walk := newEvent("u1", schema.EventTypeMovement, schema.CategoryFitness, "Walk", at(day, 8, 0), nil)
	walk.Metadata = schema.EventMetadata{Steps: num(10000), DurationMinutes: num(30)}
	st.insert(t,
		walk,
		newEvent("u2", schema.EventTypeSpending, schema.CategoryNutrition, "Lunch", at(day, 12, 0), num(20)),
		// 超出回看窗口的用户不处理
		newEvent("u3", schema.EventTypeSpending, schema.CategoryNutrition, "Old", at("2025-01-01", 12, 0), num(20)),
	)
	bus := &recordingBus{}
	job := newSnapshotJobForTest(st, st.movement, bus)

	res, err := job.Run(ctx, day, 7)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Users != 2 || res.Succeeded != 2 || len(res.Failed) != 0 {
		t.Fatalf("result=%+v", res)
	}

	snap, err := st.scores.GetByDate(ctx, "u1", day)
	if err != nil || snap == nil {
		t.Fatalf("u1 snapshot=%v err=%v", snap, err)
	}
	if snap.MovementScore != 100 {
		t.Fatalf("movement=%v, want 100", snap.MovementScore)
	}
	risks, err := st.risks.GetByDateRange(ctx, "u2", day, day)
	if err != nil || len(risks) != 1 {
		t.Fatalf("u2 risks=%v err=%v", risks, err)
	}
	if len(bus.types()) != 2 {
		t.Fatalf("published=%v, want one per user", bus.types())
	}
}

func TestSnapshotJobIsolatesUserFailures(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	day := "2025-03-10"
	st.insert(t,
		newEvent("good", schema.EventTypeSleep, schema.CategoryHealth, "Night", at(day, 6, 0), num(7)),
		newEvent("bad", schema.EventTypeSleep, schema.CategoryHealth, "Night", at(day, 6, 0), num(7)),
	)
	job := newSnapshotJobForTest(st, flakyMovement{MovementRepository: st.movement, failUser: "bad"}, nil)

	res, err := job.Run(ctx, day, 3)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("succeeded=%d, want 1", res.Succeeded)
	}
	if _, ok := res.Failed["bad"]; !ok || len(res.Failed) != 1 {
		t.Fatalf("failed=%v, want only bad", res.Failed)
	}
	if snap, _ := st.scores.GetByDate(ctx, "good", day); snap == nil {
		t.Fatalf("good user should have a snapshot")
	}
}

func TestSnapshotJobBadDate(t *testing.T) {
	st := newTestStore(t)
	job := newSnapshotJobForTest(st, st.movement, nil)
	var ve *ValidationError
	if _, err := job.Run(context.Background(), "yesterday", 1); !errors.As(err, &ve) {
		t.Fatalf("err=%v, want validation error", err)
	}
}
