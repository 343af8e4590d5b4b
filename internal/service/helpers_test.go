package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/schema"
	"github.com/yuqie6/LifeMirror/internal/testutil"
)

// testStore 基于内存 SQLite 的真实仓储组合
type testStore struct {
	events   *repository.EventRepository
	scores   *repository.DailyScoreRepository
	movement *repository.MovementRepository
	activity *repository.ActivityRepository
	risks    *repository.RiskRepository
	alerts   *repository.AlertRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db := testutil.OpenTestDB(t)
	return &testStore{
		events:   repository.NewEventRepository(db),
		scores:   repository.NewDailyScoreRepository(db),
		movement: repository.NewMovementRepository(db),
		activity: repository.NewActivityRepository(db),
		risks:    repository.NewRiskRepository(db),
		alerts:   repository.NewAlertRepository(db),
	}
}

func (s *testStore) insert(t *testing.T, events ...schema.Event) {
	t.Helper()
	if err := s.events.BatchInsert(context.Background(), events); err != nil {
		t.Fatalf("insert events: %v", err)
	}
}

// fixedClock 固定在某日 12:00 UTC
func fixedClock(date string) func() time.Time {
	t := mustDay(date).Add(12 * time.Hour)
	return func() time.Time { return t }
}

// at 某日某时的毫秒时间戳
func at(date string, hour, minute int) int64 {
	return mustDay(date).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute).UnixMilli()
}

func newEvent(user, eventType, category, title string, ts int64, amount *float64) schema.Event {
	return schema.Event{UserID: user, EventType: eventType, Category: category, Title: title, Timestamp: ts, Amount: amount}
}

func num(v float64) *float64 { return schema.Float(v) }

type recordingBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *recordingBus) Publish(evt eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

func staticRules() *rules.Provider {
	return rules.NewProvider(rules.StaticSource{Rules: rules.Defaults()})
}
