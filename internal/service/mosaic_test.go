package service

import (
	"context"
	"testing"

	"github.com/yuqie6/LifeMirror/internal/schema"
)

func TestDailyStory(t *testing.T) {
	if got := DailyStory(nil); got != "No activity data yet." {
		t.Fatalf("story=%q", got)
	}

	tiles := []MosaicTile{
		newTile("sleep", 90, ""),
		newTile("movement", 30, ""),
		newTile("focus", 62, ""),
		newTile("social", 75, ""),
	}
	if got := DailyStory(tiles); got != "High sleep, low movement, and moderate focus." {
		t.Fatalf("story=%q", got)
	}

	flat := []MosaicTile{newTile("sleep", 50, ""), newTile("mood", 50, "")}
	if got := DailyStory(flat); got != "Moderate sleep and moderate mood." {
		t.Fatalf("story=%q", got)
	}
}

func TestNewTileColorAndClamp(t *testing.T) {
	cases := []struct {
		score     float64
		wantScore float64
		color     string
	}{
		{120, 100, "green"},
		{80, 80, "green"},
		{50, 50, "yellow"},
		{49.99, 49.99, "red"},
		{-5, 0, "red"},
	}
	for _, tc := range cases {
		tile := newTile("meds", tc.score, "")
		if tile.Score != tc.wantScore || tile.Color != tc.color {
			t.Fatalf("newTile(%v)=%+v, want %v %s", tc.score, tile, tc.wantScore, tc.color)
		}
	}
	if tile := newTile("selfcare", 10, ""); tile.Name != "Selfcare" {
		t.Fatalf("name=%s", tile.Name)
	}
}

func TestMosaicDaily(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	day := "2025-03-10"

	st.insert(t, newEvent("u1", schema.EventTypeSleep, schema.CategoryHealth, "Night", at(day, 6, 0), num(8)))
	for _, f := range []schema.ActivityLog{
		{UserID: "u1", ActivityType: schema.ActivityTypeFocusSession, StartTime: at(day, 9, 0), EndTime: at(day, 11, 0), DurationMinutes: 120},
		// 跨午夜的时段不计入当天
		{UserID: "u1", ActivityType: schema.ActivityTypeFocusSession, StartTime: at(day, 23, 0), EndTime: at("2025-03-11", 1, 0), DurationMinutes: 120},
	} {
		f := f
		if err := st.activity.Create(ctx, &f); err != nil {
			t.Fatalf("create activity: %v", err)
		}
	}

	svc := NewMosaicService(st.events, st.movement, st.activity)
	got, err := svc.Daily(ctx, "u1", day)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(got.Tiles) != 8 {
		t.Fatalf("tiles=%d, want 8", len(got.Tiles))
	}
	byKey := make(map[string]MosaicTile, len(got.Tiles))
	for _, tile := range got.Tiles {
		byKey[tile.Key] = tile
	}
	if byKey["sleep"].Score != 100 || byKey["sleep"].Detail != "8.0h" {
		t.Fatalf("sleep=%+v", byKey["sleep"])
	}
	if byKey["focus"].Score != 100 || byKey["focus"].Detail != "120 min" {
		t.Fatalf("focus=%+v", byKey["focus"])
	}
	if got.OverallScore != 25 {
		t.Fatalf("overall=%v, want 25", got.OverallScore)
	}
	if got.Story != "High sleep, low movement, and high focus." {
		t.Fatalf("story=%q", got.Story)
	}
}

func TestMosaicWeek(t *testing.T) {
	st := newTestStore(t)
	svc := NewMosaicService(st.events, st.movement, st.activity)
	svc.now = fixedClock("2025-03-10")

	got, err := svc.Week(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("week: %v", err)
	}
	if len(got) != 7 || got[0].Date != "2025-03-04" || got[6].Date != "2025-03-10" {
		t.Fatalf("week dates=%s..%s (%d)", got[0].Date, got[len(got)-1].Date, len(got))
	}
}
