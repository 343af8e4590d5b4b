package main

import (
	"reflect"
	"testing"
	"time"
)

func TestDemoEventsDeterministic(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	a := demoEvents("u1", 7, 42, now)
	b := demoEvents("u1", 7, 42, now)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed produced different events")
	}
	if len(a) < 7*5 {
		t.Fatalf("events=%d, want at least %d", len(a), 7*5)
	}
	first := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli()
	for _, ev := range a {
		if ev.UserID != "u1" || ev.Timestamp < first {
			t.Fatalf("event out of range: %+v", ev)
		}
	}
}

func TestDecodeEventsDefaultsUser(t *testing.T) {
	in := []byte(`[{"event_type":"food","category":"nutrition","title":"Salad"},{"user_id":"u2","event_type":"sleep","category":"health","title":"Nap","amount":1.5}]`)
	out, err := decodeEvents(in, "u1")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out[0].UserID != "u1" || out[1].UserID != "u2" || *out[1].Amount != 1.5 {
		t.Fatalf("out=%+v", out)
	}
}

func TestShiftDate(t *testing.T) {
	if got := shiftDate("2025-03-01", -1); got != "2025-02-28" {
		t.Fatalf("shift=%s, want 2025-02-28", got)
	}
	if got := shiftDate("bad", 3); got != "bad" {
		t.Fatalf("shift=%s, want passthrough", got)
	}
}
