package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseFallsBackToDefaults(t *testing.T) {
	r, err := Parse(map[string]any{
		"profiles": map[string]any{
			"Athlete": map[string]any{
				"movement": map[string]any{"per_minute": 3},
			},
		},
	})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	p := r.Profile("Athlete")
	if p.Movement.PerMinute != 3 {
		t.Fatalf("per_minute=%v, want 3", p.Movement.PerMinute)
	}
	if p.Movement.Max != 100 || p.Food.HealthyBonus != 50 || p.Sleep.OptimalMin != 7 {
		t.Fatalf("missing leaves not defaulted: %+v", p)
	}
	if r.Sustainability.Transport.Walk != 50 {
		t.Fatalf("sustainability default lost: %+v", r.Sustainability)
	}
}

func TestParseRejectsNonNumericLeaf(t *testing.T) {
	_, err := Parse(map[string]any{
		"profiles": map[string]any{
			"Student": map[string]any{"food": map[string]any{"healthy_bonus": true}},
		},
	})
	if err == nil {
		t.Fatalf("expected error for non-numeric leaf")
	}
}

func TestProfileSelection(t *testing.T) {
	r := &Rules{Profiles: map[string]Profile{
		"Zed":   {Movement: MovementRules{PerMinute: 9}},
		"Alpha": {Movement: MovementRules{PerMinute: 4}},
	}}
	if got := r.Profile("Zed").Movement.PerMinute; got != 9 {
		t.Fatalf("explicit profile=%v, want 9", got)
	}
	if got := r.Profile("missing").Movement.PerMinute; got != 4 {
		t.Fatalf("sorted-first fallback=%v, want 4", got)
	}

	r.Profiles[DefaultProfileName] = Profile{Movement: MovementRules{PerMinute: 2}}
	if got := r.Profile("missing").Movement.PerMinute; got != 2 {
		t.Fatalf("student fallback=%v, want 2", got)
	}

	var empty *Rules
	if got := empty.Profile("x"); got != DefaultProfile() {
		t.Fatalf("nil rules should yield defaults, got %+v", got)
	}
}

func TestFileSourceMissingIsNoRules(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := src.Load(context.Background()); !errors.Is(err, ErrNoRules) {
		t.Fatalf("err=%v, want ErrNoRules", err)
	}
}

func TestFileSourceSaveAndLoad(t *testing.T) {
	for _, name := range []string{"rules.yaml", "rules.json"} {
		path := filepath.Join(t.TempDir(), name)
		src := NewFileSource(path)
		in := Defaults()
		in.Profiles["Athlete"] = Profile{
			Food:     FoodRules{HealthyBonus: 60, JunkPenalty: -40},
			Movement: MovementRules{PerMinute: 1.5, Max: 100},
			Sleep:    SleepRules{OptimalMin: 8, OptimalMax: 9, PenaltyPerHour: -15},
		}
		if err := src.Save(context.Background(), in); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		out, err := src.Load(context.Background())
		if err != nil {
			t.Fatalf("%s load: %v", name, err)
		}
		if out.Profile("Athlete") != in.Profiles["Athlete"] {
			t.Fatalf("%s athlete=%+v", name, out.Profile("Athlete"))
		}
	}
}

func TestProviderCachesUntilInvalidated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	src := NewFileSource(path)
	p := NewProvider(src)

	if _, err := p.Get(context.Background()); !errors.Is(err, ErrNoRules) {
		t.Fatalf("err=%v, want ErrNoRules before file exists", err)
	}

	if err := src.Save(context.Background(), Defaults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	first, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := os.WriteFile(path, []byte("profiles:\n  Student:\n    movement:\n      per_minute: 5\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cached, _ := p.Get(context.Background())
	if cached != first {
		t.Fatalf("expected cached snapshot before invalidation")
	}

	p.Invalidate()
	fresh, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if fresh.Profile("").Movement.PerMinute != 5 {
		t.Fatalf("per_minute=%v, want 5", fresh.Profile("").Movement.PerMinute)
	}
}

func TestProviderSetRawRejectsStaticSource(t *testing.T) {
	p := NewProvider(StaticSource{Rules: Defaults()})
	if _, err := p.SetRaw(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected error for read-only source")
	}
}
