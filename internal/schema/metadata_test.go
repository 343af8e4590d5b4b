package schema

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMetadataKnownAndExtraKeys(t *testing.T) {
	raw := map[string]any{
		"merchant":         "Cafe",
		"duration_minutes": "45",
		"ingredients":      []any{"Tofu", "rice", 3.0},
		"is_recurring":     true,
		"delivery":         "yes",
		"pain_level":       0.0,
		"pain_score":       4.0,
		"receipt_id":       "r-1",
	}
	m, err := ParseMetadata(raw)
	if err != nil {
		t.Fatalf("ParseMetadata error: %v", err)
	}
	if m.Merchant != "Cafe" {
		t.Fatalf("merchant=%q", m.Merchant)
	}
	if m.DurationMinutes == nil || *m.DurationMinutes != 45 {
		t.Fatalf("duration=%v, want 45", m.DurationMinutes)
	}
	if len(m.Ingredients) != 3 || !m.HasAnyIngredient("tofu") {
		t.Fatalf("ingredients=%v", m.Ingredients)
	}
	if !m.Recurring || !m.Shipped {
		t.Fatalf("recurring=%v shipped=%v, want both true", m.Recurring, m.Shipped)
	}
	if m.PainLevel == nil || *m.PainLevel != 4 {
		t.Fatalf("pain=%v, want fallback 4", m.PainLevel)
	}
	if m.Extra["receipt_id"] != "r-1" {
		t.Fatalf("extra=%v, want receipt_id passthrough", m.Extra)
	}
}

func TestParseMetadataRejectsWrongType(t *testing.T) {
	_, err := ParseMetadata(map[string]any{"steps": true})
	var me *MetadataError
	if !errors.As(err, &me) || me.Key != "steps" {
		t.Fatalf("err=%v, want MetadataError on steps", err)
	}
	if _, err := ParseMetadata(map[string]any{"next_due_date": "soon"}); err == nil {
		t.Fatalf("expected invalid date error")
	}
}

func TestMetadataJSONRoundTripKeepsExtra(t *testing.T) {
	in := []byte(`{"category":"healthy","custom":{"a":1},"shipping":true}`)
	var m EventMetadata
	if err := json.Unmarshal(in, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if back["shipped"] != true || back["category"] != "healthy" {
		t.Fatalf("back=%v", back)
	}
	if _, ok := back["custom"].(map[string]any); !ok {
		t.Fatalf("custom extra lost: %v", back)
	}
}
