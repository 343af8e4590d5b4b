package service

import (
	"testing"

	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

func TestScoreEventFoodHealthyPlantBased(t *testing.T) {
	got := ScoreEvent(ScoreInput{
		EventType: "Food",
		Category:  "nutrition",
		Metadata: schema.EventMetadata{
			NutritionQualityScore: num(8),
			Ingredients:           []string{"tofu", "rice"},
		},
	}, rules.Defaults())

	if *got.WellnessImpact != 50 {
		t.Fatalf("wellness=%v, want 50", *got.WellnessImpact)
	}
	if *got.SustainabilityImpact != 40 {
		t.Fatalf("sustainability=%v, want 40", *got.SustainabilityImpact)
	}
	if *got.CostImpact != 0 {
		t.Fatalf("cost=%v, want 0", *got.CostImpact)
	}
	if got.Explanations.Wellness != "Healthy meal (+50)" {
		t.Fatalf("wellness explanation=%q", got.Explanations.Wellness)
	}
	if got.Explanations.Sustainability != "Plant-based (+40)" {
		t.Fatalf("sustainability explanation=%q", got.Explanations.Sustainability)
	}
	if got.Explanations.Cost != "No cost impact." {
		t.Fatalf("cost explanation=%q", got.Explanations.Cost)
	}
}

func TestScoreEventMovementWalk(t *testing.T) {
	got := ScoreEvent(ScoreInput{
		EventType: schema.EventTypeMovement,
		Category:  schema.CategoryFitness,
		Metadata:  schema.EventMetadata{DurationMinutes: num(30), Type: "Walk"},
	}, nil)

	if *got.WellnessImpact != 60 {
		t.Fatalf("wellness=%v, want 60", *got.WellnessImpact)
	}
	if *got.SustainabilityImpact != 50 {
		t.Fatalf("sustainability=%v, want 50", *got.SustainabilityImpact)
	}
	if got.Explanations.Wellness != "Movement 30 min (+60)" {
		t.Fatalf("wellness explanation=%q", got.Explanations.Wellness)
	}
}

func TestScoreEventMovementCapped(t *testing.T) {
	got := ScoreEvent(ScoreInput{EventType: schema.EventTypeMovement, Category: schema.CategoryFitness, Amount: num(90)}, nil)
	if *got.WellnessImpact != 100 {
		t.Fatalf("wellness=%v, want 100", *got.WellnessImpact)
	}
}

func TestScoreEventSleepDeviation(t *testing.T) {
	got := ScoreEvent(ScoreInput{EventType: schema.EventTypeSleep, Category: schema.CategoryHealth, Amount: num(5)}, nil)
	if *got.WellnessImpact != -20 {
		t.Fatalf("wellness=%v, want -20", *got.WellnessImpact)
	}
	if got.Explanations.Wellness != "Sleep deviation 2.0h (-20)" {
		t.Fatalf("explanation=%q", got.Explanations.Wellness)
	}

	// amount 为 0 时回落到 metadata.hours
	optimal := ScoreEvent(ScoreInput{
		EventType: schema.EventTypeSleep,
		Category:  schema.CategoryHealth,
		Amount:    num(0),
		Metadata:  schema.EventMetadata{Hours: num(7.5)},
	}, nil)
	if *optimal.WellnessImpact != 0 {
		t.Fatalf("wellness=%v, want 0", *optimal.WellnessImpact)
	}
}

func TestScoreEventCost(t *testing.T) {
	spend := ScoreEvent(ScoreInput{EventType: schema.EventTypeSpending, Category: schema.CategoryFinance, Amount: num(25)}, nil)
	if *spend.CostImpact != -25 {
		t.Fatalf("cost=%v, want -25", *spend.CostImpact)
	}
	if spend.Explanations.Cost != "Spent $25.00" {
		t.Fatalf("cost explanation=%q", spend.Explanations.Cost)
	}

	big := ScoreEvent(ScoreInput{EventType: schema.EventTypeSpending, Category: schema.CategoryFinance, Amount: num(250)}, nil)
	if *big.CostImpact != -100 {
		t.Fatalf("cost=%v, want clamped -100", *big.CostImpact)
	}

	income := ScoreEvent(ScoreInput{EventType: schema.EventTypeHabit, Category: schema.CategoryFinance, Amount: num(40)}, nil)
	if *income.CostImpact != 40 {
		t.Fatalf("cost=%v, want 40", *income.CostImpact)
	}
}

func TestScoreEventProfileOverride(t *testing.T) {
	r := rules.Defaults()
	p := rules.DefaultProfile()
	p.Food.HealthyBonus = 20
	r.Profiles["strict"] = p

	got := ScoreEvent(ScoreInput{
		EventType: schema.EventTypeFood,
		Category:  schema.CategoryNutrition,
		Metadata:  schema.EventMetadata{Category: "fresh salad"},
		Profile:   "strict",
	}, r)
	if *got.WellnessImpact != 20 {
		t.Fatalf("wellness=%v, want 20", *got.WellnessImpact)
	}

	fallback := ScoreEvent(ScoreInput{
		EventType: schema.EventTypeFood,
		Category:  schema.CategoryNutrition,
		Metadata:  schema.EventMetadata{Category: "fresh salad"},
		Profile:   "missing",
	}, r)
	if *fallback.WellnessImpact != 50 {
		t.Fatalf("wellness=%v, want default 50", *fallback.WellnessImpact)
	}
}
