package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/yuqie6/LifeMirror/internal/pkg/mathx"
	"github.com/yuqie6/LifeMirror/internal/rules"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// ScoreInput 单事件评分输入
type ScoreInput struct {
	EventType string
	Category  string
	Amount    *float64
	Metadata  schema.EventMetadata
	Profile   string
}

var (
	healthyFlags   = []string{"healthy", "salad", "whole", "fresh"}
	junkFlags      = []string{"junk", "fast", "fried", "processed"}
	plantFoods     = []string{"tofu", "bean", "beans", "lentil", "vegetable", "veggie", "salad"}
	meatFoods      = []string{"beef", "pork", "lamb", "meat", "steak", "chicken"}
	processedFoods = []string{"processed", "frozen", "packaged", "chips", "soda"}
)

// ScoreEvent 计算单事件的健康/花费/可持续影响；纯函数，r 为 nil 时使用默认规则
func ScoreEvent(in ScoreInput, r *rules.Rules) schema.EventScores {
	profile := r.Profile(in.Profile)
	sus := rules.DefaultSustainability()
	if r != nil {
		sus = r.Sustainability
	}

	m := in.Metadata
	et := strings.ToLower(in.EventType)
	cat := strings.ToLower(in.Category)

	var wellness, cost, sustainability float64
	var wellExp, costExp, susExp []string

	switch et {
	case schema.EventTypeFood:
		bonus, penalty := profile.Food.HealthyBonus, profile.Food.JunkPenalty
		if q := m.NutritionQualityScore; q != nil {
			if *q >= 7 {
				wellness += bonus
				wellExp = append(wellExp, fmt.Sprintf("Healthy meal (+%d)", int(bonus)))
			} else if *q <= 3 {
				wellness += penalty
				wellExp = append(wellExp, fmt.Sprintf("Low quality meal (%d)", int(penalty)))
			}
		} else {
			flag := strings.ToLower(m.Category)
			if containsAny(flag, healthyFlags...) {
				wellness += bonus
				wellExp = append(wellExp, fmt.Sprintf("Healthy meal (+%d)", int(bonus)))
			} else if containsAny(flag, junkFlags...) {
				wellness += penalty
				wellExp = append(wellExp, fmt.Sprintf("Low quality meal (%d)", int(penalty)))
			}
		}

		// 配料命中可叠加
		if m.HasAnyIngredient(plantFoods...) {
			v := sus.Food.PlantBased
			sustainability += v
			susExp = append(susExp, fmt.Sprintf("Plant-based (+%d)", int(v)))
		}
		if m.HasAnyIngredient(meatFoods...) {
			v := sus.Food.Meat
			sustainability += v
			susExp = append(susExp, fmt.Sprintf("Meat (%d)", int(v)))
		}
		if m.HasAnyIngredient(processedFoods...) {
			v := sus.Food.Processed
			sustainability += v
			susExp = append(susExp, fmt.Sprintf("Processed (%d)", int(v)))
		}

	case schema.EventTypeMovement:
		duration := orFloat(m.DurationMinutes, 0)
		if duration == 0 {
			duration = orFloat(in.Amount, 0)
		}
		score := math.Min(profile.Movement.Max, duration*profile.Movement.PerMinute)
		wellness += score
		if duration > 0 {
			wellExp = append(wellExp, fmt.Sprintf("Movement %d min (+%d)", int(duration), int(score)))
		}

		mode := m.TypeLower()
		switch {
		case strings.Contains(mode, "walk"):
			v := sus.Transport.Walk
			sustainability += v
			susExp = append(susExp, fmt.Sprintf("Walking (+%d)", int(v)))
		case strings.Contains(mode, "bike"):
			v := sus.Transport.Bike
			sustainability += v
			susExp = append(susExp, fmt.Sprintf("Biking (+%d)", int(v)))
		case strings.Contains(mode, "car"), strings.Contains(mode, "drive"):
			v := sus.Transport.Car
			sustainability += v
			susExp = append(susExp, fmt.Sprintf("Car travel (%d)", int(v)))
		}

	case schema.EventTypeSleep:
		// amount 为 0 或缺失时回落到 metadata.hours
		hours := in.Amount
		if hours == nil || *hours == 0 {
			hours = m.Hours
		}
		if hours != nil {
			h := *hours
			lo, hi := profile.Sleep.OptimalMin, profile.Sleep.OptimalMax
			if h >= lo && h <= hi {
				wellExp = append(wellExp, "Optimal sleep window (0)")
			} else {
				diff := h - hi
				if h < lo {
					diff = lo - h
				}
				delta := diff * profile.Sleep.PenaltyPerHour
				wellness += delta
				wellExp = append(wellExp, fmt.Sprintf("Sleep deviation %.1fh (%d)", diff, int(delta)))
			}
		}

	case schema.EventTypeSocial:
		wellness = 30
		wellExp = append(wellExp, "Social connection (+30)")
	}

	if in.Amount != nil {
		a := *in.Amount
		if et == schema.EventTypeSpending {
			cost = -math.Abs(a)
			costExp = append(costExp, fmt.Sprintf("Spent $%.2f", math.Abs(a)))
		} else if cat == schema.CategoryFinance {
			cost = a
			costExp = append(costExp, fmt.Sprintf("Income $%.2f", a))
		}
	}

	return schema.EventScores{
		WellnessImpact:       schema.Float(mathx.Clamp(wellness, -100, 100)),
		CostImpact:           schema.Float(mathx.Clamp(mathx.Round2(cost), -100, 100)),
		SustainabilityImpact: schema.Float(mathx.Clamp(sustainability, -100, 100)),
		Explanations: schema.ScoreExplanations{
			Wellness:       joinOr(wellExp, "No wellness impact."),
			Cost:           joinOr(costExp, "No cost impact."),
			Sustainability: joinOr(susExp, "No sustainability impact."),
		},
	}
}

func joinOr(parts []string, empty string) string {
	if len(parts) == 0 {
		return empty
	}
	return strings.Join(parts, ", ")
}

func orFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
