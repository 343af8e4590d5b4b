package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/yuqie6/LifeMirror/internal/schema"
	"github.com/yuqie6/LifeMirror/internal/service"
)

// seedDemoCmd 写入一段可复现的演示数据
func seedDemoCmd() *cobra.Command {
	var days int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "seed-demo",
		Short: "生成演示用户与若干天的事件",
		Run: func(cmd *cobra.Command, args []string) {
			uid := userID
			if uid == "" {
				uid = uuid.NewString()
			}
			inputs := demoEvents(uid, days, seed, time.Now().UTC())
			n, err := core.Services.Events.Import(context.Background(), inputs)
			exitOnErr("写入演示数据失败", err)

			res, err := core.Services.SnapshotJob.Run(context.Background(), today(), days)
			exitOnErr("生成快照失败", err)
			fmt.Printf("✅ 用户 %s: %d 个事件，快照用户 %d\n", uid, n, res.Succeeded)
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "天数")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "随机种子")
	return cmd
}

func demoEvents(uid string, days int, seed uint64, now time.Time) []service.CreateEventInput {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	ts := func(day time.Time, hour int) int64 {
		return day.Add(time.Duration(hour) * time.Hour).UnixMilli()
	}
	amount := func(v float64) *float64 { return &v }

	var out []service.CreateEventInput
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		hours := 5.5 + rng.Float64()*3

		out = append(out,
			service.CreateEventInput{
				UserID: uid, EventType: schema.EventTypeSleep, Category: schema.CategoryHealth,
				Title: "Sleep", Timestamp: ts(day, 7), Amount: amount(round1(hours)),
			},
			service.CreateEventInput{
				UserID: uid, EventType: schema.EventTypeFood, Category: schema.CategoryNutrition,
				Title: "Lunch bowl", Timestamp: ts(day, 12),
				Metadata: map[string]any{
					"nutrition_quality_score": 4 + rng.IntN(6),
					"ingredients":             []string{pick(rng, "tofu", "chicken", "beef", "lentils"), "rice"},
				},
			},
			service.CreateEventInput{
				UserID: uid, EventType: schema.EventTypeSpending, Category: schema.CategoryNutrition,
				Title: "Groceries", Timestamp: ts(day, 18), Amount: amount(float64(10 + rng.IntN(60))),
				Metadata: map[string]any{"merchant": pick(rng, "Market", "Corner Shop"), "category": "groceries"},
			},
			service.CreateEventInput{
				UserID: uid, EventType: schema.EventTypeWork, Category: schema.CategoryProductivity,
				Title: "Focus session", Timestamp: ts(day, 9),
				Metadata: map[string]any{"duration_minutes": 30 + rng.IntN(120)},
			},
		)

		if rng.IntN(3) > 0 {
			out = append(out, service.CreateEventInput{
				UserID: uid, EventType: schema.EventTypeMovement, Category: schema.CategoryFitness,
				Title: pick(rng, "Morning run", "Evening walk", "Yoga"), Timestamp: ts(day, 17),
				Metadata: map[string]any{"duration_minutes": 15 + rng.IntN(45), "steps": 3000 + rng.IntN(9000)},
			})
		}
		if rng.IntN(4) == 0 {
			out = append(out, service.CreateEventInput{
				UserID: uid, EventType: schema.EventTypeSocial, Category: schema.CategorySocial,
				Title: "Dinner with friends", Timestamp: ts(day, 20),
				Metadata: map[string]any{"group": true, "social_context": "friends"},
			})
		}
		if i%7 == 0 {
			out = append(out, service.CreateEventInput{
				UserID: uid, EventType: schema.EventTypeSpending, Category: schema.CategoryFinance,
				Title: "Streaming subscription", Timestamp: ts(day, 8), Amount: amount(15),
				Metadata: map[string]any{"recurring": true, "recurring_interval_days": 30},
			})
		}
		out = append(out, service.CreateEventInput{
			UserID: uid, EventType: schema.EventTypeMood, Category: schema.CategoryHealth,
			Title: "Mood check-in", Timestamp: ts(day, 21), Amount: amount(float64(3 + rng.IntN(7))),
			Metadata: map[string]any{"mood": pick(rng, "calm", "stressed", "happy", "tired")},
		})
	}
	return out
}

func pick(rng *rand.Rand, options ...string) string {
	return options[rng.IntN(len(options))]
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// decodeEvents 解析 JSON 数组；未带 user_id 的事件使用 --user
func decodeEvents(data []byte, defaultUser string) ([]service.CreateEventInput, error) {
	var inputs []service.CreateEventInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, err
	}
	for i := range inputs {
		if inputs[i].UserID == "" {
			inputs[i].UserID = defaultUser
		}
	}
	return inputs, nil
}

// shiftDate 日期键平移 n 天；无法解析时原样返回
func shiftDate(date string, n int) string {
	t, err := time.ParseInLocation(schema.DateLayout, date, time.UTC)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(schema.DateLayout)
}
