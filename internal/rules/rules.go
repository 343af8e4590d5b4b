package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DefaultProfileName 未指定画像时优先使用的画像
const DefaultProfileName = "Student"

// FoodRules 饮食评分
type FoodRules struct {
	HealthyBonus float64 `json:"healthy_bonus" yaml:"healthy_bonus"`
	JunkPenalty  float64 `json:"junk_penalty" yaml:"junk_penalty"`
}

// MovementRules 运动评分
type MovementRules struct {
	PerMinute float64 `json:"per_minute" yaml:"per_minute"`
	Max       float64 `json:"max" yaml:"max"`
}

// SleepRules 睡眠评分
type SleepRules struct {
	OptimalMin     float64 `json:"optimal_min" yaml:"optimal_min"`
	OptimalMax     float64 `json:"optimal_max" yaml:"optimal_max"`
	PenaltyPerHour float64 `json:"penalty_per_hour" yaml:"penalty_per_hour"`
}

// Profile 单个行为画像的评分参数
type Profile struct {
	Food     FoodRules     `json:"food" yaml:"food"`
	Movement MovementRules `json:"movement" yaml:"movement"`
	Sleep    SleepRules    `json:"sleep" yaml:"sleep"`
}

// FoodSustainability 配料可持续性增减
type FoodSustainability struct {
	PlantBased float64 `json:"plant_based" yaml:"plant_based"`
	Meat       float64 `json:"meat" yaml:"meat"`
	Processed  float64 `json:"processed" yaml:"processed"`
}

// TransportSustainability 出行方式可持续性增减
type TransportSustainability struct {
	Walk float64 `json:"walk" yaml:"walk"`
	Bike float64 `json:"bike" yaml:"bike"`
	Car  float64 `json:"car" yaml:"car"`
}

// Sustainability 可持续性规则
type Sustainability struct {
	Food      FoodSustainability      `json:"food" yaml:"food"`
	Transport TransportSustainability `json:"transport" yaml:"transport"`
}

// Rules 评分规则快照；构造后只读，可在多个 goroutine 间共享
type Rules struct {
	Profiles       map[string]Profile `json:"profiles" yaml:"profiles"`
	Sustainability Sustainability     `json:"sustainability" yaml:"sustainability"`
}

// DefaultProfile 缺失叶子节点时的回落值
func DefaultProfile() Profile {
	return Profile{
		Food:     FoodRules{HealthyBonus: 50, JunkPenalty: -30},
		Movement: MovementRules{PerMinute: 2, Max: 100},
		Sleep:    SleepRules{OptimalMin: 7, OptimalMax: 8, PenaltyPerHour: -10},
	}
}

// DefaultSustainability 缺失叶子节点时的回落值
func DefaultSustainability() Sustainability {
	return Sustainability{
		Food:      FoodSustainability{PlantBased: 40, Meat: -30, Processed: -20},
		Transport: TransportSustainability{Walk: 50, Bike: 45, Car: -30},
	}
}

// Defaults 仅包含默认画像的规则（用于初始化配置文件与测试）
func Defaults() *Rules {
	return &Rules{
		Profiles:       map[string]Profile{DefaultProfileName: DefaultProfile()},
		Sustainability: DefaultSustainability(),
	}
}

// Profile 选择画像：指定画像 → Student → 按名称排序的第一个 → 默认值
func (r *Rules) Profile(name string) Profile {
	if r == nil || len(r.Profiles) == 0 {
		return DefaultProfile()
	}
	if name != "" {
		if p, ok := r.Profiles[name]; ok {
			return p
		}
	}
	if p, ok := r.Profiles[DefaultProfileName]; ok {
		return p
	}
	names := r.ProfileNames()
	return r.Profiles[names[0]]
}

// ProfileNames 排序后的画像名
func (r *Rules) ProfileNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Profiles))
	for k := range r.Profiles {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Parse 从规则树构建快照；只校验数值叶子，缺失叶子回落默认值
func Parse(tree map[string]any) (*Rules, error) {
	out := &Rules{Profiles: make(map[string]Profile)}

	profiles, err := child(tree, "profiles")
	if err != nil {
		return nil, err
	}
	for name, raw := range profiles {
		node, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("profiles.%s 必须是对象", name)
		}
		p, err := parseProfile(name, node)
		if err != nil {
			return nil, err
		}
		out.Profiles[name] = p
	}

	sus, err := child(tree, "sustainability")
	if err != nil {
		return nil, err
	}
	out.Sustainability, err = parseSustainability(sus)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseJSON 解析 JSON 规则文档
func ParseJSON(data []byte) (*Rules, error) {
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("解析规则 JSON 失败: %w", err)
	}
	return Parse(tree)
}

// Tree 转回规则树（写入文件/Redis 时使用）
func (r *Rules) Tree() map[string]any {
	profiles := make(map[string]any, len(r.Profiles))
	for name, p := range r.Profiles {
		profiles[name] = map[string]any{
			"food": map[string]any{
				"healthy_bonus": p.Food.HealthyBonus,
				"junk_penalty":  p.Food.JunkPenalty,
			},
			"movement": map[string]any{
				"per_minute": p.Movement.PerMinute,
				"max":        p.Movement.Max,
			},
			"sleep": map[string]any{
				"optimal_min":      p.Sleep.OptimalMin,
				"optimal_max":      p.Sleep.OptimalMax,
				"penalty_per_hour": p.Sleep.PenaltyPerHour,
			},
		}
	}
	s := r.Sustainability
	return map[string]any{
		"profiles": profiles,
		"sustainability": map[string]any{
			"food": map[string]any{
				"plant_based": s.Food.PlantBased,
				"meat":        s.Food.Meat,
				"processed":   s.Food.Processed,
			},
			"transport": map[string]any{
				"walk": s.Transport.Walk,
				"bike": s.Transport.Bike,
				"car":  s.Transport.Car,
			},
		},
	}
}

func parseProfile(name string, node map[string]any) (Profile, error) {
	p := DefaultProfile()
	prefix := "profiles." + name

	food, err := child(node, "food")
	if err != nil {
		return p, fmt.Errorf("%s: %w", prefix, err)
	}
	movement, err := child(node, "movement")
	if err != nil {
		return p, fmt.Errorf("%s: %w", prefix, err)
	}
	sleep, err := child(node, "sleep")
	if err != nil {
		return p, fmt.Errorf("%s: %w", prefix, err)
	}

	fields := []struct {
		node map[string]any
		key  string
		dst  *float64
	}{
		{food, "healthy_bonus", &p.Food.HealthyBonus},
		{food, "junk_penalty", &p.Food.JunkPenalty},
		{movement, "per_minute", &p.Movement.PerMinute},
		{movement, "max", &p.Movement.Max},
		{sleep, "optimal_min", &p.Sleep.OptimalMin},
		{sleep, "optimal_max", &p.Sleep.OptimalMax},
		{sleep, "penalty_per_hour", &p.Sleep.PenaltyPerHour},
	}
	for _, f := range fields {
		if err := leaf(f.node, f.key, f.dst); err != nil {
			return p, fmt.Errorf("%s: %w", prefix, err)
		}
	}
	return p, nil
}

func parseSustainability(node map[string]any) (Sustainability, error) {
	s := DefaultSustainability()
	food, err := child(node, "food")
	if err != nil {
		return s, fmt.Errorf("sustainability: %w", err)
	}
	transport, err := child(node, "transport")
	if err != nil {
		return s, fmt.Errorf("sustainability: %w", err)
	}

	fields := []struct {
		node map[string]any
		key  string
		dst  *float64
	}{
		{food, "plant_based", &s.Food.PlantBased},
		{food, "meat", &s.Food.Meat},
		{food, "processed", &s.Food.Processed},
		{transport, "walk", &s.Transport.Walk},
		{transport, "bike", &s.Transport.Bike},
		{transport, "car", &s.Transport.Car},
	}
	for _, f := range fields {
		if err := leaf(f.node, f.key, f.dst); err != nil {
			return s, fmt.Errorf("sustainability: %w", err)
		}
	}
	return s, nil
}

// child 取子对象；缺失返回 nil，类型不对报错
func child(node map[string]any, key string) (map[string]any, error) {
	if node == nil {
		return nil, nil
	}
	raw, ok := node[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s 必须是对象", key)
	}
}

// leaf 读取数值叶子；缺失时保持 dst 原值
func leaf(node map[string]any, key string, dst *float64) error {
	if node == nil {
		return nil
	}
	raw, ok := node[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*dst = v
	case float32:
		*dst = float64(v)
	case int:
		*dst = float64(v)
	case int64:
		*dst = float64(v)
	case uint64:
		*dst = float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s 必须是数字", key)
		}
		*dst = f
	default:
		return fmt.Errorf("%s 必须是数字", key)
	}
	return nil
}
