package service

import (
	"context"
	"strings"
	"time"

	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

// 日期键均为 UTC 日历日

func dayKey(t time.Time) string {
	return t.UTC().Format(schema.DateLayout)
}

func parseDay(date string) (time.Time, error) {
	t, err := time.ParseInLocation(schema.DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, invalid("date", "必须是 YYYY-MM-DD")
	}
	return t, nil
}

func mustDay(date string) time.Time {
	t, _ := time.ParseInLocation(schema.DateLayout, date, time.UTC)
	return t
}

func addDays(date string, n int) string {
	return mustDay(date).AddDate(0, 0, n).Format(schema.DateLayout)
}

func todayKey(now func() time.Time) string {
	return dayKey(now())
}

// daysBetween [start, end] 逐日日期键
func daysBetween(start, end string) []string {
	s, e := mustDay(start), mustDay(end)
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(schema.DateLayout))
	}
	return out
}

// weekStartMonday 周一对齐（趋势桶）
func weekStartMonday(t time.Time) string {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return dayKey(time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC))
}

// weekStartSunday 周日对齐（模式检测）
func weekStartSunday(t time.Time) string {
	t = t.UTC()
	return dayKey(time.Date(t.Year(), t.Month(), t.Day()-int(t.Weekday()), 0, 0, 0, 0, time.UTC))
}

func monthStart(t time.Time) string {
	t = t.UTC()
	return dayKey(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC))
}

// addMonths 月份相加，日期溢出时截到月末
func addMonths(t time.Time, months int) time.Time {
	t = t.UTC()
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// loadEvents 读取 [startDate, endDate] 内的事件
func loadEvents(ctx context.Context, repo EventRepository, userID, startDate, endDate string, types ...string) ([]schema.Event, error) {
	start, end, err := repository.DateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return repo.Query(ctx, repository.EventQuery{UserID: userID, Start: start, End: end, Types: types})
}

// containsAny 小写后子串匹配任一关键字
func containsAny(s string, keywords ...string) bool {
	s = strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func inSet(s string, set ...string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
