package repository

import (
	"fmt"
	"time"

	"github.com/yuqie6/LifeMirror/internal/schema"
)

// DayRange 将 YYYY-MM-DD 解析为 UTC 日区间的毫秒时间戳 [start, end]（闭区间）
func DayRange(date string) (startMs int64, endMs int64, err error) {
	return DateRange(date, date)
}

// DateRange 两个日期（含）覆盖的 UTC 毫秒区间
func DateRange(startDate, endDate string) (startMs int64, endMs int64, err error) {
	s, err := time.ParseInLocation(schema.DateLayout, startDate, time.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("解析日期失败: %w", err)
	}
	e, err := time.ParseInLocation(schema.DateLayout, endDate, time.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("解析日期失败: %w", err)
	}
	return s.UnixMilli(), e.Add(24*time.Hour).UnixMilli() - 1, nil
}

// DayStart 日期键当天 UTC 零点
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
