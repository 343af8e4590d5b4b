package service

import "strings"

// maxTitleRunes 与 events.title 列宽一致
const maxTitleRunes = 255

// truncateRunes 按 rune 数量截断字符串，不切断多字节字符
func truncateRunes(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func normalizeTitle(title string) string {
	return truncateRunes(strings.TrimSpace(title), maxTitleRunes)
}
