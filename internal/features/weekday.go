package features

import (
	"strings"
	"time"
)

// DayNames 以周一为 0，与 pandas 的 dayofweek 保持一致
var DayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayIndex 将 time.Weekday（周日为 0）转换为周一为 0 的下标
func DayIndex(weekday time.Weekday) int {
	return (int(weekday) + 6) % 7
}

// DayName 返回下标对应的英文星期名，越界时返回空串
func DayName(index int) string {
	if index < 0 || index >= len(DayNames) {
		return ""
	}
	return DayNames[index]
}

// ParseDay 支持完整名称、三字母缩写（大小写不敏感）
func ParseDay(raw string) (int, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, false
	}
	for i, name := range DayNames {
		lower := strings.ToLower(name)
		if value == lower || value == lower[:3] {
			return i, true
		}
	}
	return 0, false
}
