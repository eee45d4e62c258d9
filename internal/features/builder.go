// Package features 将服药记录转换为分类模型使用的表格数据。
package features

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/medipredict/internal/db"
)

// ErrInsufficientData 表示数据不足以训练模型（零行或只有一个类别）
var ErrInsufficientData = errors.New("insufficient data")

// UnscheduledSlot 用于未填写时段的用药
const UnscheduledSlot = "Unscheduled"

const (
	// LabelMissed 漏服
	LabelMissed = 0
	// LabelTaken 已服
	LabelTaken = 1
)

// Event 为一次服药记录与其用药时段的拼接结果
type Event struct {
	OccurredAt time.Time
	Status     db.DoseStatus
	Slot       string
}

// Row 是一行训练样本
type Row struct {
	Hour      int
	DayOfWeek int
	Slot      string
	Label     int
}

// Table 为特征表，行顺序对下游没有意义
type Table struct {
	Rows []Row
}

// Build 从事件序列派生 hour/day-of-week/slot 特征。
// 时间按事件自身的时区取值，调用方负责统一时区。
func Build(events []Event) (Table, error) {
	if len(events) == 0 {
		return Table{}, fmt.Errorf("%w: no dose events", ErrInsufficientData)
	}

	rows := make([]Row, 0, len(events))
	for i, event := range events {
		label, err := labelFor(event.Status)
		if err != nil {
			return Table{}, fmt.Errorf("event %d: %w", i, err)
		}

		rows = append(rows, Row{
			Hour:      event.OccurredAt.Hour(),
			DayOfWeek: DayIndex(event.OccurredAt.Weekday()),
			Slot:      NormalizeSlot(event.Slot),
			Label:     label,
		})
	}

	return Table{Rows: rows}, nil
}

// NormalizeSlot 去除首尾空白，空值回退为 Unscheduled
func NormalizeSlot(slot string) string {
	trimmed := strings.TrimSpace(slot)
	if trimmed == "" {
		return UnscheduledSlot
	}
	return trimmed
}

// Len 返回行数
func (t Table) Len() int {
	return len(t.Rows)
}

// ClassCounts 返回 taken/missed 的样本数量
func (t Table) ClassCounts() (taken, missed int) {
	for _, row := range t.Rows {
		if row.Label == LabelTaken {
			taken++
		} else {
			missed++
		}
	}
	return taken, missed
}

// HasBothClasses 判断两个类别是否都出现
func (t Table) HasBothClasses() bool {
	taken, missed := t.ClassCounts()
	return taken > 0 && missed > 0
}

// Slots 返回出现过的时段标签，按字典序排列
func (t Table) Slots() []string {
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		seen[row.Slot] = struct{}{}
	}

	slots := make([]string, 0, len(seen))
	for slot := range seen {
		slots = append(slots, slot)
	}
	slices.Sort(slots)
	return slots
}

// Subset 按下标抽取子表
func (t Table) Subset(indices []int) Table {
	rows := make([]Row, 0, len(indices))
	for _, idx := range indices {
		rows = append(rows, t.Rows[idx])
	}
	return Table{Rows: rows}
}

func labelFor(status db.DoseStatus) (int, error) {
	switch status {
	case db.DoseTaken:
		return LabelTaken, nil
	case db.DoseMissed:
		return LabelMissed, nil
	default:
		return 0, fmt.Errorf("unsupported dose status %q", status)
	}
}
