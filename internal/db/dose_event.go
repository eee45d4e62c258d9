package db

import (
	"fmt"
	"strings"
	"time"
)

// DoseStatus 表示一次服药记录的结果，只有 Taken/Missed 两种取值
type DoseStatus string

const (
	DoseTaken  DoseStatus = "Taken"
	DoseMissed DoseStatus = "Missed"
)

// ParseDoseStatus 解析状态字符串，大小写不敏感
func ParseDoseStatus(raw string) (DoseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "taken":
		return DoseTaken, nil
	case "missed":
		return DoseMissed, nil
	default:
		return "", fmt.Errorf("unsupported dose status %q", raw)
	}
}

// Valid 判断状态是否属于闭合枚举
func (s DoseStatus) Valid() bool {
	return s == DoseTaken || s == DoseMissed
}

// DoseEvent 记录一次服药/漏服
// 只追加不修改：没有 UpdatedAt/DeletedAt，服务层也不暴露更新与删除
type DoseEvent struct {
	ID           uint       `gorm:"primaryKey"`
	UserID       uint       `gorm:"index:idx_dose_events_user_time;not null"`
	MedicationID uint       `gorm:"index;not null"`
	Medication   Medication `gorm:"constraint:OnDelete:RESTRICT"`
	OccurredAt   time.Time  `gorm:"index:idx_dose_events_user_time;not null"`
	Status       DoseStatus `gorm:"size:16;not null;check:chk_dose_events_status,status IN ('Taken','Missed')"`
	CreatedAt    time.Time
}

// TableName 指定自定义表名
func (DoseEvent) TableName() string {
	return "dose_events"
}
