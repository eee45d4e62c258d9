package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medipredict/internal/db"
	"gorm.io/gorm"
)

// ErrMedicationNotFound 在用药不存在或不属于当前用户时返回
var ErrMedicationNotFound = errors.New("medication not found")

const maxMedicationNameLength = 128

// slotHours 将常见时段标签映射到提醒使用的默认时间
var slotHours = map[string]int{
	"morning":   8,
	"noon":      12,
	"afternoon": 14,
	"evening":   18,
	"night":     21,
	"bedtime":   22,
}

// MedicationService 负责用药的创建与查询，所有操作按会话用户过滤
type MedicationService struct {
	db *gorm.DB
}

// MedicationInput 定义创建用药时可配置字段
type MedicationInput struct {
	Name         string
	Dosage       string
	Schedule     string
	Instructions string
}

// DueDose 表示提醒窗口内的一次待服用药
type DueDose struct {
	Medication  db.Medication
	ScheduledAt time.Time
}

// NewMedicationService 构造 MedicationService
func NewMedicationService(gdb *gorm.DB) *MedicationService {
	return &MedicationService{db: gdb}
}

// Create 为当前用户新增用药
func (s *MedicationService) Create(sess Session, input MedicationInput) (*db.Medication, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}

	name := cleanText(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: medication name is required", ErrValidation)
	}
	if len([]rune(name)) > maxMedicationNameLength {
		return nil, fmt.Errorf("%w: medication name too long", ErrValidation)
	}

	medication := db.Medication{
		UserID:       sess.UserID,
		Name:         name,
		Dosage:       cleanText(input.Dosage),
		Schedule:     cleanText(input.Schedule),
		Instructions: strings.TrimSpace(input.Instructions),
	}

	if err := s.db.Create(&medication).Error; err != nil {
		return nil, fmt.Errorf("create medication: %w", err)
	}
	return &medication, nil
}

// List 返回当前用户的全部用药，按创建顺序排列
func (s *MedicationService) List(sess Session) ([]db.Medication, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}

	var medications []db.Medication
	if err := s.db.Where("user_id = ?", sess.UserID).
		Order("created_at ASC, id ASC").
		Find(&medications).Error; err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return medications, nil
}

// Get 根据 ID 获取当前用户的用药
func (s *MedicationService) Get(sess Session, id uint) (*db.Medication, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}

	var medication db.Medication
	if err := s.db.Where("id = ? AND user_id = ?", id, sess.UserID).First(&medication).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return &medication, nil
}

// DueAt 返回计划时间位于 now±window 内的用药。
// 无法解析为时间的时段标签（自由文本）不会出现在结果中。
func (s *MedicationService) DueAt(sess Session, now time.Time, window time.Duration) ([]DueDose, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", ErrValidation)
	}

	medications, err := s.List(sess)
	if err != nil {
		return nil, err
	}

	due := make([]DueDose, 0)
	for _, medication := range medications {
		hour, minute, ok := ScheduleClock(medication.Schedule)
		if !ok {
			continue
		}
		if scheduled, ok := nearestOccurrence(now, hour, minute, window); ok {
			due = append(due, DueDose{Medication: medication, ScheduledAt: scheduled})
		}
	}
	return due, nil
}

// ScheduleClock 解析时段描述：支持 15:04 格式或常见时段标签
func ScheduleClock(schedule string) (hour, minute int, ok bool) {
	value := strings.TrimSpace(schedule)
	if value == "" {
		return 0, 0, false
	}

	if t, err := time.Parse("15:04", value); err == nil {
		return t.Hour(), t.Minute(), true
	}

	if h, exists := slotHours[strings.ToLower(value)]; exists {
		return h, 0, true
	}
	return 0, 0, false
}

// nearestOccurrence 检查昨天/今天/明天的计划时间，处理跨零点的窗口
func nearestOccurrence(now time.Time, hour, minute int, window time.Duration) (time.Time, bool) {
	for _, offset := range []int{0, -1, 1} {
		day := now.AddDate(0, 0, offset)
		scheduled := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
		diff := now.Sub(scheduled)
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			return scheduled, true
		}
	}
	return time.Time{}, false
}
