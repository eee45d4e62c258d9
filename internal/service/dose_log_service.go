package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/medipredict/internal/db"
	"github.com/medipredict/internal/features"
	"github.com/medipredict/internal/metrics"
	"gorm.io/gorm"
)

// DoseLogService 是只追加的服药记录存储：不提供更新或删除。
// 每次追加在单独事务内完成归属校验与插入，互不影响。
type DoseLogService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewDoseLogService 构造 DoseLogService，m 可以为 nil
func NewDoseLogService(gdb *gorm.DB, m *metrics.Metrics) *DoseLogService {
	return &DoseLogService{db: gdb, metrics: m, now: time.Now}
}

// WithClock 替换时钟，便于测试
func (s *DoseLogService) WithClock(now func() time.Time) *DoseLogService {
	if now != nil {
		s.now = now
	}
	return s
}

// LogDose 以当前时间记录一次服药结果
func (s *DoseLogService) LogDose(sess Session, medicationID uint, status db.DoseStatus) (*db.DoseEvent, error) {
	return s.Append(sess, medicationID, s.now(), status)
}

// Append 追加一条记录。medication 必须属于会话用户，status 只能是 Taken/Missed。
func (s *DoseLogService) Append(sess Session, medicationID uint, occurredAt time.Time, status db.DoseStatus) (*db.DoseEvent, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status must be Taken or Missed, got %q", ErrValidation, status)
	}
	if medicationID == 0 {
		return nil, fmt.Errorf("%w: medication id is required", ErrValidation)
	}
	if occurredAt.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is required", ErrValidation)
	}

	event := db.DoseEvent{
		UserID:       sess.UserID,
		MedicationID: medicationID,
		OccurredAt:   occurredAt,
		Status:       status,
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&db.Medication{}).
			Where("id = ? AND user_id = ?", medicationID, sess.UserID).
			Count(&owned).Error; err != nil {
			return fmt.Errorf("check medication owner: %w", err)
		}
		if owned == 0 {
			return fmt.Errorf("%w: medication %d does not belong to user %d", ErrValidation, medicationID, sess.UserID)
		}

		return tx.Omit("Medication").Create(&event).Error
	}); err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("append dose event: %w", err)
	}

	s.metrics.RecordDoseEvent(string(status))
	return &event, nil
}

// ListByUser 返回会话用户的全部记录，按发生时间升序；没有记录时返回空切片
func (s *DoseLogService) ListByUser(sess Session) ([]db.DoseEvent, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}

	events := make([]db.DoseEvent, 0)
	if err := s.db.Where("user_id = ?", sess.UserID).
		Order("occurred_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list dose events: %w", err)
	}
	return events, nil
}

// ListWithSlots 返回用户记录与其用药时段拼接后的结果，供特征构建使用
func (s *DoseLogService) ListWithSlots(userID uint) ([]features.Event, error) {
	return s.eventsWithSlots(s.db.Where("dose_events.user_id = ?", userID))
}

// ListAllWithSlots 与 ListWithSlots 相同，但覆盖全部用户
func (s *DoseLogService) ListAllWithSlots() ([]features.Event, error) {
	return s.eventsWithSlots(s.db)
}

func (s *DoseLogService) eventsWithSlots(scope *gorm.DB) ([]features.Event, error) {
	events := make([]features.Event, 0)
	if err := scope.Model(&db.DoseEvent{}).
		Select("dose_events.occurred_at AS occurred_at, dose_events.status AS status, medications.schedule AS slot").
		Joins("JOIN medications ON medications.id = dose_events.medication_id AND medications.user_id = dose_events.user_id").
		Order("dose_events.occurred_at ASC, dose_events.id ASC").
		Scan(&events).Error; err != nil {
		return nil, fmt.Errorf("list dose events with slots: %w", err)
	}
	return events, nil
}
