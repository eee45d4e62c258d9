package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/medipredict/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(db.Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return gdb, func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

// createTestUser 注册用户并返回对应会话
func createTestUser(t *testing.T, gdb *gorm.DB, username string) Session {
	t.Helper()
	user, err := NewUserService(gdb).WithHashCost(bcrypt.MinCost).Register(RegisterInput{
		Username: username,
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return NewSession(user.ID, user.Username)
}

func createTestMedication(t *testing.T, gdb *gorm.DB, sess Session, name, schedule string) *db.Medication {
	t.Helper()
	medication, err := NewMedicationService(gdb).Create(sess, MedicationInput{Name: name, Dosage: "10mg", Schedule: schedule})
	if err != nil {
		t.Fatalf("create medication %s: %v", name, err)
	}
	return medication
}

// monday 2024-01-01 为周一
func monday(hour, minute int) time.Time {
	return time.Date(2024, time.January, 1, hour, minute, 0, 0, time.UTC)
}
