package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDBTest(t *testing.T) func() {
	t.Helper()
	dsn := fmt.Sprintf("file:db-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := gdb.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	DB = gdb
	return func() {
		Close()
		DB = nil
	}
}

func TestParseDoseStatus(t *testing.T) {
	for raw, want := range map[string]DoseStatus{"Taken": DoseTaken, " missed ": DoseMissed, "TAKEN": DoseTaken} {
		got, err := ParseDoseStatus(raw)
		if err != nil || got != want {
			t.Fatalf("ParseDoseStatus(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseDoseStatus("Skipped"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if DoseStatus("skipped").Valid() {
		t.Fatal("unexpected valid status")
	}
}

func TestDoseStatusCheckConstraint(t *testing.T) {
	cleanup := setupDBTest(t)
	defer cleanup()

	user := User{Username: "alice", Password: "x"}
	DB.Create(&user)
	med := Medication{UserID: user.ID, Name: "Aspirin"}
	DB.Omit("User").Create(&med)

	bad := DoseEvent{UserID: user.ID, MedicationID: med.ID, OccurredAt: time.Now(), Status: "Skipped"}
	if err := DB.Omit("Medication").Create(&bad).Error; err == nil {
		t.Fatal("expected check constraint to reject unknown status")
	}

	good := DoseEvent{UserID: user.ID, MedicationID: med.ID, OccurredAt: time.Now(), Status: DoseTaken}
	if err := DB.Omit("Medication").Create(&good).Error; err != nil {
		t.Fatalf("insert valid event: %v", err)
	}
}

func TestEnsureUser(t *testing.T) {
	cleanup := setupDBTest(t)
	defer cleanup()

	if err := EnsureUser("", "secret"); err != nil {
		t.Fatalf("blank username should be ignored: %v", err)
	}
	if err := EnsureUser("seed", "secret123"); err != nil {
		t.Fatalf("EnsureUser returned error: %v", err)
	}
	if err := EnsureUser("seed", "other-password"); err != nil {
		t.Fatalf("second EnsureUser returned error: %v", err)
	}

	var users []User
	DB.Where("username = ?", "seed").Find(&users)
	if len(users) != 1 {
		t.Fatalf("expected exactly one seed user, got %d", len(users))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("secret123")); err != nil {
		t.Fatal("seed password should keep the first value")
	}
}

func TestInitCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "medipredict.db")
	if err := Init(path); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	defer func() {
		Close()
		DB = nil
	}()

	if !DB.Migrator().HasTable(&DoseEvent{}) {
		t.Fatal("expected dose_events table")
	}
}

func TestDuplicateUsernameTranslated(t *testing.T) {
	cleanup := setupDBTest(t)
	defer cleanup()

	if err := DB.Create(&User{Username: "twin", Password: "x"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := DB.Create(&User{Username: "twin", Password: "y"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
}
