package main

import (
	"reflect"
	"testing"

	"github.com/huangang/thesisdesk/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seed(t *testing.T, db *gorm.DB, id, email string) {
	t.Helper()
	u := models.User{ID: id, Role: models.RoleStudent, FirstName: "F", LastName: id, Email: email}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func emailOf(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()
	var u models.User
	if err := db.First(&u, "id = ?", id).Error; err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return u.Email
}

func TestNormalizeEmails(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "u1", " Grace@Example.edu")
	seed(t, db, "u2", "alan@example.edu")
	seed(t, db, "u3", "ADA@example.edu")
	seed(t, db, "u4", "ada@example.edu")

	r, err := normalizeEmails(db, false)
	if err != nil {
		t.Fatalf("normalizeEmails() error = %v", err)
	}
	if r.Scanned != 4 || r.Updated != 1 {
		t.Errorf("scanned/updated = %d/%d, expected 4/1", r.Scanned, r.Updated)
	}
	if got := emailOf(t, db, "u1"); got != "grace@example.edu" {
		t.Errorf("u1 email = %q, expected grace@example.edu", got)
	}
	if got := emailOf(t, db, "u3"); got != "ADA@example.edu" {
		t.Errorf("conflicting row should be left alone, got %q", got)
	}
	ids := r.Conflicts["ada@example.edu"]
	if len(ids) != 2 {
		t.Errorf("conflicts = %v, expected both ada rows", r.Conflicts)
	}
}

func TestNormalizeEmails_DryRun(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "u1", "Grace@Example.edu")

	r, err := normalizeEmails(db, true)
	if err != nil {
		t.Fatalf("normalizeEmails() error = %v", err)
	}
	if r.Updated != 1 {
		t.Errorf("Updated = %d, expected 1", r.Updated)
	}
	if got := emailOf(t, db, "u1"); got != "Grace@Example.edu" {
		t.Errorf("dry run wrote %q", got)
	}
	if !reflect.DeepEqual(r.Conflicts, map[string][]string{}) {
		t.Errorf("Conflicts = %v, expected none", r.Conflicts)
	}
}
