package worker

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"dealflow/config"
	"dealflow/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func createPlan(t *testing.T, db *gorm.DB, weekStart time.Time, status string) *models.WeeklyActivityPlan {
	t.Helper()
	plan := models.WeeklyActivityPlan{
		ID:        uuid.NewString(),
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 6),
		Status:    status,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("failed to create plan: %v", err)
	}
	return &plan
}

func TestCloseCompletedWeeks(t *testing.T) {
	db := newTestDB(t)
	pw := NewPlanWorker(db, log.New(io.Discard, "", 0))

	now := time.Now().UTC().Truncate(24 * time.Hour)

	past := createPlan(t, db, now.AddDate(0, 0, -14), models.PlanStatusOpen)
	current := createPlan(t, db, now.AddDate(0, 0, -2), models.PlanStatusOpen)
	alreadyClosed := createPlan(t, db, now.AddDate(0, 0, -21), models.PlanStatusClosed)

	if err := pw.CloseCompletedWeeks(); err != nil {
		t.Fatalf("CloseCompletedWeeks failed: %v", err)
	}

	// Fresh destination per lookup: reusing one struct would leave its
	// primary key set and turn the next First into id = ? AND id = ?.
	var gotPast models.WeeklyActivityPlan
	if err := db.First(&gotPast, "id = ?", past.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotPast.Status != models.PlanStatusClosed {
		t.Errorf("past plan status = %q, want closed", gotPast.Status)
	}
	if gotPast.ClosedAt == nil {
		t.Error("past plan closed_at not set")
	}

	var gotCurrent models.WeeklyActivityPlan
	if err := db.First(&gotCurrent, "id = ?", current.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotCurrent.Status != models.PlanStatusOpen {
		t.Errorf("current week's plan status = %q, want open", gotCurrent.Status)
	}

	var gotClosed models.WeeklyActivityPlan
	if err := db.First(&gotClosed, "id = ?", alreadyClosed.ID).Error; err != nil {
		t.Fatal(err)
	}
	if gotClosed.Status != models.PlanStatusClosed {
		t.Errorf("already-closed plan status = %q", gotClosed.Status)
	}
}

func TestCloseCompletedWeeksIdempotent(t *testing.T) {
	db := newTestDB(t)
	pw := NewPlanWorker(db, log.New(io.Discard, "", 0))

	now := time.Now().UTC().Truncate(24 * time.Hour)
	past := createPlan(t, db, now.AddDate(0, 0, -14), models.PlanStatusOpen)

	if err := pw.CloseCompletedWeeks(); err != nil {
		t.Fatal(err)
	}

	var first models.WeeklyActivityPlan
	if err := db.First(&first, "id = ?", past.ID).Error; err != nil {
		t.Fatal(err)
	}

	if err := pw.CloseCompletedWeeks(); err != nil {
		t.Fatal(err)
	}

	var second models.WeeklyActivityPlan
	if err := db.First(&second, "id = ?", past.ID).Error; err != nil {
		t.Fatal(err)
	}
	if second.ClosedAt == nil || first.ClosedAt == nil || !second.ClosedAt.Equal(*first.ClosedAt) {
		t.Errorf("second pass rewrote closed_at: %v vs %v", second.ClosedAt, first.ClosedAt)
	}
}
