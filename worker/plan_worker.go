package worker

import (
	"context"
	"log"
	"time"

	"dealflow/models"

	"gorm.io/gorm"
)

// PlanWorker closes weekly activity plans whose week has ended. Unrelated
// to the mail engine; a simple batch state transition.
type PlanWorker struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewPlanWorker(db *gorm.DB, logger *log.Logger) *PlanWorker {
	return &PlanWorker{
		db:     db,
		logger: logger,
	}
}

func (pw *PlanWorker) Start(ctx context.Context) {
	pw.logger.Println("Starting weekly plan worker...")

	if err := pw.CloseCompletedWeeks(); err != nil {
		pw.logger.Printf("Failed to close past weekly plans on startup: %v", err)
	}

	ticker := time.NewTicker(time.Hour)
	for {
		select {
		case <-ticker.C:
			if err := pw.CloseCompletedWeeks(); err != nil {
				pw.logger.Printf("Failed to close past weekly plans: %v", err)
			}
		case <-ctx.Done():
			pw.logger.Println("Stopping weekly plan worker...")
			ticker.Stop()
			return
		}
	}
}

// CloseCompletedWeeks marks every still-open plan whose end date has
// passed as closed.
func (pw *PlanWorker) CloseCompletedWeeks() error {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	var plans []models.WeeklyActivityPlan
	if err := pw.db.Where("status <> ? AND week_end < ?", models.PlanStatusClosed, today).Find(&plans).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, plan := range plans {
		updates := map[string]interface{}{
			"status":    models.PlanStatusClosed,
			"closed_at": now,
		}
		if err := pw.db.Model(&plan).Updates(updates).Error; err != nil {
			return err
		}
		pw.logger.Printf("Closed weekly plan %s (week ending %s)", plan.ID, plan.WeekEnd.Format("2006-01-02"))
	}

	return nil
}
