package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"dealflow/models"
	"dealflow/utils"
)

type ActivityController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewActivityController(db *gorm.DB, logger *log.Logger) *ActivityController {
	return &ActivityController{
		DB:     db,
		Logger: logger,
	}
}

type MetricRequest struct {
	Label       string `json:"label" validate:"required,max=200"`
	TargetCount int    `json:"target_count" validate:"min=0"`
	ActualCount int    `json:"actual_count" validate:"min=0"`
	SortOrder   int    `json:"sort_order"`
}

type UpsertPlanRequest struct {
	WeekStart string          `json:"week_start" validate:"required,datetime=2006-01-02"`
	Metrics   []MetricRequest `json:"metrics" validate:"omitempty,dive"`
}

// GetPlan returns the plan covering the requested week (query param
// week_start, default: the current week's Monday).
func (ac *ActivityController) GetPlan(c *fiber.Ctx) error {
	weekStart, err := resolveWeekStart(c.Query("week_start"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid week_start, expected YYYY-MM-DD", err)
	}

	var plan models.WeeklyActivityPlan
	if err := ac.DB.Preload("Metrics", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).Where("week_start = ?", weekStart).First(&plan).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No plan for this week", nil)
	}

	return c.JSON(utils.SuccessResponse(plan))
}

// UpsertPlan creates or replaces the plan for a week. Closed plans are
// immutable.
func (ac *ActivityController) UpsertPlan(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req UpsertPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	weekStart, err := resolveWeekStart(req.WeekStart)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid week_start, expected YYYY-MM-DD", err)
	}
	weekEnd := weekStart.AddDate(0, 0, 6)

	var plan models.WeeklyActivityPlan
	err = ac.DB.Where("week_start = ?", weekStart).First(&plan).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load plan", err)
	}

	if err == gorm.ErrRecordNotFound {
		plan = models.WeeklyActivityPlan{
			ID:        uuid.NewString(),
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
			Status:    models.PlanStatusOpen,
			CreatedBy: &user.ID,
		}
		if err := ac.DB.Create(&plan).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create plan", err)
		}
	} else if plan.Status == models.PlanStatusClosed {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Plan is closed", nil)
	}

	// Replace the metric set wholesale
	if err := ac.DB.Where("plan_id = ?", plan.ID).Delete(&models.WeeklyMetricDefinition{}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update metrics", err)
	}
	for i, m := range req.Metrics {
		metric := models.WeeklyMetricDefinition{
			ID:          uuid.NewString(),
			PlanID:      plan.ID,
			Label:       m.Label,
			TargetCount: m.TargetCount,
			ActualCount: m.ActualCount,
			SortOrder:   m.SortOrder,
		}
		if metric.SortOrder == 0 {
			metric.SortOrder = i
		}
		if err := ac.DB.Create(&metric).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save metric", err)
		}
	}

	if err := ac.DB.Preload("Metrics", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).First(&plan, "id = ?", plan.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load plan", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(plan))
}

// ClosePlan closes a week early, ahead of the background worker.
func (ac *ActivityController) ClosePlan(c *fiber.Ctx) error {
	var plan models.WeeklyActivityPlan
	if err := ac.DB.First(&plan, "id = ?", c.Params("id")).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Plan not found", nil)
	}

	if plan.Status == models.PlanStatusClosed {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Plan is already closed", nil)
	}

	now := time.Now().UTC()
	if err := ac.DB.Model(&plan).Updates(map[string]interface{}{
		"status":    models.PlanStatusClosed,
		"closed_at": now,
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to close plan", err)
	}

	ac.Logger.Printf("Closed weekly plan %s", plan.ID)
	return c.JSON(utils.SuccessResponse(plan))
}

// resolveWeekStart parses YYYY-MM-DD and snaps it to that week's Monday.
// Empty input means the current week.
func resolveWeekStart(raw string) (time.Time, error) {
	var day time.Time
	if raw == "" {
		day = time.Now().UTC()
	} else {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, err
		}
		day = parsed
	}

	day = day.UTC().Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset), nil
}
