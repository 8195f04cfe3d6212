package controller

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"dealflow/models"
	"dealflow/utils"
)

type StartupController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewStartupController(db *gorm.DB, logger *log.Logger) *StartupController {
	return &StartupController{
		DB:     db,
		Logger: logger,
	}
}

type StartupRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Website     *string `json:"website" validate:"omitempty,url"`
	Sector      *string `json:"sector" validate:"omitempty,max=100"`
	Stage       string  `json:"stage" validate:"omitempty,oneof=sourced screening diligence invested passed"`
	Description *string `json:"description"`
}

type ContactRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Role        string  `json:"role" validate:"omitempty,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	LinkedinURL *string `json:"linkedin_url" validate:"omitempty,url"`
	IsPrimary   bool    `json:"is_primary"`
	Notes       *string `json:"notes"`
}

// GetStartups returns a paginated startup list, optionally filtered by
// stage or a name search.
func (sc *StartupController) GetStartups(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := sc.DB.Model(&models.Startup{})
	if c.Query("mine") == "true" {
		query = query.Where("owner_id = ?", user.ID)
	}
	if stage := c.Query("stage"); stage != "" {
		query = query.Where("stage = ?", stage)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count startups", err)
	}

	var startups []models.Startup
	if err := query.Preload("Contacts", "is_trashed = ?", false).
		Order("updated_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&startups).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load startups", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  startups,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (sc *StartupController) CreateStartup(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req StartupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	startup := models.Startup{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Website:     req.Website,
		Sector:      req.Sector,
		Description: req.Description,
		OwnerID:     &user.ID,
	}
	if req.Stage != "" {
		startup.Stage = req.Stage
	} else {
		startup.Stage = "sourced"
	}

	if err := sc.DB.Create(&startup).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create startup", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(startup))
}

func (sc *StartupController) GetStartup(c *fiber.Ctx) error {
	var startup models.Startup
	if err := sc.DB.Preload("Contacts", "is_trashed = ?", false).
		First(&startup, "id = ?", c.Params("id")).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Startup not found", nil)
	}

	return c.JSON(utils.SuccessResponse(startup))
}

func (sc *StartupController) UpdateStartup(c *fiber.Ctx) error {
	var startup models.Startup
	if err := sc.DB.First(&startup, "id = ?", c.Params("id")).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Startup not found", nil)
	}

	var req StartupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	startup.Name = req.Name
	startup.Website = req.Website
	startup.Sector = req.Sector
	startup.Description = req.Description
	if req.Stage != "" {
		startup.Stage = req.Stage
	}

	if err := sc.DB.Save(&startup).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update startup", err)
	}

	return c.JSON(utils.SuccessResponse(startup))
}

// CreateContact adds a contact to a startup. Contact emails feed the sync
// engine's conversation-to-startup linkage.
func (sc *StartupController) CreateContact(c *fiber.Ctx) error {
	var startup models.Startup
	if err := sc.DB.First(&startup, "id = ?", c.Params("id")).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Startup not found", nil)
	}

	var req ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contact := models.Contact{
		ID:          uuid.NewString(),
		StartupID:   startup.ID,
		Name:        req.Name,
		Role:        req.Role,
		Phone:       req.Phone,
		LinkedinURL: req.LinkedinURL,
		IsPrimary:   req.IsPrimary,
		Notes:       req.Notes,
	}
	if req.Email != nil {
		lowered := strings.ToLower(strings.TrimSpace(*req.Email))
		contact.Email = &lowered
	}

	if err := sc.DB.Create(&contact).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create contact", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(contact))
}

func (sc *StartupController) UpdateContact(c *fiber.Ctx) error {
	var contact models.Contact
	if err := sc.DB.Where("id = ? AND startup_id = ?", c.Params("contactID"), c.Params("id")).
		First(&contact).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
	}

	var req ContactRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contact.Name = req.Name
	contact.Role = req.Role
	contact.Phone = req.Phone
	contact.LinkedinURL = req.LinkedinURL
	contact.IsPrimary = req.IsPrimary
	contact.Notes = req.Notes
	if req.Email != nil {
		lowered := strings.ToLower(strings.TrimSpace(*req.Email))
		contact.Email = &lowered
	} else {
		contact.Email = nil
	}

	if err := sc.DB.Save(&contact).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contact", err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

// DeleteContact soft-deletes by trashing, keeping past linkage stable.
func (sc *StartupController) DeleteContact(c *fiber.Ctx) error {
	result := sc.DB.Model(&models.Contact{}).
		Where("id = ? AND startup_id = ?", c.Params("contactID"), c.Params("id")).
		Update("is_trashed", true)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contact", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
	}

	return c.JSON(fiber.Map{"message": "Contact removed"})
}
