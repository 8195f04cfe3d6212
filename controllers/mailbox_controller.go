package controller

import (
	"log"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"dealflow/config"
	"dealflow/models"
	"dealflow/utils"
)

type MailboxController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Vault  *utils.Vault
	Syncer *utils.InboxSyncer
}

func NewMailboxController(db *gorm.DB, logger *log.Logger, vault *utils.Vault, syncer *utils.InboxSyncer) *MailboxController {
	return &MailboxController{
		DB:     db,
		Logger: logger,
		Vault:  vault,
		Syncer: syncer,
	}
}

type SaveMailboxRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IMAPHost string `json:"imap_host" validate:"omitempty,hostname"`
	IMAPPort int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
	SMTPHost string `json:"smtp_host" validate:"omitempty,hostname"`
	SMTPPort int    `json:"smtp_port" validate:"omitempty,min=1,max=65535"`
}

type TestMailboxRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IMAPHost string `json:"imap_host" validate:"omitempty,hostname"`
	IMAPPort int    `json:"imap_port" validate:"omitempty,min=1,max=65535"`
}

type SaveProviderRequest struct {
	Domain             string `json:"domain" validate:"required,hostname"`
	IMAPHost           string `json:"imap_host" validate:"required,hostname"`
	IMAPPort           int    `json:"imap_port" validate:"required,min=1,max=65535"`
	IMAPSecurity       string `json:"imap_security" validate:"omitempty,oneof=ssl starttls"`
	SMTPHost           string `json:"smtp_host" validate:"required,hostname"`
	SMTPPort           int    `json:"smtp_port" validate:"required,min=1,max=65535"`
	SMTPSecurity       string `json:"smtp_security" validate:"omitempty,oneof=ssl starttls"`
	Provider           string `json:"provider"`
	RequireAppPassword bool   `json:"require_app_password"`
}

// GetConfig returns the caller's mailbox configuration without secrets.
func (mc *MailboxController) GetConfig(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var creds models.EmailCredential
	if err := mc.DB.Preload("ProviderSettings").Where("user_id = ?", user.ID).First(&creds).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No mailbox configured", nil)
	}

	return c.JSON(utils.SuccessResponse(creds))
}

// SaveConfig verifies the supplied credentials against the IMAP server,
// encrypts the password and upserts the caller's single credential row.
func (mc *MailboxController) SaveConfig(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req SaveMailboxRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
	}

	imapHost, imapPort, smtpHost, smtpPort, providerID := mc.resolveHosts(email, &req)
	if imapHost == "" || smtpHost == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest,
			"No provider defaults for this domain, imap_host and smtp_host are required", nil)
	}

	// Verify before storing anything
	if err := mc.Syncer.TestCredentials(email, req.Password, imapHost, imapPort); err != nil {
		utils.LogEvent("mailbox_test_failed", map[string]interface{}{
			"user_id": user.ID,
			"host":    imapHost,
		})
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "IMAP connection failed", err)
	}

	encrypted, nonce, err := mc.Vault.Encrypt(req.Password)
	if err != nil {
		utils.LogError("credential_encrypt", err, map[string]interface{}{"user_id": user.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to secure credentials", nil)
	}

	var creds models.EmailCredential
	err = mc.DB.Where("user_id = ?", user.ID).First(&creds).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load mailbox", err)
	}

	isNew := err == gorm.ErrRecordNotFound
	if isNew {
		creds = models.EmailCredential{
			ID:         uuid.NewString(),
			UserID:     user.ID,
			SyncStatus: models.SyncStatusNeverSynced,
		}
	}

	// Changing the account resets the sync cursor
	if !isNew && !strings.EqualFold(creds.Email, email) {
		creds.SyncCursor = nil
		creds.SyncStatus = models.SyncStatusNeverSynced
		creds.LastSyncedAt = nil
		creds.LastSyncError = nil
	}

	creds.Email = email
	creds.IMAPHost = imapHost
	creds.IMAPPort = imapPort
	creds.SMTPHost = smtpHost
	creds.SMTPPort = smtpPort
	creds.EncryptedPassword = encrypted
	creds.Nonce = nonce
	creds.ProviderSettingsID = providerID
	creds.SyncEnabled = true

	if err := mc.DB.Save(&creds).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save mailbox", err)
	}

	mc.Logger.Printf("Mailbox saved for user %s (%s)", user.ID, imapHost)
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(creds))
}

// TestConfig checks IMAP connectivity without persisting anything.
func (mc *MailboxController) TestConfig(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req TestMailboxRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	host := req.IMAPHost
	port := req.IMAPPort
	if host == "" {
		save := SaveMailboxRequest{Email: email}
		host, port, _, _, _ = mc.resolveHosts(email, &save)
	}
	if host == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "imap_host is required", nil)
	}
	if port == 0 {
		port = 993
	}

	start := time.Now()
	if err := mc.Syncer.TestCredentials(email, req.Password, host, port); err != nil {
		utils.LogEvent("mailbox_test_failed", map[string]interface{}{
			"user_id": user.ID,
			"host":    host,
		})
		return c.JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
			"host":    host,
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"host":       host,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

// GetStatus reports sync health for the caller's mailbox.
func (mc *MailboxController) GetStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var creds models.EmailCredential
	if err := mc.DB.Where("user_id = ?", user.ID).First(&creds).Error; err != nil {
		return c.JSON(utils.SuccessResponse(fiber.Map{
			"configured":  false,
			"sync_status": models.SyncStatusNeverSynced,
		}))
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"configured":           true,
		"email":                creds.Email,
		"sync_status":          creds.SyncStatus,
		"sync_enabled":         creds.SyncEnabled,
		"last_synced_at":       creds.LastSyncedAt,
		"last_sync_attempt_at": creds.LastSyncAttemptAt,
		"last_sync_error":      creds.LastSyncError,
	}))
}

// SyncNow runs a synchronous inbox sync for the caller.
func (mc *MailboxController) SyncNow(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	result, err := mc.Syncer.SyncUser(user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Sync failed", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"processed_count": result.ProcessedCount,
		"last_uid":        result.LastUID,
	}))
}

// ToggleSync enables or disables background syncing for the caller.
func (mc *MailboxController) ToggleSync(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	result := mc.DB.Model(&models.EmailCredential{}).
		Where("user_id = ?", user.ID).
		Update("sync_enabled", req.Enabled)
	if result.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update mailbox", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No mailbox configured", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"sync_enabled": req.Enabled}))
}

// ListProviders returns the provider defaults table, seeding the built-in
// fallback provider on first use.
func (mc *MailboxController) ListProviders(c *fiber.Ctx) error {
	if err := mc.seedDefaultProvider(); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load providers", err)
	}

	var providers []models.EmailProviderSetting
	if err := mc.DB.Order("domain asc").Find(&providers).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load providers", err)
	}

	return c.JSON(utils.SuccessResponse(providers))
}

// SaveProvider upserts a provider-defaults row by domain. Admin only.
func (mc *MailboxController) SaveProvider(c *fiber.Ctx) error {
	var req SaveProviderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	domain := strings.ToLower(strings.TrimSpace(req.Domain))

	var provider models.EmailProviderSetting
	err := mc.DB.Where("domain = ?", domain).First(&provider).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load provider", err)
	}
	if err == gorm.ErrRecordNotFound {
		provider = models.EmailProviderSetting{
			ID:     uuid.NewString(),
			Domain: domain,
		}
	}

	provider.IMAPHost = req.IMAPHost
	provider.IMAPPort = req.IMAPPort
	provider.SMTPHost = req.SMTPHost
	provider.SMTPPort = req.SMTPPort
	if req.IMAPSecurity != "" {
		provider.IMAPSecurity = req.IMAPSecurity
	}
	if req.SMTPSecurity != "" {
		provider.SMTPSecurity = req.SMTPSecurity
	}
	if req.Provider != "" {
		provider.Provider = req.Provider
	}
	provider.RequireAppPassword = req.RequireAppPassword

	if err := mc.DB.Save(&provider).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save provider", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(provider))
}

// resolveHosts fills missing hosts/ports from the provider-defaults table,
// falling back to the built-in provider for its domain. Explicit values in
// the request always win.
func (mc *MailboxController) resolveHosts(email string, req *SaveMailboxRequest) (string, int, string, int, *string) {
	imapHost, imapPort := req.IMAPHost, req.IMAPPort
	smtpHost, smtpPort := req.SMTPHost, req.SMTPPort
	var providerID *string

	at := strings.LastIndex(email, "@")
	if at >= 0 {
		domain := email[at+1:]

		var provider models.EmailProviderSetting
		if err := mc.DB.Where("domain = ?", domain).First(&provider).Error; err == nil {
			providerID = &provider.ID
			if imapHost == "" {
				imapHost, imapPort = provider.IMAPHost, provider.IMAPPort
			}
			if smtpHost == "" {
				smtpHost, smtpPort = provider.SMTPHost, provider.SMTPPort
			}
		} else if domain == config.AppConfig.Provider.Domain {
			fallback := config.AppConfig.Provider
			if imapHost == "" {
				imapHost, imapPort = fallback.IMAPHost, fallback.IMAPPort
			}
			if smtpHost == "" {
				smtpHost, smtpPort = fallback.SMTPHost, fallback.SMTPPort
			}
		}
	}

	if imapHost != "" && imapPort == 0 {
		imapPort = 993
	}
	if smtpHost != "" && smtpPort == 0 {
		smtpPort = 587
	}
	return imapHost, imapPort, smtpHost, smtpPort, providerID
}

func (mc *MailboxController) seedDefaultProvider() error {
	fallback := config.AppConfig.Provider
	if fallback.Domain == "" {
		return nil
	}

	var count int64
	if err := mc.DB.Model(&models.EmailProviderSetting{}).
		Where("domain = ?", fallback.Domain).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed := models.EmailProviderSetting{
		ID:           uuid.NewString(),
		Domain:       fallback.Domain,
		IMAPHost:     fallback.IMAPHost,
		IMAPPort:     fallback.IMAPPort,
		IMAPSecurity: fallback.IMAPSecurity,
		SMTPHost:     fallback.SMTPHost,
		SMTPPort:     fallback.SMTPPort,
		SMTPSecurity: fallback.SMTPSecurity,
		Provider:     "builtin",
	}
	return mc.DB.Create(&seed).Error
}
