package controller

import (
	"encoding/base64"
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"dealflow/models"
	"dealflow/utils"
)

type ConversationController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Mailer *utils.OutboundMailer
}

func NewConversationController(db *gorm.DB, logger *log.Logger, mailer *utils.OutboundMailer) *ConversationController {
	return &ConversationController{
		DB:     db,
		Logger: logger,
		Mailer: mailer,
	}
}

type OutgoingAttachmentRequest struct {
	FileName    string  `json:"file_name" validate:"required,max=255"`
	ContentType string  `json:"content_type" validate:"required"`
	Data        string  `json:"data" validate:"required"` // base64
	IsInline    bool    `json:"is_inline"`
	ContentID   *string `json:"content_id"`
}

type SendMessageRequest struct {
	To          []string                    `json:"to" validate:"omitempty,dive,email"`
	Cc          []string                    `json:"cc" validate:"omitempty,dive,email"`
	Bcc         []string                    `json:"bcc" validate:"omitempty,dive,email"`
	BodyText    *string                     `json:"body_text"`
	BodyHTML    *string                     `json:"body_html"`
	Attachments []OutgoingAttachmentRequest `json:"attachments" validate:"omitempty,dive"`
}

// GetConversations lists the caller's conversations, newest activity first.
// Filters: unread_only, has_attachments, archived, startup_id, search,
// participant. Participant and search filtering happen after the query
// because participants live in a JSON column.
func (cc *ConversationController) GetConversations(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := cc.DB.Where("user_id = ?", user.ID)

	if c.Query("archived") == "true" {
		query = query.Where("is_archived = ?", true)
	} else {
		query = query.Where("is_archived = ?", false)
	}
	if c.Query("unread_only") == "true" {
		query = query.Where("unread_count > 0")
	}
	if c.Query("has_attachments") == "true" {
		query = query.Where("has_attachments = ?", true)
	}
	if startupID := c.Query("startup_id"); startupID != "" {
		query = query.Where("startup_id = ?", startupID)
	}

	var conversations []models.Conversation
	if err := query.Order("latest_message_at desc").Find(&conversations).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load conversations", err)
	}

	conversations = filterConversations(conversations, c.Query("search"), c.Query("participant"))

	total := int64(len(conversations))
	start := (page - 1) * limit
	if start > len(conversations) {
		start = len(conversations)
	}
	end := start + limit
	if end > len(conversations) {
		end = len(conversations)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  conversations[start:end],
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// filterConversations applies the free-text and participant filters.
func filterConversations(conversations []models.Conversation, search, participant string) []models.Conversation {
	if search == "" && participant == "" {
		return conversations
	}

	search = strings.ToLower(search)
	participant = strings.ToLower(participant)

	filtered := make([]models.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		if search != "" {
			haystack := strings.ToLower(conv.Subject)
			if conv.Snippet != nil {
				haystack += " " + strings.ToLower(*conv.Snippet)
			}
			if !strings.Contains(haystack, search) {
				continue
			}
		}
		if participant != "" {
			found := false
			for _, p := range conv.ParticipantList() {
				if strings.Contains(strings.ToLower(p.Email), participant) {
					found = true
					break
				}
				if p.Name != nil && strings.Contains(strings.ToLower(*p.Name), participant) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		filtered = append(filtered, conv)
	}
	return filtered
}

// GetConversation returns one conversation with its messages and
// attachment metadata (payloads are fetched separately).
func (cc *ConversationController) GetConversation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	conversation, err := cc.loadConversation(c.Params("id"), user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", nil)
	}

	if err := cc.DB.Preload("Attachments").
		Where("conversation_id = ?", conversation.ID).
		Order("sent_at asc").
		Find(&conversation.Messages).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load messages", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"conversation": conversation,
		"participants": conversation.ParticipantList(),
	}))
}

// Reply sends a reply on the thread. When no recipients are given they
// default to the participants that originally sent mail on the thread.
func (cc *ConversationController) Reply(c *fiber.Ctx) error {
	return cc.send(c, false)
}

// Forward sends the thread onward. When no recipients are given they
// default to every participant other than the caller's own address.
func (cc *ConversationController) Forward(c *fiber.Ctx) error {
	return cc.send(c, true)
}

func (cc *ConversationController) send(c *fiber.Ctx, forward bool) error {
	user := c.Locals("user").(*models.User)

	conversation, err := cc.loadConversation(c.Params("id"), user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", nil)
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if req.BodyText == nil && req.BodyHTML == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Message body is required", nil)
	}

	var creds models.EmailCredential
	if err := cc.DB.Where("user_id = ?", user.ID).First(&creds).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusPreconditionFailed, "No mailbox configured", nil)
	}

	to := req.To
	if len(to) == 0 {
		to = deriveRecipients(conversation, creds.Email, forward)
	}
	if len(to) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No recipients", nil)
	}

	attachments, err := decodeAttachments(req.Attachments)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid attachment payload", err)
	}

	prefix := "Re: "
	if forward {
		prefix = "Fwd: "
	}
	subject := prefix + utils.CleanSubject(conversation.Subject)

	if err := cc.Mailer.Send(user.ID, to, req.Cc, req.Bcc, subject, req.BodyText, req.BodyHTML, attachments); err != nil {
		utils.LogError("outbound_send", err, map[string]interface{}{
			"user_id":         user.ID,
			"conversation_id": conversation.ID,
		})
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Failed to send message", err)
	}

	if err := utils.PersistOutgoingMessage(cc.DB, conversation, creds.Email, to, req.Cc, req.Bcc, req.BodyText, req.BodyHTML, attachments); err != nil {
		utils.LogError("outbound_persist", err, map[string]interface{}{
			"user_id":         user.ID,
			"conversation_id": conversation.ID,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Message sent but not recorded", err)
	}

	cc.Logger.Printf("Outbound message on conversation %s (%d recipients)", conversation.ID, len(to))
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"conversation_id": conversation.ID,
		"to":              to,
	}))
}

// deriveRecipients picks default recipients from the stored participants.
func deriveRecipients(conversation *models.Conversation, ownEmail string, forward bool) []string {
	var recipients []string
	seen := make(map[string]bool)
	for _, p := range conversation.ParticipantList() {
		if strings.EqualFold(p.Email, ownEmail) || seen[p.Email] {
			continue
		}
		if !forward && p.Role != "from" {
			continue
		}
		seen[p.Email] = true
		recipients = append(recipients, p.Email)
	}
	return recipients
}

func decodeAttachments(reqs []OutgoingAttachmentRequest) ([]utils.OutgoingAttachment, error) {
	var attachments []utils.OutgoingAttachment
	for _, r := range reqs {
		data, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, utils.OutgoingAttachment{
			FileName:    r.FileName,
			ContentType: r.ContentType,
			Data:        data,
			IsInline:    r.IsInline,
			ContentID:   r.ContentID,
		})
	}
	return attachments, nil
}

// MarkRead zeroes the unread count and stamps read_at on the messages.
func (cc *ConversationController) MarkRead(c *fiber.Ctx) error {
	return cc.setRead(c, true)
}

// MarkUnread flags the conversation for follow-up.
func (cc *ConversationController) MarkUnread(c *fiber.Ctx) error {
	return cc.setRead(c, false)
}

func (cc *ConversationController) setRead(c *fiber.Ctx, read bool) error {
	user := c.Locals("user").(*models.User)

	conversation, err := cc.loadConversation(c.Params("id"), user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", nil)
	}

	if err := utils.SetConversationRead(cc.DB, conversation, read); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update conversation", err)
	}

	return c.JSON(utils.SuccessResponse(conversation))
}

// Archive hides the conversation from the default listing.
func (cc *ConversationController) Archive(c *fiber.Ctx) error {
	return cc.setArchived(c, true)
}

// Unarchive restores the conversation to the default listing.
func (cc *ConversationController) Unarchive(c *fiber.Ctx) error {
	return cc.setArchived(c, false)
}

func (cc *ConversationController) setArchived(c *fiber.Ctx, archived bool) error {
	user := c.Locals("user").(*models.User)

	conversation, err := cc.loadConversation(c.Params("id"), user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", nil)
	}

	conversation.IsArchived = archived
	if err := cc.DB.Model(conversation).Update("is_archived", archived).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update conversation", err)
	}

	return c.JSON(utils.SuccessResponse(conversation))
}

// DownloadAttachment streams one attachment payload. Ownership is enforced
// through the conversation chain.
func (cc *ConversationController) DownloadAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	conversation, err := cc.loadConversation(c.Params("id"), user.ID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", nil)
	}

	var attachment models.EmailAttachment
	err = cc.DB.Joins("JOIN messages ON messages.id = email_attachments.message_id").
		Where("email_attachments.id = ? AND messages.conversation_id = ?", c.Params("attachmentID"), conversation.ID).
		First(&attachment).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Attachment not found", nil)
	}

	c.Set(fiber.HeaderContentType, attachment.ContentType)
	disposition := "attachment"
	if attachment.IsInline {
		disposition = "inline"
	}
	c.Set(fiber.HeaderContentDisposition, disposition+`; filename="`+attachment.FileName+`"`)
	return c.Send(attachment.Data)
}

func (cc *ConversationController) loadConversation(id, userID string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := cc.DB.Where("id = ? AND user_id = ?", id, userID).First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}
