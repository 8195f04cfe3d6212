package utils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dealflow/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnsureConversation finds the conversation for (user, thread id) or
// creates it, seeding subject, participants and startup linkage. Counts
// start at zero; ApplyMessageToConversation advances them per message.
func EnsureConversation(db *gorm.DB, userID, threadID, subject string, participants []models.Participant, startupID *string, sentAt time.Time) (*models.Conversation, error) {
	var existing models.Conversation
	err := db.Where("user_id = ? AND thread_id = ?", userID, threadID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	conversation := models.Conversation{
		ID:              uuid.NewString(),
		UserID:          userID,
		ThreadID:        threadID,
		StartupID:       startupID,
		Subject:         subject,
		LatestMessageAt: sentAt,
		IsRead:          true,
	}
	if err := conversation.SetParticipants(participants); err != nil {
		return nil, fmt.Errorf("failed to encode participants: %w", err)
	}
	if err := db.Create(&conversation).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return &conversation, nil
}

// ApplyMessageToConversation folds one new message into the conversation
// aggregate. Shared by the inbound sync engine and the outbound
// dispatcher so the two paths can never drift apart.
func ApplyMessageToConversation(db *gorm.DB, conversation *models.Conversation, sentAt time.Time, snippet *string, hasAttachments, incrementUnread bool) error {
	if sentAt.After(conversation.LatestMessageAt) {
		conversation.LatestMessageAt = sentAt
	}
	conversation.Snippet = snippet
	conversation.MessageCount++
	if incrementUnread {
		conversation.UnreadCount++
	}
	conversation.IsRead = conversation.UnreadCount == 0
	conversation.HasAttachments = conversation.HasAttachments || hasAttachments

	if err := db.Save(conversation).Error; err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// SetConversationRead marks the whole conversation read or unread. Marking
// read also flips every message's read flag.
func SetConversationRead(db *gorm.DB, conversation *models.Conversation, read bool) error {
	if read {
		conversation.UnreadCount = 0
		conversation.IsRead = true
	} else {
		conversation.UnreadCount = 1
		conversation.IsRead = false
	}
	if err := db.Save(conversation).Error; err != nil {
		return err
	}

	if read {
		now := time.Now().UTC()
		return db.Model(&models.Message{}).
			Where("conversation_id = ?", conversation.ID).
			Updates(map[string]interface{}{"is_read": true, "read_at": now}).
			Error
	}
	return nil
}

// LookupStartupID resolves a conversation's startup linkage: the first
// known contact whose email matches one of the addresses, skipping the
// account's own mailbox.
func LookupStartupID(db *gorm.DB, addresses []ParsedAddress, ownEmail string) *string {
	for _, addr := range addresses {
		if strings.EqualFold(addr.Email, ownEmail) {
			continue
		}
		var contact models.Contact
		if err := db.Where("email = ? AND is_trashed = ?", addr.Email, false).First(&contact).Error; err == nil {
			return Pointer(contact.StartupID)
		}
	}
	return nil
}

// BuildParticipants flattens the address headers into role-tagged
// participant entries for the conversation JSON column.
func BuildParticipants(from, to, cc, bcc []ParsedAddress) []models.Participant {
	var participants []models.Participant
	appendRole := func(addrs []ParsedAddress, role string) {
		for _, addr := range addrs {
			participants = append(participants, models.Participant{
				Email: addr.Email,
				Role:  role,
				Name:  addr.Name,
			})
		}
	}
	appendRole(from, "from")
	appendRole(to, "to")
	appendRole(cc, "cc")
	appendRole(bcc, "bcc")
	return participants
}

// AddressesToJSON encodes bare email strings the way message rows store
// their to/cc/bcc lists.
func AddressesToJSON(addresses []string) string {
	type entry struct {
		Email string `json:"email"`
	}
	entries := make([]entry, 0, len(addresses))
	for _, addr := range addresses {
		entries = append(entries, entry{Email: addr})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// ParsedAddressesToJSON encodes parsed addresses with display names.
func ParsedAddressesToJSON(addresses []ParsedAddress) string {
	type entry struct {
		Email string  `json:"email"`
		Name  *string `json:"name,omitempty"`
	}
	entries := make([]entry, 0, len(addresses))
	for _, addr := range addresses {
		entries = append(entries, entry{Email: addr.Email, Name: addr.Name})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
