package models

import (
	"encoding/json"
	"time"
)

// Message direction values.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Participant is one address on a conversation, serialized into the
// Conversation.Participants JSON column.
type Participant struct {
	Email string  `json:"email"`
	Role  string  `json:"role"` // from, to, cc, bcc
	Name  *string `json:"name,omitempty"`
}

// Conversation aggregates a message thread for one user. (UserID,
// ThreadID) is unique; counts are maintained by the sync engine and the
// outbound dispatcher through the same helper and never go negative.
type Conversation struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    string  `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_user_thread" json:"user_id"`
	ThreadID  string  `gorm:"not null;uniqueIndex:idx_conversations_user_thread" json:"thread_id"`
	StartupID *string `gorm:"type:uuid;index" json:"startup_id,omitempty"`

	Subject string  `gorm:"not null" json:"subject"`
	Snippet *string `json:"snippet,omitempty"`

	LatestMessageAt time.Time `gorm:"not null;index" json:"latest_message_at"`
	HasAttachments  bool      `gorm:"default:false" json:"has_attachments"`
	IsRead          bool      `gorm:"default:true" json:"is_read"`
	IsArchived      bool      `gorm:"default:false" json:"is_archived"`
	MessageCount    int       `gorm:"default:0" json:"message_count"`
	UnreadCount     int       `gorm:"default:0" json:"unread_count"`

	Participants string `gorm:"type:text" json:"-"` // JSON array of Participant

	// Relations
	User     User      `json:"-"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// ParticipantList decodes the participants JSON column.
func (c *Conversation) ParticipantList() []Participant {
	var participants []Participant
	if err := json.Unmarshal([]byte(c.Participants), &participants); err != nil {
		return nil
	}
	return participants
}

// SetParticipants encodes the participants into the JSON column.
func (c *Conversation) SetParticipants(participants []Participant) error {
	raw, err := json.Marshal(participants)
	if err != nil {
		return err
	}
	c.Participants = string(raw)
	return nil
}

// Message is one email, inbound or outbound. MessageIDHeader, when
// present, is unique per user and drives re-sync deduplication.
type Message struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ConversationID string `gorm:"type:uuid;not null;index" json:"conversation_id"`
	UserID         string `gorm:"type:uuid;not null;index" json:"user_id"`

	SenderName  *string `json:"sender_name,omitempty"`
	SenderEmail string  `gorm:"not null" json:"sender_email"`
	Subject     string  `json:"subject"`

	BodyText *string `gorm:"type:text" json:"body_text,omitempty"`
	BodyHTML *string `gorm:"type:text" json:"body_html,omitempty"`

	Direction string `gorm:"not null" json:"direction"` // sent, received

	ToEmails  string `gorm:"type:text" json:"to_emails"`  // JSON array
	CcEmails  string `gorm:"type:text" json:"cc_emails"`  // JSON array
	BccEmails string `gorm:"type:text" json:"bcc_emails"` // JSON array

	SentAt      time.Time  `gorm:"not null" json:"sent_at"`
	DeliveredAt time.Time  `gorm:"not null" json:"delivered_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	IsRead      bool       `gorm:"default:false" json:"is_read"`
	IsFromMe    bool       `gorm:"default:false" json:"is_from_me"`

	IMAPUID         *uint32 `json:"imap_uid,omitempty"`
	MessageIDHeader *string `gorm:"index" json:"message_id_header,omitempty"`
	InReplyTo       *string `json:"in_reply_to,omitempty"`
	References      *string `json:"references,omitempty"`

	Snippet         *string `json:"snippet,omitempty"`
	HasAttachments  bool    `gorm:"default:false" json:"has_attachments"`
	AttachmentCount int     `gorm:"default:0" json:"attachment_count"`

	// Relations
	Conversation Conversation      `json:"-"`
	Attachments  []EmailAttachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
}

// EmailAttachment stores one attachment's metadata and raw payload.
type EmailAttachment struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	MessageID   string  `gorm:"type:uuid;not null;index" json:"message_id"`
	FileName    string  `gorm:"not null" json:"file_name"`
	ContentType string  `gorm:"not null" json:"content_type"`
	SizeBytes   int64   `json:"size_bytes"`
	IsInline    bool    `gorm:"default:false" json:"is_inline"`
	ContentID   *string `json:"content_id,omitempty"` // for cid: references
	Data        []byte  `gorm:"type:bytea" json:"-"`

	// Relations
	Message Message `json:"-"`
}
