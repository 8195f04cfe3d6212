package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"dealflow/models"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// OutgoingAttachment is a file to attach to an outbound message. Inline
// attachments keep their Content-ID so the HTML body's cid: references
// resolve.
type OutgoingAttachment struct {
	FileName    string
	ContentType string
	Data        []byte
	IsInline    bool
	ContentID   *string
}

// OutboundMailer composes and delivers replies/forwards through the
// account's own SMTP credentials, mirror of the inbound sync engine.
type OutboundMailer struct {
	db     *gorm.DB
	vault  *Vault
	logger *log.Logger
}

func NewOutboundMailer(db *gorm.DB, vault *Vault, logger *log.Logger) *OutboundMailer {
	return &OutboundMailer{
		db:     db,
		vault:  vault,
		logger: logger,
	}
}

// Send validates, composes and delivers one outbound message. Validation
// failures surface before any network attempt. Mirroring the sent message
// into storage is the caller's job, via PersistOutgoingMessage.
func (m *OutboundMailer) Send(userID string, to, cc, bcc []string, subject string, textBody, htmlBody *string, attachments []OutgoingAttachment) error {
	if len(to) == 0 && len(cc) == 0 && len(bcc) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, group := range [][]string{to, cc, bcc} {
		for _, addr := range group {
			if err := checkmail.ValidateFormat(addr); err != nil {
				return fmt.Errorf("invalid email address %q: %w", addr, err)
			}
		}
	}

	var creds models.EmailCredential
	if err := m.db.Where("user_id = ?", userID).First(&creds).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("no email credentials found")
		}
		return fmt.Errorf("failed to load email credentials: %w", err)
	}

	password, err := m.vault.Decrypt(creds.EncryptedPassword, creds.Nonce)
	if err != nil {
		return fmt.Errorf("failed to decrypt mailbox password: %w", err)
	}

	msg := BuildOutgoingMessage(creds.Email, to, cc, bcc, subject, textBody, htmlBody, attachments)

	dialer := gomail.NewDialer(creds.SMTPHost, creds.SMTPPort, creds.Email, password)
	dialer.TLSConfig = &tls.Config{ServerName: creds.SMTPHost}

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	return nil
}

// BuildOutgoingMessage assembles the MIME structure: a text/plain +
// text/html alternative (empty text body when neither is given), regular
// attachments as named parts, inline attachments embedded with their
// Content-ID preserved.
func BuildOutgoingMessage(from string, to, cc, bcc []string, subject string, textBody, htmlBody *string, attachments []OutgoingAttachment) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	if len(to) > 0 {
		msg.SetHeader("To", to...)
	}
	if len(cc) > 0 {
		msg.SetHeader("Cc", cc...)
	}
	if len(bcc) > 0 {
		msg.SetHeader("Bcc", bcc...)
	}
	msg.SetHeader("Subject", subject)

	if textBody != nil {
		msg.SetBody("text/plain", *textBody)
	} else {
		msg.SetBody("text/plain", "")
	}
	if htmlBody != nil {
		msg.AddAlternative("text/html", *htmlBody)
	}

	for _, attachment := range attachments {
		data := attachment.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}

		headers := map[string][]string{
			"Content-Type": {attachment.ContentType},
		}
		if attachment.IsInline && attachment.ContentID != nil {
			headers["Content-ID"] = []string{"<" + *attachment.ContentID + ">"}
		}
		settings = append(settings, gomail.SetHeader(headers))

		if attachment.IsInline {
			msg.Embed(attachment.FileName, settings...)
		} else {
			msg.Attach(attachment.FileName, settings...)
		}
	}

	return msg
}

// PersistOutgoingMessage mirrors a delivered message into storage and
// folds it into the conversation aggregate, the same way the inbound
// path does.
func PersistOutgoingMessage(db *gorm.DB, conversation *models.Conversation, senderEmail string, to, cc, bcc []string, textBody, htmlBody *string, attachments []OutgoingAttachment) error {
	now := time.Now().UTC()
	snippet := Snippet(textBody, htmlBody)

	message := models.Message{
		ID:              uuid.NewString(),
		ConversationID:  conversation.ID,
		UserID:          conversation.UserID,
		SenderEmail:     senderEmail,
		Subject:         conversation.Subject,
		BodyText:        textBody,
		BodyHTML:        htmlBody,
		Direction:       models.DirectionSent,
		ToEmails:        AddressesToJSON(to),
		CcEmails:        AddressesToJSON(cc),
		BccEmails:       AddressesToJSON(bcc),
		SentAt:          now,
		DeliveredAt:     now,
		ReadAt:          Pointer(now),
		IsRead:          true,
		IsFromMe:        true,
		InReplyTo:       Pointer(conversation.ThreadID),
		Snippet:         snippet,
		HasAttachments:  len(attachments) > 0,
		AttachmentCount: len(attachments),
	}
	if err := db.Create(&message).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	for _, attachment := range attachments {
		record := models.EmailAttachment{
			ID:          uuid.NewString(),
			MessageID:   message.ID,
			FileName:    attachment.FileName,
			ContentType: attachment.ContentType,
			SizeBytes:   int64(len(attachment.Data)),
			IsInline:    attachment.IsInline,
			ContentID:   attachment.ContentID,
			Data:        attachment.Data,
		}
		if err := db.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to save attachment: %w", err)
		}
	}

	return ApplyMessageToConversation(db, conversation, now, snippet, len(attachments) > 0, false)
}
