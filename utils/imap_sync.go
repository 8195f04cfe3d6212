package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dealflow/models"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InboxSyncer drives IMAP sessions and persists fetched mail as threaded
// conversations. One sync attempt is one logical transaction: the cursor
// only advances when the whole fetch range completed.
type InboxSyncer struct {
	db     *gorm.DB
	vault  *Vault
	logger *log.Logger
}

func NewInboxSyncer(db *gorm.DB, vault *Vault, logger *log.Logger) *InboxSyncer {
	return &InboxSyncer{
		db:     db,
		vault:  vault,
		logger: logger,
	}
}

// SyncResult reports one successful sync attempt.
type SyncResult struct {
	ProcessedCount int
	LastUID        uint32 // highest UID observed, 0 if the range was empty
}

// SyncAllUsers sweeps every sync-enabled credential sequentially. One
// account's failure is logged and does not abort the sweep for others.
func (s *InboxSyncer) SyncAllUsers() {
	var credentials []models.EmailCredential
	if err := s.db.Where("sync_enabled = ?", true).Find(&credentials).Error; err != nil {
		LogError("sync_sweep", err, map[string]interface{}{
			"stage": "load_credentials",
		})
		return
	}

	for _, creds := range credentials {
		if _, err := s.SyncUser(creds.UserID); err != nil {
			LogError("sync_user", err, map[string]interface{}{
				"user_id": creds.UserID,
			})
			continue
		}
	}
}

// SyncUser performs one incremental sync for the user's mailbox. On
// success the credential's cursor and status are persisted; on failure
// the error text and attempt timestamp are recorded and the cursor is
// left untouched.
func (s *InboxSyncer) SyncUser(userID string) (*SyncResult, error) {
	var creds models.EmailCredential
	if err := s.db.Where("user_id = ?", userID).First(&creds).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("no email credentials found")
		}
		return nil, fmt.Errorf("failed to load email credentials: %w", err)
	}

	password, err := s.vault.Decrypt(creds.EncryptedPassword, creds.Nonce)
	if err != nil {
		s.recordFailure(&creds, err)
		return nil, fmt.Errorf("failed to decrypt mailbox password: %w", err)
	}

	result, err := s.performSync(&creds, password)
	if err != nil {
		s.recordFailure(&creds, err)
		return nil, err
	}

	if err := s.recordSuccess(&creds, result); err != nil {
		return nil, err
	}
	return result, nil
}

// TestCredentials opens a session, selects the inbox and logs out. Used
// to validate new configuration without running a full sync.
func (s *InboxSyncer) TestCredentials(email, password, host string, port int) error {
	c, err := s.openSession(email, password, host, port)
	if err != nil {
		return err
	}
	if _, err := c.Select("INBOX", false); err != nil {
		c.Logout()
		return fmt.Errorf("IMAP select error: %w", err)
	}
	if err := c.Logout(); err != nil {
		return fmt.Errorf("IMAP logout error: %w", err)
	}
	return nil
}

func (s *InboxSyncer) openSession(email, password, host string, port int) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	c, err := client.DialTLS(addr, &tls.Config{
		InsecureSkipVerify: false,
		ServerName:         host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(email, password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}
	return c, nil
}

func (s *InboxSyncer) performSync(creds *models.EmailCredential, password string) (*SyncResult, error) {
	c, err := s.openSession(creds.Email, password, creds.IMAPHost, creds.IMAPPort)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select mailbox: %w", err)
	}

	var cursor uint32
	if creds.SyncCursor != nil {
		cursor = *creds.SyncCursor
	}
	startUID := cursor + 1
	if startUID < 1 {
		startUID = 1
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(startUID, 0) // open-ended: everything new

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	result := &SyncResult{}
	var persistErr error

	for msg := range messages {
		// "UID FETCH n:*" always returns at least the mailbox's last
		// message, even when its UID is below n.
		if msg.Uid <= cursor {
			continue
		}
		if persistErr != nil {
			continue // keep draining the channel
		}
		if msg.Uid > result.LastUID {
			result.LastUID = msg.Uid
		}

		literal := msg.GetBody(section)
		if literal == nil {
			s.logger.Printf("Skipping message UID %d: body section missing", msg.Uid)
			continue
		}

		parsed, err := ParseMessage(literal)
		if err != nil {
			// Unparseable messages are skipped, not fatal to the mailbox.
			s.logger.Printf("Skipping unparseable message UID %d: %v", msg.Uid, err)
			continue
		}

		exists, err := s.messageExists(creds.UserID, parsed.MessageID)
		if err != nil {
			persistErr = err
			continue
		}
		if exists {
			continue
		}

		seen := false
		for _, flag := range msg.Flags {
			if flag == imap.SeenFlag {
				seen = true
				break
			}
		}

		if err := s.persistMessage(creds, parsed, msg.Uid, seen); err != nil {
			persistErr = err
			continue
		}
		result.ProcessedCount++
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}
	if persistErr != nil {
		return nil, persistErr
	}

	return result, nil
}

// messageExists reports whether this user already has a message with the
// given Message-ID header, which makes re-syncs idempotent.
func (s *InboxSyncer) messageExists(userID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var count int64
	err := s.db.Model(&models.Message{}).
		Where("user_id = ? AND message_id_header = ?", userID, messageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for existing message: %w", err)
	}
	return count > 0, nil
}

func (s *InboxSyncer) persistMessage(creds *models.EmailCredential, parsed *ParsedMessage, uid uint32, seen bool) error {
	subject := parsed.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	cleanSubject := CleanSubject(subject)

	direction := models.DirectionReceived
	for _, addr := range parsed.From {
		if strings.EqualFold(addr.Email, creds.Email) {
			direction = models.DirectionSent
			break
		}
	}

	threadID := ResolveThreadID(parsed.MessageID, parsed.InReplyTo, cleanSubject)
	participants := BuildParticipants(parsed.From, parsed.To, parsed.Cc, parsed.Bcc)

	var candidates []ParsedAddress
	candidates = append(candidates, parsed.From...)
	candidates = append(candidates, parsed.To...)
	candidates = append(candidates, parsed.Cc...)
	candidates = append(candidates, parsed.Bcc...)
	startupID := LookupStartupID(s.db, candidates, creds.Email)

	conversation, err := EnsureConversation(s.db, creds.UserID, threadID, cleanSubject, participants, startupID, parsed.Date)
	if err != nil {
		return err
	}

	snippet := Snippet(parsed.TextBody, parsed.HTMLBody)
	now := time.Now().UTC()

	message := models.Message{
		ID:              uuid.NewString(),
		ConversationID:  conversation.ID,
		UserID:          creds.UserID,
		SenderEmail:     firstEmail(parsed.From),
		SenderName:      firstName(parsed.From),
		Subject:         subject,
		BodyText:        parsed.TextBody,
		BodyHTML:        parsed.HTMLBody,
		Direction:       direction,
		ToEmails:        ParsedAddressesToJSON(parsed.To),
		CcEmails:        ParsedAddressesToJSON(parsed.Cc),
		BccEmails:       ParsedAddressesToJSON(parsed.Bcc),
		SentAt:          parsed.Date,
		DeliveredAt:     parsed.Date,
		IsRead:          seen,
		IsFromMe:        direction == models.DirectionSent,
		IMAPUID:         Pointer(uid),
		Snippet:         snippet,
		HasAttachments:  len(parsed.Attachments) > 0,
		AttachmentCount: len(parsed.Attachments),
	}
	if seen {
		message.ReadAt = Pointer(now)
	}
	if parsed.MessageID != "" {
		message.MessageIDHeader = Pointer(parsed.MessageID)
	}
	if parsed.InReplyTo != "" {
		message.InReplyTo = Pointer(parsed.InReplyTo)
	}
	if parsed.References != "" {
		message.References = Pointer(parsed.References)
	}

	if err := s.db.Create(&message).Error; err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	for _, part := range parsed.Attachments {
		attachment := models.EmailAttachment{
			ID:          uuid.NewString(),
			MessageID:   message.ID,
			FileName:    part.FileName,
			ContentType: part.ContentType,
			SizeBytes:   part.SizeBytes,
			IsInline:    part.IsInline,
			ContentID:   part.ContentID,
			Data:        part.Data,
		}
		if err := s.db.Create(&attachment).Error; err != nil {
			return fmt.Errorf("failed to save attachment: %w", err)
		}
	}

	incrementUnread := direction == models.DirectionReceived && !seen
	return ApplyMessageToConversation(s.db, conversation, parsed.Date, snippet, len(parsed.Attachments) > 0, incrementUnread)
}

func (s *InboxSyncer) recordFailure(creds *models.EmailCredential, syncErr error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"sync_status":          models.SyncStatusError,
		"last_sync_attempt_at": now,
		"last_sync_error":      syncErr.Error(),
	}
	if err := s.db.Model(creds).Updates(updates).Error; err != nil {
		s.logger.Printf("Failed to record sync failure for user %s: %v", creds.UserID, err)
	}
}

func (s *InboxSyncer) recordSuccess(creds *models.EmailCredential, result *SyncResult) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"sync_status":          models.SyncStatusConnected,
		"last_synced_at":       now,
		"last_sync_attempt_at": now,
		"last_sync_error":      nil,
	}
	if result.LastUID > 0 {
		updates["sync_cursor"] = result.LastUID
	}
	if err := s.db.Model(creds).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record sync success: %w", err)
	}
	return nil
}

func firstEmail(addrs []ParsedAddress) string {
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0].Email
}

func firstName(addrs []ParsedAddress) *string {
	if len(addrs) == 0 {
		return nil
	}
	return addrs[0].Name
}
