package utils

import (
	"errors"
	"testing"
	"time"

	"dealflow/models"
)

func newTestSyncer(t *testing.T) (*InboxSyncer, *models.EmailCredential) {
	t.Helper()
	db := newTestDB(t)
	user := createTestUser(t, db)
	creds := createTestCredential(t, db, user.ID, "me@example.com")
	return NewInboxSyncer(db, newTestVault(t), newTestLogger()), creds
}

// ingest mirrors the per-message step of the fetch loop: dedup check, then
// persist.
func ingest(t *testing.T, s *InboxSyncer, creds *models.EmailCredential, parsed *ParsedMessage, uid uint32, seen bool) bool {
	t.Helper()
	exists, err := s.messageExists(creds.UserID, parsed.MessageID)
	if err != nil {
		t.Fatalf("messageExists failed: %v", err)
	}
	if exists {
		return false
	}
	if err := s.persistMessage(creds, parsed, uid, seen); err != nil {
		t.Fatalf("persistMessage failed: %v", err)
	}
	return true
}

func TestIngestThreadsReplyIntoOneConversation(t *testing.T) {
	s, creds := newTestSyncer(t)
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)

	original := receivedMessage("alice@startup.io", "<m1@startup.io>", "", "Intro", base)
	reply := receivedMessage("alice@startup.io", "<m2@startup.io>", "<m1@startup.io>", "Re: Intro", base.Add(time.Hour))

	ingest(t, s, creds, original, 10, false)
	ingest(t, s, creds, reply, 11, false)

	var count int64
	s.db.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Fatalf("conversation count = %d, want 1", count)
	}

	var conv models.Conversation
	if err := s.db.First(&conv).Error; err != nil {
		t.Fatal(err)
	}
	if conv.ThreadID != "<m1@startup.io>" {
		t.Errorf("thread id = %q", conv.ThreadID)
	}
	if conv.Subject != "Intro" {
		t.Errorf("subject = %q, want the cleaned subject", conv.Subject)
	}
	if conv.MessageCount != 2 || conv.UnreadCount != 2 {
		t.Errorf("counts = %d/%d, want 2/2", conv.MessageCount, conv.UnreadCount)
	}
}

func TestIngestOutOfOrderReplyFirst(t *testing.T) {
	s, creds := newTestSyncer(t)
	base := time.Date(2023, 1, 2, 10, 0, 0, 0, time.UTC)

	// The reply lands before the message it answers
	reply := receivedMessage("alice@startup.io", "<m2@startup.io>", "<m1@startup.io>", "Re: Intro", base.Add(time.Hour))
	original := receivedMessage("alice@startup.io", "<m1@startup.io>", "", "Intro", base)

	ingest(t, s, creds, reply, 10, false)
	ingest(t, s, creds, original, 11, false)

	var count int64
	s.db.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Fatalf("out-of-order delivery split the thread into %d conversations", count)
	}
}

func TestIngestDeduplicatesByMessageID(t *testing.T) {
	s, creds := newTestSyncer(t)
	base := time.Now().UTC()

	msg := receivedMessage("alice@startup.io", "<m1@startup.io>", "", "Intro", base)

	if !ingest(t, s, creds, msg, 10, false) {
		t.Fatal("first ingest should persist")
	}
	// Cursor loss re-delivers the same message
	if ingest(t, s, creds, msg, 10, false) {
		t.Error("second ingest of the same message id should be skipped")
	}

	var msgCount, convCount int64
	s.db.Model(&models.Message{}).Count(&msgCount)
	s.db.Model(&models.Conversation{}).Count(&convCount)
	if msgCount != 1 {
		t.Errorf("message count = %d, want 1", msgCount)
	}
	if convCount != 1 {
		t.Errorf("conversation count = %d, want 1", convCount)
	}

	var conv models.Conversation
	s.db.First(&conv)
	if conv.MessageCount != 1 || conv.UnreadCount != 1 {
		t.Errorf("counts = %d/%d after re-delivery, want 1/1", conv.MessageCount, conv.UnreadCount)
	}
}

func TestIngestDirectionAndUnread(t *testing.T) {
	s, creds := newTestSyncer(t)
	base := time.Now().UTC()

	// Sent by the account itself (e.g. from another client)
	mine := receivedMessage("me@example.com", "<m1@example.com>", "", "Ping", base)
	ingest(t, s, creds, mine, 10, true)

	var sent models.Message
	if err := s.db.First(&sent, "message_id_header = ?", "<m1@example.com>").Error; err != nil {
		t.Fatal(err)
	}
	if sent.Direction != models.DirectionSent || !sent.IsFromMe {
		t.Errorf("own message direction = %q, is_from_me = %t", sent.Direction, sent.IsFromMe)
	}

	// Received and already seen on the server: no unread increment
	seen := receivedMessage("alice@startup.io", "<m2@startup.io>", "", "Seen", base)
	ingest(t, s, creds, seen, 11, true)

	// Received and unseen: counts as unread
	unseen := receivedMessage("alice@startup.io", "<m3@startup.io>", "", "Unseen", base)
	ingest(t, s, creds, unseen, 12, false)

	var convs []models.Conversation
	s.db.Order("created_at asc").Find(&convs)
	totalUnread := 0
	for _, c := range convs {
		totalUnread += c.UnreadCount
	}
	if totalUnread != 1 {
		t.Errorf("total unread = %d, want 1 (only the unseen received message)", totalUnread)
	}

	var received models.Message
	if err := s.db.First(&received, "message_id_header = ?", "<m3@startup.io>").Error; err != nil {
		t.Fatal(err)
	}
	if received.Direction != models.DirectionReceived || received.IsRead {
		t.Errorf("unseen message: direction = %q, is_read = %t", received.Direction, received.IsRead)
	}
}

func TestIngestLinksStartupByContactEmail(t *testing.T) {
	s, creds := newTestSyncer(t)

	startup := models.Startup{ID: "f2b4c156-0000-4000-8000-000000000001", Name: "Acme", Stage: "sourced"}
	if err := s.db.Create(&startup).Error; err != nil {
		t.Fatal(err)
	}
	email := "alice@startup.io"
	contact := models.Contact{
		ID:        "f2b4c156-0000-4000-8000-000000000002",
		StartupID: startup.ID,
		Name:      "Alice",
		Email:     &email,
	}
	if err := s.db.Create(&contact).Error; err != nil {
		t.Fatal(err)
	}

	msg := receivedMessage("alice@startup.io", "<m1@startup.io>", "", "Intro", time.Now().UTC())
	ingest(t, s, creds, msg, 10, false)

	var conv models.Conversation
	if err := s.db.First(&conv).Error; err != nil {
		t.Fatal(err)
	}
	if conv.StartupID == nil || *conv.StartupID != startup.ID {
		t.Errorf("startup id = %v, want %s", conv.StartupID, startup.ID)
	}
}

func TestIngestPersistsAttachments(t *testing.T) {
	s, creds := newTestSyncer(t)

	cid := "img1"
	msg := receivedMessage("alice@startup.io", "<m1@startup.io>", "", "With files", time.Now().UTC())
	msg.Attachments = []AttachmentPart{
		{FileName: "chart.png", ContentType: "image/png", SizeBytes: 8, IsInline: true, ContentID: &cid, Data: []byte("PNGBYTES")},
		{FileName: "deck.pdf", ContentType: "application/pdf", SizeBytes: 8, Data: []byte("PDFBYTES")},
	}

	ingest(t, s, creds, msg, 10, false)

	var stored models.Message
	if err := s.db.First(&stored).Error; err != nil {
		t.Fatal(err)
	}
	if !stored.HasAttachments || stored.AttachmentCount != 2 {
		t.Errorf("attachment bookkeeping = %t/%d", stored.HasAttachments, stored.AttachmentCount)
	}

	var attachments []models.EmailAttachment
	if err := s.db.Where("message_id = ?", stored.ID).Order("file_name asc").Find(&attachments).Error; err != nil {
		t.Fatal(err)
	}
	if len(attachments) != 2 {
		t.Fatalf("attachment rows = %d", len(attachments))
	}
	if attachments[0].ContentID == nil || *attachments[0].ContentID != "img1" {
		t.Errorf("content id = %v", attachments[0].ContentID)
	}

	var conv models.Conversation
	s.db.First(&conv)
	if !conv.HasAttachments {
		t.Error("conversation has_attachments not set")
	}
}

func TestRecordFailureAndSuccess(t *testing.T) {
	s, creds := newTestSyncer(t)

	s.recordFailure(creds, errors.New("LOGIN failed"))

	var got models.EmailCredential
	if err := s.db.First(&got, "id = ?", creds.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.SyncStatus != models.SyncStatusError {
		t.Errorf("status = %q", got.SyncStatus)
	}
	if got.LastSyncError == nil || *got.LastSyncError != "LOGIN failed" {
		t.Errorf("last error = %v", got.LastSyncError)
	}
	if got.SyncCursor != nil {
		t.Error("failure must not advance the cursor")
	}
	if got.LastSyncAttemptAt == nil {
		t.Error("attempt timestamp missing")
	}

	if err := s.recordSuccess(creds, &SyncResult{ProcessedCount: 3, LastUID: 42}); err != nil {
		t.Fatal(err)
	}
	if err := s.db.First(&got, "id = ?", creds.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.SyncStatus != models.SyncStatusConnected {
		t.Errorf("status = %q", got.SyncStatus)
	}
	if got.LastSyncError != nil {
		t.Errorf("error not cleared: %v", *got.LastSyncError)
	}
	if got.SyncCursor == nil || *got.SyncCursor != 42 {
		t.Errorf("cursor = %v, want 42", got.SyncCursor)
	}
	if got.LastSyncedAt == nil {
		t.Error("last synced timestamp missing")
	}

	// A sweep with no new mail keeps the cursor where it was
	if err := s.recordSuccess(creds, &SyncResult{}); err != nil {
		t.Fatal(err)
	}
	if err := s.db.First(&got, "id = ?", creds.ID).Error; err != nil {
		t.Fatal(err)
	}
	if got.SyncCursor == nil || *got.SyncCursor != 42 {
		t.Errorf("empty sweep moved the cursor: %v", got.SyncCursor)
	}
}

func TestSyncUserWithoutCredential(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	s := NewInboxSyncer(db, newTestVault(t), newTestLogger())

	if _, err := s.SyncUser(user.ID); err == nil {
		t.Error("expected an error when no mailbox is configured")
	}
}
