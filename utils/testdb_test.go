package utils

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"dealflow/config"
	"dealflow/models"
)

// testEncryptionKey is 32 bytes of hex, fixed so vault output is
// reproducible across a test run.
const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	vault, err := NewVault(testEncryptionKey)
	if err != nil {
		t.Fatalf("failed to build vault: %v", err)
	}
	return vault
}

func createTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return &user
}

func createTestCredential(t *testing.T, db *gorm.DB, userID, email string) *models.EmailCredential {
	t.Helper()
	creds := models.EmailCredential{
		ID:                uuid.NewString(),
		UserID:            userID,
		Email:             email,
		IMAPHost:          "imap.example.com",
		IMAPPort:          993,
		SMTPHost:          "smtp.example.com",
		SMTPPort:          587,
		EncryptedPassword: "sealed",
		Nonce:             "nonce",
		SyncStatus:        models.SyncStatusNeverSynced,
		SyncEnabled:       true,
	}
	if err := db.Create(&creds).Error; err != nil {
		t.Fatalf("failed to create credential: %v", err)
	}
	return &creds
}

func receivedMessage(from, messageID, inReplyTo, subject string, sentAt time.Time) *ParsedMessage {
	body := "body of " + subject
	return &ParsedMessage{
		Subject:   subject,
		Date:      sentAt,
		MessageID: messageID,
		InReplyTo: inReplyTo,
		From:      []ParsedAddress{{Email: from}},
		To:        []ParsedAddress{{Email: "me@example.com"}},
		TextBody:  &body,
	}
}
