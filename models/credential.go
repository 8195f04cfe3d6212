package models

import (
	"time"
)

// Sync status values for EmailCredential.SyncStatus.
const (
	SyncStatusConnected   = "connected"
	SyncStatusError       = "error"
	SyncStatusNeverSynced = "never_synced"
)

// EmailCredential stores one user's mailbox connection settings. The
// password is encrypted at rest with AES-GCM; EncryptedPassword and Nonce
// are base64 blobs produced by the vault. At most one row per user.
type EmailCredential struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID string `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Email  string `gorm:"not null" json:"email"`

	IMAPHost string `gorm:"not null" json:"imap_host"`
	IMAPPort int    `gorm:"not null;default:993" json:"imap_port"`
	SMTPHost string `gorm:"not null" json:"smtp_host"`
	SMTPPort int    `gorm:"not null;default:587" json:"smtp_port"`

	EncryptedPassword string `gorm:"not null" json:"-"`
	Nonce             string `gorm:"not null" json:"-"`

	ProviderSettingsID *string `gorm:"type:uuid" json:"provider_settings_id,omitempty"`

	SyncStatus        string     `gorm:"default:'never_synced'" json:"sync_status"` // connected, error, never_synced
	SyncEnabled       bool       `gorm:"default:true" json:"sync_enabled"`
	LastSyncedAt      *time.Time `json:"last_synced_at"`
	LastSyncAttemptAt *time.Time `json:"last_sync_attempt_at"`
	LastSyncError     *string    `json:"last_sync_error"`
	SyncCursor        *uint32    `json:"sync_cursor"` // highest processed IMAP UID

	// Relations
	User             User                  `json:"-"`
	ProviderSettings *EmailProviderSetting `gorm:"foreignKey:ProviderSettingsID" json:"provider_settings,omitempty"`
}

// EmailProviderSetting holds admin-managed host/port defaults for a mail
// domain so users only have to type their address and password.
type EmailProviderSetting struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Domain             string `gorm:"not null;uniqueIndex" json:"domain"`
	IMAPHost           string `gorm:"not null" json:"imap_host"`
	IMAPPort           int    `gorm:"not null" json:"imap_port"`
	IMAPSecurity       string `gorm:"default:'ssl'" json:"imap_security"` // ssl, starttls
	SMTPHost           string `gorm:"not null" json:"smtp_host"`
	SMTPPort           int    `gorm:"not null" json:"smtp_port"`
	SMTPSecurity       string `gorm:"default:'ssl'" json:"smtp_security"`
	Provider           string `gorm:"default:'custom'" json:"provider"`
	RequireAppPassword bool   `gorm:"default:false" json:"require_app_password"`
}
