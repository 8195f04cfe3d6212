package models

import (
	"time"
)

// Startup is a company tracked in the pipeline. Conversations link back to
// a startup when one of their participants matches a known contact.
type Startup struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string  `gorm:"not null" json:"name"`
	Website     *string `json:"website,omitempty"`
	Sector      *string `json:"sector,omitempty"`
	Stage       string  `gorm:"default:'sourced'" json:"stage"`
	Description *string `json:"description,omitempty"`
	OwnerID     *string `gorm:"type:uuid;index" json:"owner_id,omitempty"`

	// Relations
	Contacts []Contact `gorm:"foreignKey:StartupID" json:"contacts,omitempty"`
}

// Contact is a person at a startup. The email column feeds the sync
// engine's lookup-by-email linkage.
type Contact struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StartupID   string  `gorm:"type:uuid;not null;index" json:"startup_id"`
	Name        string  `gorm:"not null" json:"name"`
	Role        string  `json:"role"`
	Email       *string `gorm:"index" json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	LinkedinURL *string `json:"linkedin_url,omitempty"`
	IsPrimary   bool    `gorm:"default:false" json:"is_primary"`
	Notes       *string `json:"notes,omitempty"`
	IsTrashed   bool    `gorm:"default:false" json:"is_trashed"`

	// Relations
	Startup Startup `json:"-"`
}
