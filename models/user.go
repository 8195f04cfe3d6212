package models

import (
	"time"
)

// User represents a user account in the system
type User struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name     *string `json:"name,omitempty"`
	Timezone string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	Role     string `gorm:"default:'user'" json:"role"` // user, admin
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Credential    *EmailCredential `gorm:"foreignKey:UserID" json:"credential,omitempty"`
	Conversations []Conversation   `gorm:"foreignKey:UserID" json:"conversations,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
