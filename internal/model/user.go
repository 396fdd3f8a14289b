package model

import "time"

// User is an account that owns projects. Company is the contractor or firm
// shown on exported documents.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	Company      string    `gorm:"size:128" json:"company,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Projects     []Project `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
