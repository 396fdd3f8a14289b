package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const ProjectStatusActive = "active"

type Project struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	OwnerID      uint          `gorm:"not null;index" json:"owner_id"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	Description  string        `gorm:"type:text" json:"description"`
	Status       string        `gorm:"size:32;not null;default:'active'" json:"status"`
	CreatedAt    time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Scope        *Scope        `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"scope,omitempty"`
	Proposal     *Proposal     `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"proposal,omitempty"`
	ChatHistory  []ChatTurn    `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"chat_history,omitempty"`
	Lessons      []Lesson      `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"lessons_learned,omitempty"`
	DailyReports []DailyReport `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"daily_reports,omitempty"`
}

func (p *Project) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = ProjectStatusActive
	}
	return nil
}

const (
	ScopeStatusDraft = "draft"
	ScopeStatusFinal = "final"
)

// Scope is the latest AI-drafted scope of work for a project. It is
// overwritten, not versioned.
type Scope struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID string    `gorm:"size:36;not null;uniqueIndex" json:"project_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Status    string    `gorm:"size:16;not null" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	ProposalStatusPending  = "pending"
	ProposalStatusApproved = "approved"
	ProposalStatusRejected = "rejected"
)

type Proposal struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectID     string    `gorm:"size:36;not null;uniqueIndex" json:"project_id"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	Status        string    `gorm:"size:16;not null" json:"status"`
	Feedback      string    `gorm:"type:text" json:"feedback,omitempty"`
	AttachmentURL string    `gorm:"size:1024" json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
