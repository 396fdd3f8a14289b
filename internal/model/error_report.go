package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ErrorReportClient = "client"
	ErrorReportCSP    = "csp"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ErrorReport records a browser-side error or a CSP violation.
type ErrorReport struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Kind       string         `gorm:"size:16;not null;index" json:"kind"`
	Severity   string         `gorm:"size:16;not null" json:"severity"`
	Message    string         `gorm:"type:text;not null" json:"message"`
	Stack      string         `gorm:"type:text" json:"stack,omitempty"`
	PageURL    string         `gorm:"size:2048" json:"page_url,omitempty"`
	UserAgent  string         `gorm:"size:512" json:"user_agent,omitempty"`
	Context    datatypes.JSON `json:"context,omitempty"`
	UserID     *uint          `gorm:"index" json:"user_id,omitempty"`
	ReportedAt time.Time      `gorm:"not null;index" json:"reported_at"`
	CreatedAt  time.Time      `json:"created_at"`
}
