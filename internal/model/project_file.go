package model

import "time"

type ProjectFile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   string    `gorm:"size:36;not null;index" json:"project_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	URL         string    `gorm:"size:2048;not null" json:"url"`
	ObjectKey   string    `gorm:"size:512;not null" json:"-"`
	ContentType string    `gorm:"size:128;not null" json:"content_type"`
	Size        int64     `gorm:"not null" json:"size"`
	UploadedBy  uint      `gorm:"not null" json:"uploaded_by"`
	UploadedAt  time.Time `gorm:"not null" json:"uploaded_at"`
}
