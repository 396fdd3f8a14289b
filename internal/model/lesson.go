package model

import (
	"time"

	"gorm.io/datatypes"
)

type ImpactDetail struct {
	Affected bool   `json:"affected"`
	Details  string `json:"details"`
}

type LessonImpact struct {
	Schedule ImpactDetail `json:"schedule"`
	Cost     ImpactDetail `json:"cost"`
	Quality  ImpactDetail `json:"quality"`
	Safety   ImpactDetail `json:"safety"`
}

type Lesson struct {
	ID        uint                             `gorm:"primaryKey" json:"id"`
	ProjectID string                           `gorm:"size:36;not null;index" json:"project_id"`
	Title     string                           `gorm:"size:255;not null" json:"title"`
	Problem   string                           `gorm:"type:text" json:"problem"`
	Impact    datatypes.JSONType[LessonImpact] `json:"impact"`
	RootCause string                           `gorm:"type:text" json:"root_cause"`
	Solution  string                           `gorm:"type:text" json:"solution"`
	CreatedAt time.Time                        `json:"created_at"`
	UpdatedAt time.Time                        `json:"updated_at"`
}
