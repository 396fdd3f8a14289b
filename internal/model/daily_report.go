package model

import (
	"time"

	"gorm.io/datatypes"
)

type WeatherType string

const (
	WeatherSunny  WeatherType = "Sunny"
	WeatherCloudy WeatherType = "Cloudy"
	WeatherRainy  WeatherType = "Rainy"
	WeatherStormy WeatherType = "Stormy"
)

func (w WeatherType) Valid() bool {
	switch w {
	case WeatherSunny, WeatherCloudy, WeatherRainy, WeatherStormy:
		return true
	}
	return false
}

type Weather struct {
	Type        WeatherType `json:"type"`
	Description string      `json:"description"`
}

type Manpower struct {
	Trade string `json:"trade"`
	Count int    `json:"count"`
}

type WorkArea struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

type Photo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DailyReport is one day's field log for a project.
type DailyReport struct {
	ID             uint                          `gorm:"primaryKey" json:"id"`
	ProjectID      string                        `gorm:"size:36;not null;index:idx_daily_report_project_date,priority:1" json:"project_id"`
	Date           time.Time                     `gorm:"not null;index:idx_daily_report_project_date,priority:2" json:"date"`
	Summary        string                        `gorm:"type:text" json:"summary"`
	ClientComments string                        `gorm:"type:text" json:"client_comments"`
	Weather        datatypes.JSONType[Weather]   `json:"weather"`
	Manpower       datatypes.JSONSlice[Manpower] `json:"manpower"`
	WorkAreas      datatypes.JSONSlice[WorkArea] `json:"work_areas"`
	Photos         datatypes.JSONSlice[Photo]    `json:"photos"`
	Notes          string                        `gorm:"type:text" json:"notes"`
	Safety         string                        `gorm:"type:text" json:"safety"`
	CreatedBy      uint                          `gorm:"not null" json:"created_by"`
	CreatedAt      time.Time                     `json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}
