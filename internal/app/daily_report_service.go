package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"buildscope/internal/model"
)

const reportDateLayout = "2006-01-02"

type DailyReportStore interface {
	ListByProject(ctx context.Context, projectID string) ([]model.DailyReport, error)
	Create(ctx context.Context, report *model.DailyReport) error
	Get(ctx context.Context, projectID string, id uint) (*model.DailyReport, error)
	Update(ctx context.Context, report *model.DailyReport) error
	Delete(ctx context.Context, projectID string, id uint) (bool, error)
}

type DailyReportService struct {
	projects ProjectLookup
	store    DailyReportStore
}

// DailyReportInput mirrors the field report form. Date is YYYY-MM-DD.
type DailyReportInput struct {
	Date           string
	Summary        string
	ClientComments string
	Weather        model.Weather
	Manpower       []model.Manpower
	WorkAreas      []model.WorkArea
	Photos         []model.Photo
	Notes          string
	Safety         string
}

func NewDailyReportService(projects ProjectLookup, store DailyReportStore) *DailyReportService {
	return &DailyReportService{projects: projects, store: store}
}

func (s *DailyReportService) List(ctx context.Context, userID uint, projectID string) ([]model.DailyReport, error) {
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListByProject(ctx, projectID)
}

func (s *DailyReportService) Get(ctx context.Context, userID uint, projectID string, reportID uint) (*model.DailyReport, error) {
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	report, err := s.store.Get(ctx, projectID, reportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("%w: daily report %d", ErrNotFound, reportID)
	}
	return report, nil
}

func (s *DailyReportService) Create(ctx context.Context, userID uint, projectID string, input DailyReportInput) (*model.DailyReport, error) {
	date, err := input.validate()
	if err != nil {
		return nil, err
	}
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	report := &model.DailyReport{ProjectID: projectID, CreatedBy: userID}
	input.apply(report, date)
	if err := s.store.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *DailyReportService) Update(ctx context.Context, userID uint, projectID string, reportID uint, input DailyReportInput) (*model.DailyReport, error) {
	date, err := input.validate()
	if err != nil {
		return nil, err
	}
	report, err := s.Get(ctx, userID, projectID, reportID)
	if err != nil {
		return nil, err
	}
	input.apply(report, date)
	if err := s.store.Update(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *DailyReportService) Delete(ctx context.Context, userID uint, projectID string, reportID uint) error {
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, projectID, reportID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: daily report %d", ErrNotFound, reportID)
	}
	return nil
}

func (in DailyReportInput) validate() (time.Time, error) {
	date, err := time.Parse(reportDateLayout, strings.TrimSpace(in.Date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	if strings.TrimSpace(in.Summary) == "" {
		return time.Time{}, fmt.Errorf("%w: summary is required", ErrValidation)
	}
	if !in.Weather.Type.Valid() {
		return time.Time{}, fmt.Errorf("%w: unknown weather type %q", ErrValidation, in.Weather.Type)
	}
	for _, m := range in.Manpower {
		if strings.TrimSpace(m.Trade) == "" || m.Count < 0 {
			return time.Time{}, fmt.Errorf("%w: manpower entries need a trade and a non-negative count", ErrValidation)
		}
	}
	for _, p := range in.Photos {
		if strings.TrimSpace(p.URL) == "" {
			return time.Time{}, fmt.Errorf("%w: photo url is required", ErrValidation)
		}
	}
	return date, nil
}

func (in DailyReportInput) apply(report *model.DailyReport, date time.Time) {
	workAreas := make([]model.WorkArea, 0, len(in.WorkAreas))
	for _, area := range in.WorkAreas {
		if strings.TrimSpace(area.Description) == "" {
			continue
		}
		if area.ID == "" {
			area.ID = uuid.NewString()
		}
		workAreas = append(workAreas, area)
	}
	photos := make([]model.Photo, 0, len(in.Photos))
	for _, photo := range in.Photos {
		if photo.ID == "" {
			photo.ID = uuid.NewString()
		}
		photos = append(photos, photo)
	}

	report.Date = date
	report.Summary = strings.TrimSpace(in.Summary)
	report.ClientComments = strings.TrimSpace(in.ClientComments)
	report.Weather = datatypes.NewJSONType(in.Weather)
	report.Manpower = datatypes.JSONSlice[model.Manpower](in.Manpower)
	report.WorkAreas = datatypes.JSONSlice[model.WorkArea](workAreas)
	report.Photos = datatypes.JSONSlice[model.Photo](photos)
	report.Notes = strings.TrimSpace(in.Notes)
	report.Safety = strings.TrimSpace(in.Safety)
}
