package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"buildscope/internal/model"
)

type DailyReportRepository struct {
	db *gorm.DB
}

func NewDailyReportRepository(db *gorm.DB) *DailyReportRepository {
	return &DailyReportRepository{db: db}
}

func (r *DailyReportRepository) ListByProject(ctx context.Context, projectID string) ([]model.DailyReport, error) {
	var reports []model.DailyReport
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("date DESC").
		Order("id DESC").
		Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("list daily reports failed: %w", err)
	}
	return reports, nil
}

func (r *DailyReportRepository) Create(ctx context.Context, report *model.DailyReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("create daily report failed: %w", err)
	}
	return nil
}

func (r *DailyReportRepository) Get(ctx context.Context, projectID string, id uint) (*model.DailyReport, error) {
	var report model.DailyReport
	if err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query daily report failed: %w", err)
	}
	return &report, nil
}

func (r *DailyReportRepository) Update(ctx context.Context, report *model.DailyReport) error {
	if err := r.db.WithContext(ctx).Save(report).Error; err != nil {
		return fmt.Errorf("update daily report failed: %w", err)
	}
	return nil
}

func (r *DailyReportRepository) Delete(ctx context.Context, projectID string, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND project_id = ?", id, projectID).Delete(&model.DailyReport{})
	if res.Error != nil {
		return false, fmt.Errorf("delete daily report failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
