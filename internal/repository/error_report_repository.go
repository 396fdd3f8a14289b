package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"buildscope/internal/model"
)

type ErrorReportRepository struct {
	db *gorm.DB
}

func NewErrorReportRepository(db *gorm.DB) *ErrorReportRepository {
	return &ErrorReportRepository{db: db}
}

func (r *ErrorReportRepository) Create(ctx context.Context, report *model.ErrorReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("create error report failed: %w", err)
	}
	return nil
}
