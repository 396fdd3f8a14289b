package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"buildscope/internal/model"
)

type ProjectFileRepository struct {
	db *gorm.DB
}

func NewProjectFileRepository(db *gorm.DB) *ProjectFileRepository {
	return &ProjectFileRepository{db: db}
}

func (r *ProjectFileRepository) Create(ctx context.Context, file *model.ProjectFile) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create project file failed: %w", err)
	}
	return nil
}

func (r *ProjectFileRepository) ListByProject(ctx context.Context, projectID string) ([]model.ProjectFile, error) {
	var files []model.ProjectFile
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("uploaded_at DESC").
		Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list project files failed: %w", err)
	}
	return files, nil
}
