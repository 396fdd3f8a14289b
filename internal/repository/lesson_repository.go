package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"buildscope/internal/model"
)

type LessonRepository struct {
	db *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func (r *LessonRepository) ListByProject(ctx context.Context, projectID string) ([]model.Lesson, error) {
	var lessons []model.Lesson
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("list lessons failed: %w", err)
	}
	return lessons, nil
}

func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	if err := r.db.WithContext(ctx).Create(lesson).Error; err != nil {
		return fmt.Errorf("create lesson failed: %w", err)
	}
	return nil
}

func (r *LessonRepository) Get(ctx context.Context, projectID string, id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&lesson).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query lesson failed: %w", err)
	}
	return &lesson, nil
}

func (r *LessonRepository) Update(ctx context.Context, lesson *model.Lesson) error {
	if err := r.db.WithContext(ctx).Save(lesson).Error; err != nil {
		return fmt.Errorf("update lesson failed: %w", err)
	}
	return nil
}

// Delete reports whether a row was removed.
func (r *LessonRepository) Delete(ctx context.Context, projectID string, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND project_id = ?", id, projectID).Delete(&model.Lesson{})
	if res.Error != nil {
		return false, fmt.Errorf("delete lesson failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
