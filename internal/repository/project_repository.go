package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"buildscope/internal/model"
)

// ErrNotFound is returned by mutations that matched no row. Lookups return
// nil, nil instead.
var ErrNotFound = errors.New("record not found")

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("create project failed: %w", err)
	}
	return nil
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.Project, error) {
	var projects []model.Project
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects failed: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("owner_id = ?", ownerID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count projects failed: %w", err)
	}
	return n, nil
}

// GetByIDAndOwner returns nil, nil when the project does not exist or belongs
// to someone else.
func (r *ProjectRepository) GetByIDAndOwner(ctx context.Context, id string, ownerID uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query project failed: %w", err)
	}
	return &project, nil
}

// GetDetail loads a project with its derived documents, full chat history in
// seq order and lessons.
func (r *ProjectRepository) GetDetail(ctx context.Context, id string, ownerID uint) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Preload("Scope").
		Preload("Proposal").
		Preload("ChatHistory", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query project detail failed: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) GetScope(ctx context.Context, projectID string) (*model.Scope, error) {
	var scope model.Scope
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&scope).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query scope failed: %w", err)
	}
	return &scope, nil
}

// Delete removes the project and everything hanging off it in one
// transaction. Only explicit owner requests reach here.
func (r *ProjectRepository) Delete(ctx context.Context, id string, ownerID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Project{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("query project failed: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
		for _, child := range []interface{}{
			&model.ChatTurn{},
			&model.Scope{},
			&model.Proposal{},
			&model.Lesson{},
			&model.DailyReport{},
			&model.ProjectFile{},
		} {
			if err := tx.Where("project_id = ?", id).Delete(child).Error; err != nil {
				return fmt.Errorf("delete project children failed: %w", err)
			}
		}
		if err := tx.Where("id = ?", id).Delete(&model.Project{}).Error; err != nil {
			return fmt.Errorf("delete project failed: %w", err)
		}
		return nil
	})
}
