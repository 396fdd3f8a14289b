package app

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"buildscope/internal/model"
)

type LessonStore interface {
	ListByProject(ctx context.Context, projectID string) ([]model.Lesson, error)
	Create(ctx context.Context, lesson *model.Lesson) error
	Get(ctx context.Context, projectID string, id uint) (*model.Lesson, error)
	Update(ctx context.Context, lesson *model.Lesson) error
	Delete(ctx context.Context, projectID string, id uint) (bool, error)
}

type LessonService struct {
	projects ProjectLookup
	store    LessonStore
}

type LessonInput struct {
	Title     string
	Problem   string
	Impact    model.LessonImpact
	RootCause string
	Solution  string
}

func NewLessonService(projects ProjectLookup, store LessonStore) *LessonService {
	return &LessonService{projects: projects, store: store}
}

func (s *LessonService) List(ctx context.Context, userID uint, projectID string) ([]model.Lesson, error) {
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListByProject(ctx, projectID)
}

func (s *LessonService) Add(ctx context.Context, userID uint, projectID string, input LessonInput) (*model.Lesson, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	lesson := &model.Lesson{ProjectID: projectID}
	input.apply(lesson)
	if err := s.store.Create(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *LessonService) Edit(ctx context.Context, userID uint, projectID string, lessonID uint, input LessonInput) (*model.Lesson, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	lesson, err := s.store.Get(ctx, projectID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("%w: lesson %d", ErrNotFound, lessonID)
	}
	input.apply(lesson)
	if err := s.store.Update(ctx, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *LessonService) Delete(ctx context.Context, userID uint, projectID string, lessonID uint) error {
	if _, err := requireProject(ctx, s.projects, userID, projectID); err != nil {
		return err
	}
	deleted, err := s.store.Delete(ctx, projectID, lessonID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: lesson %d", ErrNotFound, lessonID)
	}
	return nil
}

func (in LessonInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: lesson title is required", ErrValidation)
	}
	if strings.TrimSpace(in.Problem) == "" {
		return fmt.Errorf("%w: lesson problem is required", ErrValidation)
	}
	return nil
}

func (in LessonInput) apply(lesson *model.Lesson) {
	lesson.Title = strings.TrimSpace(in.Title)
	lesson.Problem = strings.TrimSpace(in.Problem)
	lesson.Impact = datatypes.NewJSONType(in.Impact)
	lesson.RootCause = strings.TrimSpace(in.RootCause)
	lesson.Solution = strings.TrimSpace(in.Solution)
}
