package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"buildscope/internal/model"
)

type fakeLessons struct {
	lessons []model.Lesson
}

func (f *fakeLessons) ListByProject(_ context.Context, projectID string) ([]model.Lesson, error) {
	var out []model.Lesson
	for _, l := range f.lessons {
		if l.ProjectID == projectID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLessons) Create(_ context.Context, lesson *model.Lesson) error {
	lesson.ID = uint(len(f.lessons) + 1)
	f.lessons = append(f.lessons, *lesson)
	return nil
}

func (f *fakeLessons) Get(_ context.Context, projectID string, id uint) (*model.Lesson, error) {
	for i := range f.lessons {
		if f.lessons[i].ID == id && f.lessons[i].ProjectID == projectID {
			l := f.lessons[i]
			return &l, nil
		}
	}
	return nil, nil
}

func (f *fakeLessons) Update(_ context.Context, lesson *model.Lesson) error {
	for i := range f.lessons {
		if f.lessons[i].ID == lesson.ID {
			f.lessons[i] = *lesson
		}
	}
	return nil
}

func (f *fakeLessons) Delete(_ context.Context, projectID string, id uint) (bool, error) {
	for i := range f.lessons {
		if f.lessons[i].ID == id && f.lessons[i].ProjectID == projectID {
			f.lessons = append(f.lessons[:i], f.lessons[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newLessonFixture() (*LessonService, *fakeLessons) {
	store := &fakeLessons{}
	projects := newFakeProjects(model.Project{ID: testProjectID, OwnerID: 7, Name: "Warehouse"})
	return NewLessonService(projects, store), store
}

func TestLessonLifecycle(t *testing.T) {
	svc, store := newLessonFixture()
	ctx := context.Background()

	lesson, err := svc.Add(ctx, 7, testProjectID, LessonInput{
		Title:   "  Late rebar delivery ",
		Problem: "Supplier missed the window",
		Impact:  model.LessonImpact{Schedule: model.ImpactDetail{Affected: true, Details: "3 days"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Late rebar delivery", lesson.Title)
	require.True(t, lesson.Impact.Data().Schedule.Affected)

	edited, err := svc.Edit(ctx, 7, testProjectID, lesson.ID, LessonInput{
		Title:    "Late rebar delivery",
		Problem:  "Supplier missed the window",
		Solution: "Order two weeks ahead",
	})
	require.NoError(t, err)
	require.Equal(t, "Order two weeks ahead", edited.Solution)

	listed, err := svc.List(ctx, 7, testProjectID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "Order two weeks ahead", listed[0].Solution)

	require.NoError(t, svc.Delete(ctx, 7, testProjectID, lesson.ID))
	require.Empty(t, store.lessons)
	require.ErrorIs(t, svc.Delete(ctx, 7, testProjectID, lesson.ID), ErrNotFound)
}

func TestLessonRequiresTitleAndProblem(t *testing.T) {
	svc, store := newLessonFixture()

	_, err := svc.Add(context.Background(), 7, testProjectID, LessonInput{Problem: "x"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Add(context.Background(), 7, testProjectID, LessonInput{Title: "x", Problem: "  "})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, store.lessons)
}

func TestLessonOtherOwnerIsNotFound(t *testing.T) {
	svc, _ := newLessonFixture()

	_, err := svc.List(context.Background(), 8, testProjectID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Edit(context.Background(), 7, testProjectID, 42, LessonInput{Title: "a", Problem: "b"})
	require.ErrorIs(t, err, ErrNotFound)
}
