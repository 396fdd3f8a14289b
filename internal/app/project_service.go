package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"buildscope/internal/logger"
	"buildscope/internal/model"
	"buildscope/internal/repository"
)

type ProjectStore interface {
	ProjectLookup
	Create(ctx context.Context, project *model.Project) error
	ListByOwner(ctx context.Context, ownerID uint) ([]model.Project, error)
	GetDetail(ctx context.Context, id string, ownerID uint) (*model.Project, error)
	GetScope(ctx context.Context, projectID string) (*model.Scope, error)
	Delete(ctx context.Context, id string, ownerID uint) error
}

type ProjectService struct {
	store ProjectStore
	cache HistoryCache
	log   *logger.Logger
}

type CreateProjectInput struct {
	OwnerID     uint
	Name        string
	Description string
}

// ScopeExport is a downloadable rendering of a project's scope.
type ScopeExport struct {
	FileName    string
	ContentType string
	Body        []byte
}

func NewProjectService(store ProjectStore, cache HistoryCache, log *logger.Logger) *ProjectService {
	return &ProjectService{store: store, cache: cache, log: log.With("service", "ProjectService")}
}

func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(input.Name)
	if input.OwnerID == 0 || name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if len(name) > 255 {
		return nil, fmt.Errorf("%w: project name is too long", ErrValidation)
	}

	project := &model.Project{
		OwnerID:     input.OwnerID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Status:      model.ProjectStatusActive,
	}
	if err := s.store.Create(ctx, project); err != nil {
		return nil, err
	}
	s.log.Info("project created", "project_id", project.ID, "owner_id", project.OwnerID)
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, ownerID uint) ([]model.Project, error) {
	if ownerID == 0 {
		return nil, ErrValidation
	}
	return s.store.ListByOwner(ctx, ownerID)
}

func (s *ProjectService) Get(ctx context.Context, ownerID uint, projectID string) (*model.Project, error) {
	project, err := s.store.GetDetail(ctx, projectID, ownerID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, ownerID uint, projectID string) error {
	if err := s.store.Delete(ctx, projectID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if s.cache != nil {
		for _, convType := range model.ConversationTypes {
			if err := s.cache.DeleteHistory(ctx, projectID, convType); err != nil {
				s.log.Warn("drop history cache failed", "project_id", projectID, "error", err)
			}
		}
	}
	s.log.Info("project deleted", "project_id", projectID, "owner_id", ownerID)
	return nil
}

// ExportScope renders the current scope as a Markdown document.
func (s *ProjectService) ExportScope(ctx context.Context, ownerID uint, projectID string) (*ScopeExport, error) {
	project, err := requireProject(ctx, s.store, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	scope, err := s.store.GetScope(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if scope == nil || strings.TrimSpace(scope.Content) == "" {
		return nil, fmt.Errorf("%w: project has no scope", ErrNotFound)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s - Scope of Work\n\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", project.Description)
	}
	fmt.Fprintf(&b, "Status: %s  \nLast updated: %s\n\n---\n\n", scope.Status, scope.UpdatedAt.UTC().Format(time.RFC1123))
	b.WriteString(scope.Content)
	b.WriteString("\n")

	return &ScopeExport{
		FileName:    safeFileName(project.Name, "project") + "-Scope.md",
		ContentType: "text/markdown; charset=utf-8",
		Body:        []byte(b.String()),
	}, nil
}

// requireProject resolves a project owned by userID or fails with
// ErrNotFound.
func requireProject(ctx context.Context, lookup ProjectLookup, userID uint, projectID string) (*model.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if userID == 0 || projectID == "" {
		return nil, ErrValidation
	}
	project, err := lookup.GetByIDAndOwner(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	return project, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeFileName(name, fallback string) string {
	cleaned := strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "-"), "-.")
	if cleaned == "" {
		return fallback
	}
	if len(cleaned) > 100 {
		cleaned = cleaned[:100]
	}
	return cleaned
}
