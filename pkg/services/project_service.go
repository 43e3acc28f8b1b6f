package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/repositories"
)

// ProjectService manages draft projects and their pages. Every mutation is
// guarded to drafts; published versions are read-only.
type ProjectService interface {
	CreateProject(ctx context.Context, workspaceID, teamspaceID uuid.UUID, name string, formsEnabled bool) (*models.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectGraph(ctx context.Context, id uuid.UUID) (*models.ProjectGraph, error)
	ListProjects(ctx context.Context, workspaceID uuid.UUID) ([]*models.Project, error)
	UpdateProject(ctx context.Context, id uuid.UUID, name string, formsEnabled bool) (*models.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error

	CreatePage(ctx context.Context, page *models.Page) (*models.Page, error)
	GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error)
	ListPages(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error)
	UpdatePage(ctx context.Context, page *models.Page) (*models.Page, error)
	DeletePage(ctx context.Context, id uuid.UUID) error
	ReorderPages(ctx context.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error
}

type projectService struct {
	repo   repositories.ProjectRepository
	logger *zap.Logger
}

func NewProjectService(repo repositories.ProjectRepository, logger *zap.Logger) ProjectService {
	return &projectService{
		repo:   repo,
		logger: logger.Named("project-service"),
	}
}

var _ ProjectService = (*projectService)(nil)

func (s *projectService) CreateProject(ctx context.Context, workspaceID, teamspaceID uuid.UUID, name string, formsEnabled bool) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", apperrors.ErrValidation)
	}

	project := &models.Project{
		WorkspaceID:  workspaceID,
		TeamspaceID:  teamspaceID,
		Name:         name,
		FormsEnabled: formsEnabled,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		s.logger.Error("Failed to create project",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		return nil, err
	}
	return project, nil
}

func (s *projectService) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.repo.Get(ctx, id)
}

func (s *projectService) GetProjectGraph(ctx context.Context, id uuid.UUID) (*models.ProjectGraph, error) {
	return s.repo.GetGraph(ctx, id)
}

func (s *projectService) ListProjects(ctx context.Context, workspaceID uuid.UUID) ([]*models.Project, error) {
	return s.repo.ListRoots(ctx, workspaceID)
}

func (s *projectService) UpdateProject(ctx context.Context, id uuid.UUID, name string, formsEnabled bool) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", apperrors.ErrValidation)
	}

	project, err := s.requireDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	project.Name = name
	project.FormsEnabled = formsEnabled
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *projectService) DeleteProject(ctx context.Context, id uuid.UUID) error {
	// Versions only disappear with their root; deleting a root takes its
	// whole lineage along via cascade.
	if _, err := s.requireDraft(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *projectService) CreatePage(ctx context.Context, page *models.Page) (*models.Page, error) {
	if _, err := s.requireDraft(ctx, page.ProjectID); err != nil {
		return nil, err
	}
	if page.PageType == "" {
		page.PageType = models.PageTypeMap
	}
	if page.PageType != models.PageTypeMap && page.PageType != models.PageTypeContent {
		return nil, fmt.Errorf("%w: unknown page type %q", apperrors.ErrValidation, page.PageType)
	}

	if err := s.repo.CreatePage(ctx, page); err != nil {
		s.logger.Error("Failed to create page",
			zap.String("project_id", page.ProjectID.String()),
			zap.Error(err))
		return nil, err
	}
	return page, nil
}

func (s *projectService) GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	return s.repo.GetPage(ctx, id)
}

func (s *projectService) ListPages(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error) {
	return s.repo.ListPages(ctx, projectID)
}

func (s *projectService) UpdatePage(ctx context.Context, page *models.Page) (*models.Page, error) {
	existing, err := s.repo.GetPage(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireDraft(ctx, existing.ProjectID); err != nil {
		return nil, err
	}

	page.ProjectID = existing.ProjectID
	page.Position = existing.Position
	if page.PageType == "" {
		page.PageType = existing.PageType
	}

	if err := s.repo.UpdatePage(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *projectService) DeletePage(ctx context.Context, id uuid.UUID) error {
	page, err := s.repo.GetPage(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.requireDraft(ctx, page.ProjectID); err != nil {
		return err
	}
	return s.repo.DeletePage(ctx, id)
}

func (s *projectService) ReorderPages(ctx context.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error {
	if _, err := s.requireDraft(ctx, projectID); err != nil {
		return err
	}
	return s.repo.ReorderPages(ctx, projectID, orderedIDs)
}

// requireDraft loads a project and rejects the operation unless it is a
// draft root.
func (s *projectService) requireDraft(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !project.IsRoot() {
		return nil, fmt.Errorf("%w: published versions are read-only", apperrors.ErrNotRoot)
	}
	return project, nil
}
