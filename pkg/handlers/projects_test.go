package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// mockProjectService is a mock for services.ProjectService.
type mockProjectService struct {
	project *models.Project
	page    *models.Page
	graph   *models.ProjectGraph
	err     error

	reorderedIDs []uuid.UUID
}

func (m *mockProjectService) CreateProject(_ context.Context, workspaceID, teamspaceID uuid.UUID, name string, formsEnabled bool) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Project{ID: uuid.New(), WorkspaceID: workspaceID, TeamspaceID: teamspaceID, Name: name, FormsEnabled: formsEnabled}, nil
}

func (m *mockProjectService) GetProject(context.Context, uuid.UUID) (*models.Project, error) {
	return m.project, m.err
}

func (m *mockProjectService) GetProjectGraph(context.Context, uuid.UUID) (*models.ProjectGraph, error) {
	return m.graph, m.err
}

func (m *mockProjectService) ListProjects(context.Context, uuid.UUID) ([]*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.project == nil {
		return nil, nil
	}
	return []*models.Project{m.project}, nil
}

func (m *mockProjectService) UpdateProject(_ context.Context, id uuid.UUID, name string, formsEnabled bool) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Project{ID: id, Name: name, FormsEnabled: formsEnabled}, nil
}

func (m *mockProjectService) DeleteProject(context.Context, uuid.UUID) error {
	return m.err
}

func (m *mockProjectService) CreatePage(_ context.Context, page *models.Page) (*models.Page, error) {
	if m.err != nil {
		return nil, m.err
	}
	page.ID = uuid.New()
	return page, nil
}

func (m *mockProjectService) GetPage(context.Context, uuid.UUID) (*models.Page, error) {
	return m.page, m.err
}

func (m *mockProjectService) ListPages(context.Context, uuid.UUID) ([]*models.Page, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.page == nil {
		return nil, nil
	}
	return []*models.Page{m.page}, nil
}

func (m *mockProjectService) UpdatePage(_ context.Context, page *models.Page) (*models.Page, error) {
	if m.err != nil {
		return nil, m.err
	}
	return page, nil
}

func (m *mockProjectService) DeletePage(context.Context, uuid.UUID) error {
	return m.err
}

func (m *mockProjectService) ReorderPages(_ context.Context, _ uuid.UUID, orderedIDs []uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.reorderedIDs = orderedIDs
	return nil
}

// mockPublishService is a mock for services.PublishService.
type mockPublishService struct {
	published *models.Project
	versions  []*models.Project
	graph     *models.ProjectGraph
	err       error
}

func (m *mockPublishService) Publish(context.Context, uuid.UUID) (*models.Project, error) {
	return m.published, m.err
}

func (m *mockPublishService) ListVersions(context.Context, uuid.UUID) ([]*models.Project, error) {
	return m.versions, m.err
}

func (m *mockPublishService) GetVersionGraph(context.Context, uuid.UUID) (*models.ProjectGraph, error) {
	return m.graph, m.err
}

func TestProjectsHandlerCreate(t *testing.T) {
	workspaceID := uuid.New()
	teamspaceID := uuid.New()

	t.Run("creates a project", func(t *testing.T) {
		handler := NewProjectsHandler(&mockProjectService{}, &mockPublishService{}, zap.NewNop())

		body := `{"teamspace_id": "` + teamspaceID.String() + `", "name": "survey", "forms_enabled": true}`
		req := httptest.NewRequest(http.MethodPost,
			"/api/workspaces/"+workspaceID.String()+"/projects",
			strings.NewReader(body))
		req.SetPathValue("wid", workspaceID.String())

		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		var project models.Project
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &project))
		assert.Equal(t, "survey", project.Name)
		assert.Equal(t, teamspaceID, project.TeamspaceID)
		assert.True(t, project.FormsEnabled)
	})

	t.Run("empty name maps to 400", func(t *testing.T) {
		handler := NewProjectsHandler(&mockProjectService{err: apperrors.ErrValidation}, &mockPublishService{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost,
			"/api/workspaces/"+workspaceID.String()+"/projects",
			strings.NewReader(`{"name": ""}`))
		req.SetPathValue("wid", workspaceID.String())

		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProjectsHandlerUpdate(t *testing.T) {
	projectID := uuid.New()

	t.Run("published versions map to 409", func(t *testing.T) {
		handler := NewProjectsHandler(&mockProjectService{err: apperrors.ErrNotRoot}, &mockPublishService{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPatch,
			"/api/workspaces/x/projects/"+projectID.String(),
			strings.NewReader(`{"name": "renamed"}`))
		req.SetPathValue("pid", projectID.String())

		rec := httptest.NewRecorder()
		handler.Update(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not_a_draft", body["error"])
	})
}

func TestProjectsHandlerReorderPages(t *testing.T) {
	projectID := uuid.New()

	t.Run("passes ids through in order", func(t *testing.T) {
		service := &mockProjectService{}
		handler := NewProjectsHandler(service, &mockPublishService{}, zap.NewNop())

		first := uuid.New()
		second := uuid.New()
		body := `{"page_ids": ["` + first.String() + `", "` + second.String() + `"]}`
		req := httptest.NewRequest(http.MethodPost,
			"/api/workspaces/x/projects/"+projectID.String()+"/pages/reorder",
			strings.NewReader(body))
		req.SetPathValue("pid", projectID.String())

		rec := httptest.NewRecorder()
		handler.ReorderPages(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, []uuid.UUID{first, second}, service.reorderedIDs)
	})

	t.Run("incomplete page set maps to 400", func(t *testing.T) {
		handler := NewProjectsHandler(&mockProjectService{err: apperrors.ErrValidation}, &mockPublishService{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost,
			"/api/workspaces/x/projects/"+projectID.String()+"/pages/reorder",
			strings.NewReader(`{"page_ids": []}`))
		req.SetPathValue("pid", projectID.String())

		rec := httptest.NewRecorder()
		handler.ReorderPages(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestProjectsHandlerPublish(t *testing.T) {
	projectID := uuid.New()

	t.Run("returns the published version", func(t *testing.T) {
		published := &models.Project{ID: uuid.New(), Name: "survey", RootProjectID: &projectID, Version: 3}
		handler := NewProjectsHandler(&mockProjectService{}, &mockPublishService{published: published}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost,
			"/api/workspaces/x/projects/"+projectID.String()+"/publish", nil)
		req.SetPathValue("pid", projectID.String())

		rec := httptest.NewRecorder()
		handler.Publish(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		var body models.Project
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 3, body.Version)
	})

	t.Run("publishing a version maps to 409", func(t *testing.T) {
		handler := NewProjectsHandler(&mockProjectService{}, &mockPublishService{err: apperrors.ErrNotRoot}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost,
			"/api/workspaces/x/projects/"+projectID.String()+"/publish", nil)
		req.SetPathValue("pid", projectID.String())

		rec := httptest.NewRecorder()
		handler.Publish(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestProjectsHandlerGetVersion(t *testing.T) {
	versionID := uuid.New()

	t.Run("returns the version graph", func(t *testing.T) {
		graph := &models.ProjectGraph{
			Project: models.Project{ID: versionID, Version: 1},
			Pages:   []models.Page{{ID: uuid.New(), ProjectID: versionID}},
		}
		handler := NewProjectsHandler(&mockProjectService{}, &mockPublishService{graph: graph}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet,
			"/api/workspaces/x/projects/y/versions/"+versionID.String(), nil)
		req.SetPathValue("vid", versionID.String())

		rec := httptest.NewRecorder()
		handler.GetVersion(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var body models.ProjectGraph
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, versionID, body.Project.ID)
		assert.Len(t, body.Pages, 1)
	})

	t.Run("unknown version maps to 404", func(t *testing.T) {
		handler := NewProjectsHandler(&mockProjectService{}, &mockPublishService{err: apperrors.ErrNotFound}, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet,
			"/api/workspaces/x/projects/y/versions/"+versionID.String(), nil)
		req.SetPathValue("vid", versionID.String())

		rec := httptest.NewRecorder()
		handler.GetVersion(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
