package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/auth"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/services"
)

// ProjectsHandler handles project, page, and publish HTTP requests.
type ProjectsHandler struct {
	projectService services.ProjectService
	publishService services.PublishService
	logger         *zap.Logger
}

// NewProjectsHandler creates a new projects handler.
func NewProjectsHandler(projectService services.ProjectService, publishService services.PublishService, logger *zap.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		projectService: projectService,
		publishService: publishService,
		logger:         logger,
	}
}

// RegisterRoutes registers the projects handler's routes on the given mux.
func (h *ProjectsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/projects"
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(handler))
	}

	mux.HandleFunc("POST "+base, wrap(h.Create))
	mux.HandleFunc("GET "+base, wrap(h.List))
	mux.HandleFunc("GET "+base+"/{pid}", wrap(h.Get))
	mux.HandleFunc("GET "+base+"/{pid}/graph", wrap(h.GetGraph))
	mux.HandleFunc("PATCH "+base+"/{pid}", wrap(h.Update))
	mux.HandleFunc("DELETE "+base+"/{pid}", wrap(h.Delete))

	mux.HandleFunc("POST "+base+"/{pid}/pages", wrap(h.CreatePage))
	mux.HandleFunc("GET "+base+"/{pid}/pages", wrap(h.ListPages))
	mux.HandleFunc("POST "+base+"/{pid}/pages/reorder", wrap(h.ReorderPages))
	mux.HandleFunc("GET "+base+"/{pid}/pages/{pgid}", wrap(h.GetPage))
	mux.HandleFunc("PATCH "+base+"/{pid}/pages/{pgid}", wrap(h.UpdatePage))
	mux.HandleFunc("DELETE "+base+"/{pid}/pages/{pgid}", wrap(h.DeletePage))

	mux.HandleFunc("POST "+base+"/{pid}/publish", wrap(h.Publish))
	mux.HandleFunc("GET "+base+"/{pid}/versions", wrap(h.ListVersions))
	mux.HandleFunc("GET "+base+"/{pid}/versions/{vid}", wrap(h.GetVersion))
}

type createProjectRequest struct {
	TeamspaceID  uuid.UUID `json:"teamspace_id"`
	Name         string    `json:"name"`
	FormsEnabled bool      `json:"forms_enabled"`
}

// Create handles POST /api/workspaces/{wid}/projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req createProjectRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	project, err := h.projectService.CreateProject(r.Context(), workspaceID, req.TeamspaceID, req.Name, req.FormsEnabled)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/workspaces/{wid}/projects
// Returns draft roots only; versions hang off their root.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	projects, err := h.projectService.ListProjects(r.Context(), workspaceID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if projects == nil {
		projects = make([]*models.Project, 0)
	}

	if err := WriteJSON(w, http.StatusOK, projects); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/workspaces/{wid}/projects/{pid}
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projectService.GetProject(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetGraph handles GET /api/workspaces/{wid}/projects/{pid}/graph
func (h *ProjectsHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	graph, err := h.projectService.GetProjectGraph(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, graph); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type updateProjectRequest struct {
	Name         string `json:"name"`
	FormsEnabled bool   `json:"forms_enabled"`
}

// Update handles PATCH /api/workspaces/{wid}/projects/{pid}
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req updateProjectRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	project, err := h.projectService.UpdateProject(r.Context(), projectID, req.Name, req.FormsEnabled)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, project); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/workspaces/{wid}/projects/{pid}
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(r.Context(), projectID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type pageRequest struct {
	Title    string          `json:"title"`
	Content  []models.Block  `json:"content"`
	Center   models.Point    `json:"center"`
	Zoom     float64         `json:"zoom"`
	Pitch    float64         `json:"pitch"`
	Bearing  float64         `json:"bearing"`
	PageType models.PageType `json:"page_type"`
}

// CreatePage handles POST /api/workspaces/{wid}/projects/{pid}/pages
// The page is appended at the end of the project's page order.
func (h *ProjectsHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req pageRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	page, err := h.projectService.CreatePage(r.Context(), &models.Page{
		ProjectID: projectID,
		Title:     req.Title,
		Content:   req.Content,
		Center:    req.Center,
		Zoom:      req.Zoom,
		Pitch:     req.Pitch,
		Bearing:   req.Bearing,
		PageType:  req.PageType,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListPages handles GET /api/workspaces/{wid}/projects/{pid}/pages
func (h *ProjectsHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	pages, err := h.projectService.ListPages(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if pages == nil {
		pages = make([]*models.Page, 0)
	}

	if err := WriteJSON(w, http.StatusOK, pages); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetPage handles GET /api/workspaces/{wid}/projects/{pid}/pages/{pgid}
func (h *ProjectsHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	pageID, ok := ParsePageID(w, r, h.logger)
	if !ok {
		return
	}

	page, err := h.projectService.GetPage(r.Context(), pageID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdatePage handles PATCH /api/workspaces/{wid}/projects/{pid}/pages/{pgid}
func (h *ProjectsHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	pageID, ok := ParsePageID(w, r, h.logger)
	if !ok {
		return
	}

	var req pageRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	page, err := h.projectService.UpdatePage(r.Context(), &models.Page{
		ID:       pageID,
		Title:    req.Title,
		Content:  req.Content,
		Center:   req.Center,
		Zoom:     req.Zoom,
		Pitch:    req.Pitch,
		Bearing:  req.Bearing,
		PageType: req.PageType,
	})
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, page); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeletePage handles DELETE /api/workspaces/{wid}/projects/{pid}/pages/{pgid}
func (h *ProjectsHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	pageID, ok := ParsePageID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.projectService.DeletePage(r.Context(), pageID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type reorderPagesRequest struct {
	PageIDs []uuid.UUID `json:"page_ids"`
}

// ReorderPages handles POST /api/workspaces/{wid}/projects/{pid}/pages/reorder
// The submitted list must contain exactly the project's current page ids.
func (h *ProjectsHandler) ReorderPages(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req reorderPagesRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	if err := h.projectService.ReorderPages(r.Context(), projectID, req.PageIDs); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Publish handles POST /api/workspaces/{wid}/projects/{pid}/publish
func (h *ProjectsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	version, err := h.publishService.Publish(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, version); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListVersions handles GET /api/workspaces/{wid}/projects/{pid}/versions
func (h *ProjectsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	versions, err := h.publishService.ListVersions(r.Context(), projectID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if versions == nil {
		versions = make([]*models.Project, 0)
	}

	if err := WriteJSON(w, http.StatusOK, versions); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetVersion handles GET /api/workspaces/{wid}/projects/{pid}/versions/{vid}
// Returns the published version's full graph.
func (h *ProjectsHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	versionID, ok := ParseVersionID(w, r, h.logger)
	if !ok {
		return
	}

	graph, err := h.publishService.GetVersionGraph(r.Context(), versionID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, graph); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
