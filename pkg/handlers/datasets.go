package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/auth"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/services"
)

// TenantMiddleware is a function that wraps a handler with tenant context.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// DatasetsHandler handles dataset, column, and row HTTP requests.
type DatasetsHandler struct {
	datasetService services.DatasetService
	cellService    services.CellService
	logger         *zap.Logger
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(datasetService services.DatasetService, cellService services.CellService, logger *zap.Logger) *DatasetsHandler {
	return &DatasetsHandler{
		datasetService: datasetService,
		cellService:    cellService,
		logger:         logger,
	}
}

// RegisterRoutes registers the datasets handler's routes on the given mux.
func (h *DatasetsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/datasets"
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(handler))
	}

	mux.HandleFunc("POST "+base, wrap(h.Create))
	mux.HandleFunc("GET "+base, wrap(h.List))
	mux.HandleFunc("GET "+base+"/{did}", wrap(h.Get))
	mux.HandleFunc("PATCH "+base+"/{did}", wrap(h.Rename))
	mux.HandleFunc("DELETE "+base+"/{did}", wrap(h.Delete))

	mux.HandleFunc("POST "+base+"/{did}/columns", wrap(h.CreateColumn))
	mux.HandleFunc("GET "+base+"/{did}/columns", wrap(h.ListColumns))
	mux.HandleFunc("DELETE "+base+"/{did}/columns/{cid}", wrap(h.DeleteColumn))

	mux.HandleFunc("POST "+base+"/{did}/rows", wrap(h.CreateRow))
	mux.HandleFunc("DELETE "+base+"/{did}/rows/{rid}", wrap(h.DeleteRow))
}

type createDatasetRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/workspaces/{wid}/datasets
func (h *DatasetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req createDatasetRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	dataset, err := h.datasetService.CreateDataset(r.Context(), workspaceID, req.Name)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, dataset); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/workspaces/{wid}/datasets
func (h *DatasetsHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	datasets, err := h.datasetService.ListDatasets(r.Context(), workspaceID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if datasets == nil {
		datasets = make([]*models.Dataset, 0)
	}

	if err := WriteJSON(w, http.StatusOK, datasets); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/workspaces/{wid}/datasets/{did}
// Returns the dataset with columns and resolved rows. Rows page through the
// optional limit and offset query parameters; without them every row comes
// back.
func (h *DatasetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}
	limit, ok := ParseQueryInt(w, r, h.logger, "limit")
	if !ok {
		return
	}
	offset, ok := ParseQueryInt(w, r, h.logger, "offset")
	if !ok {
		return
	}

	dataset, err := h.datasetService.GetDatasetWithData(r.Context(), datasetID, limit, offset)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, dataset); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rename handles PATCH /api/workspaces/{wid}/datasets/{did}
func (h *DatasetsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	var req createDatasetRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	if err := h.datasetService.RenameDataset(r.Context(), datasetID, req.Name); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/workspaces/{wid}/datasets/{did}
func (h *DatasetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.datasetService.DeleteDataset(r.Context(), datasetID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createColumnRequest struct {
	Name        string            `json:"name"`
	Type        models.ColumnType `json:"type"`
	BlockNoteID *string           `json:"block_note_id,omitempty"`
}

// CreateColumn handles POST /api/workspaces/{wid}/datasets/{did}/columns
func (h *DatasetsHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	var req createColumnRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	column, err := h.datasetService.AddColumn(r.Context(), datasetID, req.Name, req.Type, req.BlockNoteID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, column); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListColumns handles GET /api/workspaces/{wid}/datasets/{did}/columns
func (h *DatasetsHandler) ListColumns(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	columns, err := h.datasetService.ListColumns(r.Context(), datasetID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if columns == nil {
		columns = make([]*models.Column, 0)
	}

	if err := WriteJSON(w, http.StatusOK, columns); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteColumn handles DELETE /api/workspaces/{wid}/datasets/{did}/columns/{cid}
func (h *DatasetsHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}
	columnID, ok := ParseColumnID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.datasetService.DeleteColumn(r.Context(), datasetID, columnID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createRowRequest struct {
	Cells []services.CellWrite `json:"cells,omitempty"`
}

// CreateRow handles POST /api/workspaces/{wid}/datasets/{did}/rows
// An empty body (or empty cells) creates a bare row; cells, when present,
// are written atomically with the row. This is also the form-submission path.
func (h *DatasetsHandler) CreateRow(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	var req createRowRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	var row *models.Row
	var err error
	if len(req.Cells) > 0 {
		row, err = h.cellService.CreateRowWithCells(r.Context(), datasetID, req.Cells)
	} else {
		row, err = h.datasetService.CreateRow(r.Context(), datasetID)
	}
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, row); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// DeleteRow handles DELETE /api/workspaces/{wid}/datasets/{did}/rows/{rid}
func (h *DatasetsHandler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}
	rowID, ok := ParseRowID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.datasetService.DeleteRow(r.Context(), datasetID, rowID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
