package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/auth"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/services"
)

// CellsHandler handles typed cell HTTP requests.
type CellsHandler struct {
	cellService services.CellService
	logger      *zap.Logger
}

// NewCellsHandler creates a new cells handler.
func NewCellsHandler(cellService services.CellService, logger *zap.Logger) *CellsHandler {
	return &CellsHandler{
		cellService: cellService,
		logger:      logger,
	}
}

// RegisterRoutes registers the cells handler's routes on the given mux.
func (h *CellsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/datasets/{did}/rows/{rid}/cells"
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(handler))
	}

	mux.HandleFunc("GET "+base, wrap(h.ListRow))
	mux.HandleFunc("PUT "+base+"/{cid}", wrap(h.Set))
	mux.HandleFunc("GET "+base+"/{cid}", wrap(h.Get))
	mux.HandleFunc("DELETE "+base+"/{cid}", wrap(h.Clear))
}

func (h *CellsHandler) parseIDs(w http.ResponseWriter, r *http.Request) (datasetID, rowID, columnID uuid.UUID, ok bool) {
	did, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}
	rid, ok := ParseRowID(w, r, h.logger)
	if !ok {
		return
	}
	cid, ok := ParseColumnID(w, r, h.logger)
	if !ok {
		return
	}
	return did, rid, cid, true
}

type setCellRequest struct {
	Value json.RawMessage `json:"value"`
}

// Set handles PUT /api/workspaces/{wid}/datasets/{did}/rows/{rid}/cells/{cid}
// The value is interpreted by the column's declared type.
func (h *CellsHandler) Set(w http.ResponseWriter, r *http.Request) {
	datasetID, rowID, columnID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	var req setCellRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	cell, err := h.cellService.SetCell(r.Context(), datasetID, rowID, columnID, req.Value)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, cell); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/workspaces/{wid}/datasets/{did}/rows/{rid}/cells/{cid}
func (h *CellsHandler) Get(w http.ResponseWriter, r *http.Request) {
	datasetID, rowID, columnID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	cell, err := h.cellService.GetCell(r.Context(), datasetID, rowID, columnID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, cell); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Clear handles DELETE /api/workspaces/{wid}/datasets/{did}/rows/{rid}/cells/{cid}
func (h *CellsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	datasetID, rowID, columnID, ok := h.parseIDs(w, r)
	if !ok {
		return
	}

	if err := h.cellService.ClearCell(r.Context(), datasetID, rowID, columnID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRow handles GET /api/workspaces/{wid}/datasets/{did}/rows/{rid}/cells
func (h *CellsHandler) ListRow(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}
	rowID, ok := ParseRowID(w, r, h.logger)
	if !ok {
		return
	}

	cells, err := h.cellService.ListRowCells(r.Context(), datasetID, rowID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if cells == nil {
		cells = make([]models.ResolvedCell, 0)
	}

	if err := WriteJSON(w, http.StatusOK, cells); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
