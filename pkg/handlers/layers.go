package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/auth"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/services"
)

// LayersHandler handles layer and layer-placement HTTP requests.
type LayersHandler struct {
	layerService services.LayerService
	logger       *zap.Logger
}

// NewLayersHandler creates a new layers handler.
func NewLayersHandler(layerService services.LayerService, logger *zap.Logger) *LayersHandler {
	return &LayersHandler{
		layerService: layerService,
		logger:       logger,
	}
}

// RegisterRoutes registers the layers handler's routes on the given mux.
func (h *LayersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(handler))
	}

	base := "/api/workspaces/{wid}/layers"
	mux.HandleFunc("POST "+base, wrap(h.Create))
	mux.HandleFunc("GET "+base, wrap(h.List))
	mux.HandleFunc("GET "+base+"/{lid}", wrap(h.Get))
	mux.HandleFunc("DELETE "+base+"/{lid}", wrap(h.Delete))

	pages := "/api/workspaces/{wid}/pages/{pgid}/layers/{lid}"
	mux.HandleFunc("POST "+pages, wrap(h.Attach))
	mux.HandleFunc("DELETE "+pages, wrap(h.Detach))
}

type createLayerRequest struct {
	Name          string           `json:"name"`
	Kind          models.LayerKind `json:"kind"`
	DatasetID     uuid.UUID        `json:"dataset_id"`
	PointColumnID uuid.UUID        `json:"point_column_id"`
	TitleColumnID *uuid.UUID       `json:"title_column_id,omitempty"`
	IconColumnID  *uuid.UUID       `json:"icon_column_id,omitempty"`
}

// Create handles POST /api/workspaces/{wid}/layers
func (h *LayersHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req createLayerRequest
	if !DecodeJSON(w, r, h.logger, &req) {
		return
	}

	lw := &models.LayerWithConfig{
		Layer: models.Layer{
			WorkspaceID: workspaceID,
			Name:        req.Name,
			Kind:        req.Kind,
			DatasetID:   req.DatasetID,
		},
	}
	switch req.Kind {
	case models.LayerKindPoint:
		lw.PointLayer = &models.PointLayer{PointColumnID: req.PointColumnID}
	case models.LayerKindMarker:
		lw.MarkerLayer = &models.MarkerLayer{
			PointColumnID: req.PointColumnID,
			TitleColumnID: req.TitleColumnID,
			IconColumnID:  req.IconColumnID,
		}
	}

	layer, err := h.layerService.CreateLayer(r.Context(), lw)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, layer); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/workspaces/{wid}/layers
func (h *LayersHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	layers, err := h.layerService.ListLayers(r.Context(), workspaceID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if layers == nil {
		layers = make([]models.LayerWithConfig, 0)
	}

	if err := WriteJSON(w, http.StatusOK, layers); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/workspaces/{wid}/layers/{lid}
func (h *LayersHandler) Get(w http.ResponseWriter, r *http.Request) {
	layerID, ok := ParseLayerID(w, r, h.logger)
	if !ok {
		return
	}

	layer, err := h.layerService.GetLayer(r.Context(), layerID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, layer); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/workspaces/{wid}/layers/{lid}
func (h *LayersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	layerID, ok := ParseLayerID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.layerService.DeleteLayer(r.Context(), layerID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Attach handles POST /api/workspaces/{wid}/pages/{pgid}/layers/{lid}
// Places the layer at the end of the page's layer order.
func (h *LayersHandler) Attach(w http.ResponseWriter, r *http.Request) {
	pageID, ok := ParsePageID(w, r, h.logger)
	if !ok {
		return
	}
	layerID, ok := ParseLayerID(w, r, h.logger)
	if !ok {
		return
	}

	placement, err := h.layerService.AttachLayer(r.Context(), pageID, layerID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, placement); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Detach handles DELETE /api/workspaces/{wid}/pages/{pgid}/layers/{lid}
func (h *LayersHandler) Detach(w http.ResponseWriter, r *http.Request) {
	pageID, ok := ParsePageID(w, r, h.logger)
	if !ok {
		return
	}
	layerID, ok := ParseLayerID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.layerService.DetachLayer(r.Context(), pageID, layerID); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
