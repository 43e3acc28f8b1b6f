package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/auth"
	"github.com/atlasform-io/atlasform-engine/pkg/config"
	"github.com/atlasform-io/atlasform-engine/pkg/services"
)

// ImportsHandler handles CSV and GeoJSON dataset import requests.
type ImportsHandler struct {
	importService services.ImportService
	cfg           config.ImportConfig
	logger        *zap.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(importService services.ImportService, cfg config.ImportConfig, logger *zap.Logger) *ImportsHandler {
	return &ImportsHandler{
		importService: importService,
		cfg:           cfg,
		logger:        logger,
	}
}

// RegisterRoutes registers the imports handler's routes on the given mux.
func (h *ImportsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/datasets/import"
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(handler))
	}

	mux.HandleFunc("POST "+base+"/csv", wrap(h.ImportCSV))
	mux.HandleFunc("POST "+base+"/geojson", wrap(h.ImportGeoJSON))
}

// ImportCSV handles POST /api/workspaces/{wid}/datasets/import/csv
// The request body is the raw CSV; the dataset name derives from the
// filename query parameter.
func (h *ImportsHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	dataset, err := h.importService.ImportCSV(r.Context(), workspaceID, r.URL.Query().Get("filename"), body)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, dataset); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ImportGeoJSON handles POST /api/workspaces/{wid}/datasets/import/geojson
func (h *ImportsHandler) ImportGeoJSON(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	dataset, err := h.importService.ImportGeoJSON(r.Context(), workspaceID, r.URL.Query().Get("filename"), body)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, dataset); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
