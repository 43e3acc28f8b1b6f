package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/auth"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// IconsHandler serves the built-in icon catalog used by icon-typed cells and
// marker layers.
type IconsHandler struct {
	logger *zap.Logger
}

// NewIconsHandler creates a new icons handler.
func NewIconsHandler(logger *zap.Logger) *IconsHandler {
	return &IconsHandler{logger: logger}
}

// RegisterRoutes registers the icons handler's routes on the given mux.
func (h *IconsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/icons", authMiddleware.RequireAuth(h.List))
}

// List handles GET /api/icons
func (h *IconsHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, models.IconCatalog()); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
