package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseWorkspaceID extracts and validates the workspace ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false
// after writing an error response.
// Expects path parameter: wid
func ParseWorkspaceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "wid", "invalid_workspace_id", "Invalid workspace ID format", logger)
}

// ParseDatasetID extracts and validates the dataset ID from the request path.
// Expects path parameter: did
func ParseDatasetID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "did", "invalid_dataset_id", "Invalid dataset ID format", logger)
}

// ParseColumnID extracts and validates the column ID from the request path.
// Expects path parameter: cid
func ParseColumnID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "cid", "invalid_column_id", "Invalid column ID format", logger)
}

// ParseRowID extracts and validates the row ID from the request path.
// Expects path parameter: rid
func ParseRowID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "rid", "invalid_row_id", "Invalid row ID format", logger)
}

// ParseProjectID extracts and validates the project ID from the request path.
// Expects path parameter: pid
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_project_id", "Invalid project ID format", logger)
}

// ParsePageID extracts and validates the page ID from the request path.
// Expects path parameter: pgid
func ParsePageID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pgid", "invalid_page_id", "Invalid page ID format", logger)
}

// ParseLayerID extracts and validates the layer ID from the request path.
// Expects path parameter: lid
func ParseLayerID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "lid", "invalid_layer_id", "Invalid layer ID format", logger)
}

// ParseVersionID extracts and validates the version ID from the request path.
// Expects path parameter: vid
func ParseVersionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "vid", "invalid_version_id", "Invalid version ID format", logger)
}

// ParseQueryInt reads an optional non-negative integer query parameter.
// A missing parameter yields zero; anything unparseable or negative writes
// a 400 response.
func ParseQueryInt(w http.ResponseWriter, r *http.Request, logger *zap.Logger, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", name+" must be a non-negative integer"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return value, true
}

func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
