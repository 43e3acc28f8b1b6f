package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// buildVersionGraph clones a draft graph into a version graph: every page,
// layer, and sublayer gets a fresh id, every cross-reference is remapped
// through the id tables, and relative order is carried over unchanged.
// Dataset and column references are copied as-is; versions share the draft's
// data. The result is validated for referential closure before any write
// happens, so a dangling reference fails the publish instead of the database.
func buildVersionGraph(draft *models.ProjectGraph, rootID uuid.UUID) (*models.ProjectGraph, error) {
	version := &models.ProjectGraph{
		Project: models.Project{
			ID:            uuid.New(),
			WorkspaceID:   draft.Project.WorkspaceID,
			TeamspaceID:   draft.Project.TeamspaceID,
			Name:          draft.Project.Name,
			RootProjectID: &rootID,
			FormsEnabled:  draft.Project.FormsEnabled,
		},
	}

	pageIDs := make(map[uuid.UUID]uuid.UUID, len(draft.Pages))
	version.Pages = make([]models.Page, 0, len(draft.Pages))
	for _, page := range draft.Pages {
		clone := page
		clone.ID = uuid.New()
		clone.ProjectID = version.Project.ID
		pageIDs[page.ID] = clone.ID
		version.Pages = append(version.Pages, clone)
	}

	layerIDs := make(map[uuid.UUID]uuid.UUID, len(draft.Layers))
	version.Layers = make([]models.LayerWithConfig, 0, len(draft.Layers))
	for _, lw := range draft.Layers {
		clone := models.LayerWithConfig{Layer: lw.Layer}
		clone.Layer.ID = uuid.New()
		layerIDs[lw.Layer.ID] = clone.Layer.ID

		switch lw.Layer.Kind {
		case models.LayerKindPoint:
			if lw.PointLayer == nil {
				return nil, fmt.Errorf("layer %s is point-kind but has no point config", lw.Layer.ID)
			}
			pl := *lw.PointLayer
			pl.ID = uuid.New()
			pl.LayerID = clone.Layer.ID
			clone.PointLayer = &pl
		case models.LayerKindMarker:
			if lw.MarkerLayer == nil {
				return nil, fmt.Errorf("layer %s is marker-kind but has no marker config", lw.Layer.ID)
			}
			ml := *lw.MarkerLayer
			ml.ID = uuid.New()
			ml.LayerID = clone.Layer.ID
			clone.MarkerLayer = &ml
		default:
			return nil, fmt.Errorf("layer %s has unknown kind %q", lw.Layer.ID, lw.Layer.Kind)
		}

		version.Layers = append(version.Layers, clone)
	}

	version.Placements = make([]models.LayerToPage, 0, len(draft.Placements))
	for _, placement := range draft.Placements {
		newPageID, ok := pageIDs[placement.PageID]
		if !ok {
			return nil, fmt.Errorf("placement references page %s not in draft", placement.PageID)
		}
		newLayerID, ok := layerIDs[placement.LayerID]
		if !ok {
			return nil, fmt.Errorf("placement references layer %s not in draft", placement.LayerID)
		}
		version.Placements = append(version.Placements, models.LayerToPage{
			PageID:   newPageID,
			LayerID:  newLayerID,
			Position: placement.Position,
		})
	}

	return version, nil
}
