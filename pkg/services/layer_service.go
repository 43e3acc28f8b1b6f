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

// LayerService manages layers, their column bindings, and their placements
// on pages. Column references are re-resolved against the layer's dataset so
// a layer can never point at a column of the wrong type or dataset.
type LayerService interface {
	CreateLayer(ctx context.Context, lw *models.LayerWithConfig) (*models.LayerWithConfig, error)
	GetLayer(ctx context.Context, id uuid.UUID) (*models.LayerWithConfig, error)
	ListLayers(ctx context.Context, workspaceID uuid.UUID) ([]models.LayerWithConfig, error)
	DeleteLayer(ctx context.Context, id uuid.UUID) error

	AttachLayer(ctx context.Context, pageID, layerID uuid.UUID) (*models.LayerToPage, error)
	DetachLayer(ctx context.Context, pageID, layerID uuid.UUID) error
}

type layerService struct {
	layers   repositories.LayerRepository
	datasets repositories.DatasetRepository
	projects repositories.ProjectRepository
	logger   *zap.Logger
}

func NewLayerService(layers repositories.LayerRepository, datasets repositories.DatasetRepository, projects repositories.ProjectRepository, logger *zap.Logger) LayerService {
	return &layerService{
		layers:   layers,
		datasets: datasets,
		projects: projects,
		logger:   logger.Named("layer-service"),
	}
}

var _ LayerService = (*layerService)(nil)

func (s *layerService) CreateLayer(ctx context.Context, lw *models.LayerWithConfig) (*models.LayerWithConfig, error) {
	lw.Layer.Name = strings.TrimSpace(lw.Layer.Name)
	if lw.Layer.Name == "" {
		return nil, fmt.Errorf("%w: layer name is required", apperrors.ErrValidation)
	}

	if _, err := s.datasets.Get(ctx, lw.Layer.DatasetID); err != nil {
		return nil, err
	}

	switch lw.Layer.Kind {
	case models.LayerKindPoint:
		if lw.PointLayer == nil {
			return nil, fmt.Errorf("%w: point layer requires point config", apperrors.ErrValidation)
		}
		if err := s.checkColumn(ctx, lw.Layer.DatasetID, lw.PointLayer.PointColumnID, models.ColumnTypePoint); err != nil {
			return nil, err
		}
	case models.LayerKindMarker:
		if lw.MarkerLayer == nil {
			return nil, fmt.Errorf("%w: marker layer requires marker config", apperrors.ErrValidation)
		}
		if err := s.checkColumn(ctx, lw.Layer.DatasetID, lw.MarkerLayer.PointColumnID, models.ColumnTypePoint); err != nil {
			return nil, err
		}
		if lw.MarkerLayer.TitleColumnID != nil {
			if err := s.checkColumn(ctx, lw.Layer.DatasetID, *lw.MarkerLayer.TitleColumnID, models.ColumnTypeString); err != nil {
				return nil, err
			}
		}
		if lw.MarkerLayer.IconColumnID != nil {
			if err := s.checkColumn(ctx, lw.Layer.DatasetID, *lw.MarkerLayer.IconColumnID, models.ColumnTypeIcon); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown layer kind %q", apperrors.ErrValidation, lw.Layer.Kind)
	}

	if err := s.layers.Create(ctx, lw); err != nil {
		s.logger.Error("Failed to create layer",
			zap.String("dataset_id", lw.Layer.DatasetID.String()),
			zap.Error(err))
		return nil, err
	}
	return lw, nil
}

func (s *layerService) GetLayer(ctx context.Context, id uuid.UUID) (*models.LayerWithConfig, error) {
	return s.layers.Get(ctx, id)
}

func (s *layerService) ListLayers(ctx context.Context, workspaceID uuid.UUID) ([]models.LayerWithConfig, error) {
	return s.layers.ListByWorkspace(ctx, workspaceID)
}

func (s *layerService) DeleteLayer(ctx context.Context, id uuid.UUID) error {
	return s.layers.Delete(ctx, id)
}

func (s *layerService) AttachLayer(ctx context.Context, pageID, layerID uuid.UUID) (*models.LayerToPage, error) {
	if err := s.requireDraftPage(ctx, pageID); err != nil {
		return nil, err
	}
	if _, err := s.layers.Get(ctx, layerID); err != nil {
		return nil, err
	}

	placement, err := s.layers.AttachToPage(ctx, pageID, layerID)
	if err != nil {
		return nil, err
	}
	return placement, nil
}

func (s *layerService) DetachLayer(ctx context.Context, pageID, layerID uuid.UUID) error {
	if err := s.requireDraftPage(ctx, pageID); err != nil {
		return err
	}
	return s.layers.DetachFromPage(ctx, pageID, layerID)
}

func (s *layerService) requireDraftPage(ctx context.Context, pageID uuid.UUID) error {
	page, err := s.projects.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	project, err := s.projects.Get(ctx, page.ProjectID)
	if err != nil {
		return err
	}
	if !project.IsRoot() {
		return fmt.Errorf("%w: published versions are read-only", apperrors.ErrNotRoot)
	}
	return nil
}

func (s *layerService) checkColumn(ctx context.Context, datasetID, columnID uuid.UUID, want models.ColumnType) error {
	column, err := s.datasets.GetColumn(ctx, columnID)
	if err != nil {
		return err
	}
	if column.DatasetID != datasetID {
		return fmt.Errorf("%w: column %s does not belong to dataset %s",
			apperrors.ErrDatasetScope, columnID, datasetID)
	}
	if column.Type != want {
		return fmt.Errorf("%w: column %q is %s, expected %s",
			apperrors.ErrTypeMismatch, column.Name, column.Type, want)
	}
	return nil
}
