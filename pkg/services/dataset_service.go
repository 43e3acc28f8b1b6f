package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/repositories"
)

// DatasetService provides dataset, column, and row management.
type DatasetService interface {
	CreateDataset(ctx context.Context, workspaceID uuid.UUID, name string) (*models.Dataset, error)
	GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	// GetDatasetWithData resolves a page of rows with their cell values.
	// limit <= 0 returns every row.
	GetDatasetWithData(ctx context.Context, id uuid.UUID, limit, offset int) (*models.DatasetWithData, error)
	ListDatasets(ctx context.Context, workspaceID uuid.UUID) ([]*models.Dataset, error)
	RenameDataset(ctx context.Context, id uuid.UUID, name string) error
	DeleteDataset(ctx context.Context, id uuid.UUID) error

	AddColumn(ctx context.Context, datasetID uuid.UUID, name string, columnType models.ColumnType, blockNoteID *string) (*models.Column, error)
	ListColumns(ctx context.Context, datasetID uuid.UUID) ([]*models.Column, error)
	DeleteColumn(ctx context.Context, datasetID, columnID uuid.UUID) error

	CreateRow(ctx context.Context, datasetID uuid.UUID) (*models.Row, error)
	DeleteRow(ctx context.Context, datasetID, rowID uuid.UUID) error
}

type datasetService struct {
	repo   repositories.DatasetRepository
	logger *zap.Logger
}

func NewDatasetService(repo repositories.DatasetRepository, logger *zap.Logger) DatasetService {
	return &datasetService{
		repo:   repo,
		logger: logger.Named("dataset-service"),
	}
}

var _ DatasetService = (*datasetService)(nil)

func (s *datasetService) CreateDataset(ctx context.Context, workspaceID uuid.UUID, name string) (*models.Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: dataset name is required", apperrors.ErrValidation)
	}

	dataset := &models.Dataset{WorkspaceID: workspaceID, Name: name}
	if err := s.repo.Create(ctx, dataset); err != nil {
		s.logger.Error("Failed to create dataset",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		return nil, err
	}
	return dataset, nil
}

func (s *datasetService) GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.repo.Get(ctx, id)
}

func (s *datasetService) GetDatasetWithData(ctx context.Context, id uuid.UUID, limit, offset int) (*models.DatasetWithData, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", apperrors.ErrValidation)
	}
	return s.repo.GetWithData(ctx, id, limit, offset)
}

func (s *datasetService) ListDatasets(ctx context.Context, workspaceID uuid.UUID) ([]*models.Dataset, error) {
	return s.repo.List(ctx, workspaceID)
}

func (s *datasetService) RenameDataset(ctx context.Context, id uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: dataset name is required", apperrors.ErrValidation)
	}
	return s.repo.Rename(ctx, id, name)
}

func (s *datasetService) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *datasetService) AddColumn(ctx context.Context, datasetID uuid.UUID, name string, columnType models.ColumnType, blockNoteID *string) (*models.Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: column name is required", apperrors.ErrValidation)
	}
	if !models.IsValidColumnType(columnType) {
		return nil, fmt.Errorf("%w: unknown column type %q", apperrors.ErrValidation, columnType)
	}

	if _, err := s.repo.Get(ctx, datasetID); err != nil {
		return nil, err
	}

	column := &models.Column{
		DatasetID:   datasetID,
		Name:        name,
		Type:        columnType,
		BlockNoteID: blockNoteID,
	}
	if err := s.repo.CreateColumn(ctx, column); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			s.logger.Error("Failed to create column",
				zap.String("dataset_id", datasetID.String()),
				zap.Error(err))
		}
		return nil, err
	}
	return column, nil
}

func (s *datasetService) ListColumns(ctx context.Context, datasetID uuid.UUID) ([]*models.Column, error) {
	return s.repo.ListColumns(ctx, datasetID)
}

func (s *datasetService) DeleteColumn(ctx context.Context, datasetID, columnID uuid.UUID) error {
	column, err := s.repo.GetColumn(ctx, columnID)
	if err != nil {
		return err
	}
	if column.DatasetID != datasetID {
		return fmt.Errorf("%w: column %s does not belong to dataset %s",
			apperrors.ErrDatasetScope, columnID, datasetID)
	}
	return s.repo.DeleteColumn(ctx, columnID)
}

func (s *datasetService) CreateRow(ctx context.Context, datasetID uuid.UUID) (*models.Row, error) {
	if _, err := s.repo.Get(ctx, datasetID); err != nil {
		return nil, err
	}

	row := &models.Row{DatasetID: datasetID}
	if err := s.repo.CreateRow(ctx, row); err != nil {
		s.logger.Error("Failed to create row",
			zap.String("dataset_id", datasetID.String()),
			zap.Error(err))
		return nil, err
	}
	return row, nil
}

func (s *datasetService) DeleteRow(ctx context.Context, datasetID, rowID uuid.UUID) error {
	row, err := s.repo.GetRow(ctx, rowID)
	if err != nil {
		return err
	}
	if row.DatasetID != datasetID {
		return fmt.Errorf("%w: row %s does not belong to dataset %s",
			apperrors.ErrDatasetScope, rowID, datasetID)
	}
	return s.repo.DeleteRow(ctx, rowID)
}
