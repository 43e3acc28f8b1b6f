package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/repositories"
)

// CellWrite is a raw cell payload as submitted by editors and form
// submissions. The value is interpreted by the column's declared type, never
// by a client-supplied tag.
type CellWrite struct {
	ColumnID uuid.UUID       `json:"column_id"`
	Value    json.RawMessage `json:"value"`
}

// CellService provides typed cell operations. Every write re-resolves the
// target column's type server-side and rejects payloads that do not match.
type CellService interface {
	SetCell(ctx context.Context, datasetID, rowID, columnID uuid.UUID, raw json.RawMessage) (*models.ResolvedCell, error)
	GetCell(ctx context.Context, datasetID, rowID, columnID uuid.UUID) (*models.ResolvedCell, error)
	ClearCell(ctx context.Context, datasetID, rowID, columnID uuid.UUID) error
	ListRowCells(ctx context.Context, datasetID, rowID uuid.UUID) ([]models.ResolvedCell, error)
	// CreateRowWithCells creates a row and all its cells atomically. Used by
	// form submissions, which land a whole record or nothing.
	CreateRowWithCells(ctx context.Context, datasetID uuid.UUID, writes []CellWrite) (*models.Row, error)
}

type cellService struct {
	cells    repositories.CellRepository
	datasets repositories.DatasetRepository
	logger   *zap.Logger
}

func NewCellService(cells repositories.CellRepository, datasets repositories.DatasetRepository, logger *zap.Logger) CellService {
	return &cellService{
		cells:    cells,
		datasets: datasets,
		logger:   logger.Named("cell-service"),
	}
}

var _ CellService = (*cellService)(nil)

func (s *cellService) SetCell(ctx context.Context, datasetID, rowID, columnID uuid.UUID, raw json.RawMessage) (*models.ResolvedCell, error) {
	column, err := s.resolveColumn(ctx, datasetID, columnID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRow(ctx, datasetID, rowID); err != nil {
		return nil, err
	}

	value, err := models.ParseCellValue(column.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTypeMismatch, err)
	}
	if err := value.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	if err := s.cells.Upsert(ctx, rowID, columnID, value); err != nil {
		s.logger.Error("Failed to upsert cell",
			zap.String("row_id", rowID.String()),
			zap.String("column_id", columnID.String()),
			zap.Error(err))
		return nil, err
	}

	return s.cells.Get(ctx, rowID, columnID)
}

func (s *cellService) GetCell(ctx context.Context, datasetID, rowID, columnID uuid.UUID) (*models.ResolvedCell, error) {
	if _, err := s.resolveColumn(ctx, datasetID, columnID); err != nil {
		return nil, err
	}
	return s.cells.Get(ctx, rowID, columnID)
}

func (s *cellService) ClearCell(ctx context.Context, datasetID, rowID, columnID uuid.UUID) error {
	if _, err := s.resolveColumn(ctx, datasetID, columnID); err != nil {
		return err
	}
	return s.cells.Clear(ctx, rowID, columnID)
}

func (s *cellService) ListRowCells(ctx context.Context, datasetID, rowID uuid.UUID) ([]models.ResolvedCell, error) {
	if err := s.checkRow(ctx, datasetID, rowID); err != nil {
		return nil, err
	}
	return s.cells.ListByRow(ctx, rowID)
}

func (s *cellService) CreateRowWithCells(ctx context.Context, datasetID uuid.UUID, writes []CellWrite) (*models.Row, error) {
	columns, err := s.datasets.ListColumns(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.Column, len(columns))
	for _, column := range columns {
		byID[column.ID] = column
	}

	seen := make(map[uuid.UUID]bool, len(writes))
	inputs := make([]models.CellInput, 0, len(writes))
	for _, write := range writes {
		column, ok := byID[write.ColumnID]
		if !ok {
			return nil, fmt.Errorf("%w: column %s does not belong to dataset %s",
				apperrors.ErrDatasetScope, write.ColumnID, datasetID)
		}
		if seen[write.ColumnID] {
			return nil, fmt.Errorf("%w: duplicate write to column %s",
				apperrors.ErrValidation, write.ColumnID)
		}
		seen[write.ColumnID] = true

		value, err := models.ParseCellValue(column.Type, write.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", apperrors.ErrTypeMismatch, column.Name, err)
		}
		if err := value.Validate(); err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", apperrors.ErrValidation, column.Name, err)
		}
		inputs = append(inputs, models.CellInput{ColumnID: write.ColumnID, Value: value})
	}

	row := &models.Row{DatasetID: datasetID}
	if err := s.datasets.CreateRowWithCells(ctx, row, inputs); err != nil {
		s.logger.Error("Failed to create row with cells",
			zap.String("dataset_id", datasetID.String()),
			zap.Int("cell_count", len(inputs)),
			zap.Error(err))
		return nil, err
	}

	return row, nil
}

// resolveColumn loads a column and confirms it belongs to the dataset the
// caller addressed. Cross-dataset writes are rejected before touching cells.
func (s *cellService) resolveColumn(ctx context.Context, datasetID, columnID uuid.UUID) (*models.Column, error) {
	column, err := s.datasets.GetColumn(ctx, columnID)
	if err != nil {
		return nil, err
	}
	if column.DatasetID != datasetID {
		return nil, fmt.Errorf("%w: column %s does not belong to dataset %s",
			apperrors.ErrDatasetScope, columnID, datasetID)
	}
	return column, nil
}

func (s *cellService) checkRow(ctx context.Context, datasetID, rowID uuid.UUID) error {
	row, err := s.datasets.GetRow(ctx, rowID)
	if err != nil {
		return err
	}
	if row.DatasetID != datasetID {
		return fmt.Errorf("%w: row %s does not belong to dataset %s",
			apperrors.ErrDatasetScope, rowID, datasetID)
	}
	return nil
}
