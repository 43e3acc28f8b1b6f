package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/config"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/repositories"
)

// ImportService ingests CSV and GeoJSON sources into new datasets. Parsing
// and type inference happen up front; the dataset, columns, rows, and cells
// are then written in one transaction, so a parse failure anywhere leaves no
// partial dataset behind.
type ImportService interface {
	ImportCSV(ctx context.Context, workspaceID uuid.UUID, filename string, r io.Reader) (*models.DatasetWithData, error)
	ImportGeoJSON(ctx context.Context, workspaceID uuid.UUID, filename string, r io.Reader) (*models.DatasetWithData, error)
}

type importService struct {
	datasets repositories.DatasetRepository
	cfg      config.ImportConfig
	logger   *zap.Logger
}

func NewImportService(datasets repositories.DatasetRepository, cfg config.ImportConfig, logger *zap.Logger) ImportService {
	return &importService{
		datasets: datasets,
		cfg:      cfg,
		logger:   logger.Named("import-service"),
	}
}

var _ ImportService = (*importService)(nil)

func (s *importService) ImportCSV(ctx context.Context, workspaceID uuid.UUID, filename string, r io.Reader) (*models.DatasetWithData, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	datasetID := uuid.New()
	plan, err := buildCSVPlan(datasetID, records, s.cfg.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	return s.materialize(ctx, workspaceID, datasetID, filename, plan)
}

func (s *importService) ImportGeoJSON(ctx context.Context, workspaceID uuid.UUID, filename string, r io.Reader) (*models.DatasetWithData, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson body: %w", err)
	}

	datasetID := uuid.New()
	plan, err := buildGeoJSONPlan(datasetID, data, s.cfg.MaxRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	return s.materialize(ctx, workspaceID, datasetID, filename, plan)
}

func (s *importService) materialize(ctx context.Context, workspaceID, datasetID uuid.UUID, filename string, plan *importPlan) (*models.DatasetWithData, error) {
	dataset := &models.Dataset{
		ID:          datasetID,
		WorkspaceID: workspaceID,
		Name:        datasetNameFrom(filename),
	}

	if err := s.datasets.CreateWithData(ctx, dataset, plan.columns, plan.rows, plan.cells); err != nil {
		s.logger.Error("Failed to write imported dataset",
			zap.String("workspace_id", workspaceID.String()),
			zap.Int("column_count", len(plan.columns)),
			zap.Int("row_count", len(plan.rows)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Imported dataset",
		zap.String("dataset_id", dataset.ID.String()),
		zap.Int("column_count", len(plan.columns)),
		zap.Int("row_count", len(plan.rows)))

	return s.datasets.GetWithData(ctx, dataset.ID, 0, 0)
}

// datasetNameFrom derives a dataset name from the uploaded file name:
// extension stripped, separators spaced, and the name pluralized since a
// dataset is a collection ("store.csv" becomes "stores").
func datasetNameFrom(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.TrimSpace(base)
	if base == "" {
		return "imported dataset"
	}
	return inflection.Plural(base)
}
