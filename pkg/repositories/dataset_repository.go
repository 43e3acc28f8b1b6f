package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/database"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// DatasetRepository defines data access for datasets, columns, and rows.
type DatasetRepository interface {
	Create(ctx context.Context, dataset *models.Dataset) error
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	List(ctx context.Context, workspaceID uuid.UUID) ([]*models.Dataset, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Delete(ctx context.Context, id uuid.UUID) error

	// CreateColumn inserts a column; a duplicate (dataset, type, name)
	// returns ErrConflict.
	CreateColumn(ctx context.Context, column *models.Column) error
	GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error)
	ListColumns(ctx context.Context, datasetID uuid.UUID) ([]*models.Column, error)
	// DeleteColumn removes a column; its cells cascade.
	DeleteColumn(ctx context.Context, id uuid.UUID) error

	CreateRow(ctx context.Context, row *models.Row) error
	GetRow(ctx context.Context, id uuid.UUID) (*models.Row, error)
	DeleteRow(ctx context.Context, id uuid.UUID) error

	// CreateRowWithCells inserts a row and all its cells in one transaction.
	CreateRowWithCells(ctx context.Context, row *models.Row, cells []models.CellInput) error

	// CreateWithData inserts a dataset, its columns, rows, and every cell in
	// one transaction. Used by CSV/GeoJSON import; a failure anywhere leaves
	// no partial dataset behind.
	CreateWithData(ctx context.Context, dataset *models.Dataset, columns []*models.Column, rows []*models.Row, cellsByRow map[uuid.UUID][]models.CellInput) error

	// GetWithData returns the dataset, its columns in creation order, and
	// a page of its rows with resolved cell values. limit caps the number of
	// rows returned (limit <= 0 returns them all), offset skips that many
	// rows from the front of the creation order.
	GetWithData(ctx context.Context, id uuid.UUID, limit, offset int) (*models.DatasetWithData, error)
}

type datasetRepository struct{}

// NewDatasetRepository creates a new dataset repository.
func NewDatasetRepository() DatasetRepository {
	return &datasetRepository{}
}

func (r *datasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}
	now := time.Now()
	dataset.CreatedAt = now
	dataset.UpdatedAt = now

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO atlas_datasets (id, workspace_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		dataset.ID, dataset.WorkspaceID, dataset.Name, dataset.CreatedAt, dataset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	return nil
}

func (r *datasetRepository) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var dataset models.Dataset
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, workspace_id, name, created_at, updated_at
		FROM atlas_datasets WHERE id = $1`, id).Scan(
		&dataset.ID, &dataset.WorkspaceID, &dataset.Name, &dataset.CreatedAt, &dataset.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return &dataset, nil
}

func (r *datasetRepository) List(ctx context.Context, workspaceID uuid.UUID) ([]*models.Dataset, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, workspace_id, name, created_at, updated_at
		FROM atlas_datasets WHERE workspace_id = $1
		ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*models.Dataset
	for rows.Next() {
		var dataset models.Dataset
		if err := rows.Scan(&dataset.ID, &dataset.WorkspaceID, &dataset.Name,
			&dataset.CreatedAt, &dataset.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, &dataset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read datasets: %w", err)
	}

	return datasets, nil
}

func (r *datasetRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE atlas_datasets SET name = $2, updated_at = now() WHERE id = $1`,
		id, name)
	if err != nil {
		return fmt.Errorf("failed to rename dataset: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *datasetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM atlas_datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *datasetRepository) CreateColumn(ctx context.Context, column *models.Column) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if column.ID == uuid.Nil {
		column.ID = uuid.New()
	}
	column.CreatedAt = time.Now()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO atlas_columns (id, dataset_id, name, type, block_note_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		column.ID, column.DatasetID, column.Name, column.Type, column.BlockNoteID, column.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create column: %w", err)
	}

	return nil
}

func (r *datasetRepository) GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var column models.Column
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, dataset_id, name, type, block_note_id, created_at
		FROM atlas_columns WHERE id = $1`, id).Scan(
		&column.ID, &column.DatasetID, &column.Name, &column.Type,
		&column.BlockNoteID, &column.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get column: %w", err)
	}

	return &column, nil
}

func (r *datasetRepository) ListColumns(ctx context.Context, datasetID uuid.UUID) ([]*models.Column, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	return listColumns(ctx, scope.Conn, datasetID)
}

func (r *datasetRepository) DeleteColumn(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM atlas_columns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *datasetRepository) CreateRow(ctx context.Context, row *models.Row) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO atlas_rows (id, dataset_id, created_at) VALUES ($1, $2, $3)`,
		row.ID, row.DatasetID, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create row: %w", err)
	}

	return nil
}

func (r *datasetRepository) GetRow(ctx context.Context, id uuid.UUID) (*models.Row, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var row models.Row
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, dataset_id, created_at FROM atlas_rows WHERE id = $1`, id).Scan(
		&row.ID, &row.DatasetID, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get row: %w", err)
	}

	return &row, nil
}

func (r *datasetRepository) DeleteRow(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM atlas_rows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *datasetRepository) CreateRowWithCells(ctx context.Context, row *models.Row, cells []models.CellInput) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.CreatedAt = time.Now()

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_rows (id, dataset_id, created_at) VALUES ($1, $2, $3)`,
		row.ID, row.DatasetID, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create row: %w", err)
	}

	for _, cell := range cells {
		if err := insertCell(ctx, tx, row.ID, cell); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *datasetRepository) CreateWithData(ctx context.Context, dataset *models.Dataset, columns []*models.Column, rows []*models.Row, cellsByRow map[uuid.UUID][]models.CellInput) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	now := time.Now()
	dataset.CreatedAt = now
	dataset.UpdatedAt = now

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_datasets (id, workspace_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		dataset.ID, dataset.WorkspaceID, dataset.Name, dataset.CreatedAt, dataset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	for _, column := range columns {
		column.CreatedAt = now
		_, err = tx.Exec(ctx, `
			INSERT INTO atlas_columns (id, dataset_id, name, type, block_note_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			column.ID, column.DatasetID, column.Name, column.Type, column.BlockNoteID, column.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create column %q: %w", column.Name, err)
		}
	}

	// Rows are inserted sequentially in input order; cell writes depend on
	// their row existing.
	for _, row := range rows {
		row.CreatedAt = now
		_, err = tx.Exec(ctx, `
			INSERT INTO atlas_rows (id, dataset_id, created_at) VALUES ($1, $2, $3)`,
			row.ID, row.DatasetID, row.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create row: %w", err)
		}

		for _, cell := range cellsByRow[row.ID] {
			if err := insertCell(ctx, tx, row.ID, cell); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *datasetRepository) GetWithData(ctx context.Context, id uuid.UUID, limit, offset int) (*models.DatasetWithData, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	dataset, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	columns, err := listColumns(ctx, scope.Conn, id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, dataset_id, created_at FROM atlas_rows
		WHERE dataset_id = $1 ORDER BY created_at, id`
	args := []any{id}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rowRecords, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rowRecords.Close()

	var resolved []models.ResolvedRow
	var rowIDs []uuid.UUID
	rowIndex := make(map[uuid.UUID]int)
	for rowRecords.Next() {
		var row models.Row
		if err := rowRecords.Scan(&row.ID, &row.DatasetID, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rowIndex[row.ID] = len(resolved)
		rowIDs = append(rowIDs, row.ID)
		resolved = append(resolved, models.ResolvedRow{
			Row:   row,
			Cells: make(map[uuid.UUID]models.CellValue),
		})
	}
	if err := rowRecords.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	rowRecords.Close()

	// Cells only for the rows in this page.
	if len(rowIDs) > 0 {
		cells, err := queryResolvedCells(ctx, scope.Conn, "c.row_id = ANY($1)", rowIDs)
		if err != nil {
			return nil, err
		}
		for _, cell := range cells {
			idx, ok := rowIndex[cell.RowID]
			if !ok {
				continue
			}
			resolved[idx].Cells[cell.ColumnID] = cell.Value
		}
	}

	return &models.DatasetWithData{
		Dataset: *dataset,
		Columns: derefColumns(columns),
		Rows:    resolved,
	}, nil
}

// insertCell writes one cell and its typed value inside the caller's
// transaction.
func insertCell(ctx context.Context, tx pgx.Tx, rowID uuid.UUID, cell models.CellInput) error {
	cellID := uuid.New()
	_, err := tx.Exec(ctx, `
		INSERT INTO atlas_cells (id, row_id, column_id, updated_at)
		VALUES ($1, $2, $3, now())`,
		cellID, rowID, cell.ColumnID)
	if err != nil {
		return fmt.Errorf("failed to create cell: %w", err)
	}

	return upsertTypedValue(ctx, tx, cellID, cell.Value)
}

func listColumns(ctx context.Context, db dbtx, datasetID uuid.UUID) ([]*models.Column, error) {
	rows, err := db.Query(ctx, `
		SELECT id, dataset_id, name, type, block_note_id, created_at
		FROM atlas_columns WHERE dataset_id = $1
		ORDER BY created_at, id`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	defer rows.Close()

	var columns []*models.Column
	for rows.Next() {
		var column models.Column
		if err := rows.Scan(&column.ID, &column.DatasetID, &column.Name,
			&column.Type, &column.BlockNoteID, &column.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		columns = append(columns, &column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	return columns, nil
}

func derefColumns(columns []*models.Column) []models.Column {
	out := make([]models.Column, len(columns))
	for i, c := range columns {
		out[i] = *c
	}
	return out
}

// Ensure datasetRepository implements DatasetRepository at compile time.
var _ DatasetRepository = (*datasetRepository)(nil)
