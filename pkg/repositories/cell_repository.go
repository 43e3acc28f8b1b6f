package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/database"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// CellRepository is the typed cell store: exactly one cell per (row, column)
// pair, with the value held in the side table named by the column's type.
type CellRepository interface {
	// Upsert creates or overwrites the cell for (rowID, columnID). The cell
	// row and its typed value are written in one transaction; a failure
	// leaves neither behind.
	Upsert(ctx context.Context, rowID, columnID uuid.UUID, value models.CellValue) error
	// Get returns the cell and its tagged value, or ErrNotFound.
	Get(ctx context.Context, rowID, columnID uuid.UUID) (*models.ResolvedCell, error)
	// Clear deletes the cell for (rowID, columnID); the typed value cascades.
	Clear(ctx context.Context, rowID, columnID uuid.UUID) error
	// ListByRow returns all cells of a row with resolved values, in column
	// creation order.
	ListByRow(ctx context.Context, rowID uuid.UUID) ([]models.ResolvedCell, error)
}

type cellRepository struct{}

// NewCellRepository creates a new cell repository.
func NewCellRepository() CellRepository {
	return &cellRepository{}
}

func (r *cellRepository) Upsert(ctx context.Context, rowID, columnID uuid.UUID, value models.CellValue) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var cellID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO atlas_cells (id, row_id, column_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (row_id, column_id) DO UPDATE SET updated_at = now()
		RETURNING id`,
		uuid.New(), rowID, columnID,
	).Scan(&cellID)
	if err != nil {
		return fmt.Errorf("failed to upsert cell: %w", err)
	}

	if err := upsertTypedValue(ctx, tx, cellID, value); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *cellRepository) Get(ctx context.Context, rowID, columnID uuid.UUID) (*models.ResolvedCell, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	cells, err := queryResolvedCells(ctx, scope.Conn,
		"c.row_id = $1 AND c.column_id = $2", rowID, columnID)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return &cells[0], nil
}

func (r *cellRepository) Clear(ctx context.Context, rowID, columnID uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx,
		`DELETE FROM atlas_cells WHERE row_id = $1 AND column_id = $2`,
		rowID, columnID)
	if err != nil {
		return fmt.Errorf("failed to clear cell: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *cellRepository) ListByRow(ctx context.Context, rowID uuid.UUID) ([]models.ResolvedCell, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	return queryResolvedCells(ctx, scope.Conn, "c.row_id = $1", rowID)
}

// upsertTypedValue writes the typed value row for a cell, dispatching on the
// value's tag. Each branch touches exactly one of the seven side tables.
// Shared with the dataset repository's bulk write paths, which run it inside
// their own transactions.
func upsertTypedValue(ctx context.Context, db dbtx, cellID uuid.UUID, value models.CellValue) error {
	var err error
	switch value.Type {
	case models.ColumnTypeString:
		_, err = db.Exec(ctx, `
			INSERT INTO atlas_string_cells (cell_id, value) VALUES ($1, $2)
			ON CONFLICT (cell_id) DO UPDATE SET value = EXCLUDED.value`,
			cellID, value.String)
	case models.ColumnTypeNumber:
		_, err = db.Exec(ctx, `
			INSERT INTO atlas_number_cells (cell_id, value) VALUES ($1, $2)
			ON CONFLICT (cell_id) DO UPDATE SET value = EXCLUDED.value`,
			cellID, value.Number)
	case models.ColumnTypeBoolean:
		_, err = db.Exec(ctx, `
			INSERT INTO atlas_boolean_cells (cell_id, value) VALUES ($1, $2)
			ON CONFLICT (cell_id) DO UPDATE SET value = EXCLUDED.value`,
			cellID, value.Boolean)
	case models.ColumnTypeDate:
		_, err = db.Exec(ctx, `
			INSERT INTO atlas_date_cells (cell_id, value) VALUES ($1, $2)
			ON CONFLICT (cell_id) DO UPDATE SET value = EXCLUDED.value`,
			cellID, value.Date)
	case models.ColumnTypePoint:
		_, err = db.Exec(ctx, `
			INSERT INTO atlas_point_cells (cell_id, x, y) VALUES ($1, $2, $3)
			ON CONFLICT (cell_id) DO UPDATE SET x = EXCLUDED.x, y = EXCLUDED.y`,
			cellID, value.Point.X, value.Point.Y)
	case models.ColumnTypeRichText:
		var blocks []byte
		blocks, err = json.Marshal(value.RichText)
		if err != nil {
			return fmt.Errorf("failed to marshal richtext blocks: %w", err)
		}
		_, err = db.Exec(ctx, `
			INSERT INTO atlas_richtext_cells (cell_id, value) VALUES ($1, $2)
			ON CONFLICT (cell_id) DO UPDATE SET value = EXCLUDED.value`,
			cellID, blocks)
	case models.ColumnTypeIcon:
		_, err = db.Exec(ctx, `
			INSERT INTO atlas_icon_cells (cell_id, value) VALUES ($1, $2)
			ON CONFLICT (cell_id) DO UPDATE SET value = EXCLUDED.value`,
			cellID, value.Icon)
	default:
		return fmt.Errorf("unknown cell value type %q", value.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s value: %w", value.Type, err)
	}
	return nil
}

// queryResolvedCells selects cells matching the where clause joined with
// every typed side table, and builds tagged values by reading the one table
// the column's declared type names.
func queryResolvedCells(ctx context.Context, db dbtx, where string, args ...any) ([]models.ResolvedCell, error) {
	query := fmt.Sprintf(`
		SELECT c.id, c.row_id, c.column_id, c.updated_at, col.type,
		       s.value, n.value, b.value, d.value, p.x, p.y, rt.value, i.value
		FROM atlas_cells c
		JOIN atlas_columns col ON col.id = c.column_id
		LEFT JOIN atlas_string_cells s ON s.cell_id = c.id
		LEFT JOIN atlas_number_cells n ON n.cell_id = c.id
		LEFT JOIN atlas_boolean_cells b ON b.cell_id = c.id
		LEFT JOIN atlas_date_cells d ON d.cell_id = c.id
		LEFT JOIN atlas_point_cells p ON p.cell_id = c.id
		LEFT JOIN atlas_richtext_cells rt ON rt.cell_id = c.id
		LEFT JOIN atlas_icon_cells i ON i.cell_id = c.id
		WHERE %s
		ORDER BY col.created_at, col.id`, where)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var cells []models.ResolvedCell
	for rows.Next() {
		cell, err := scanResolvedCell(rows)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cells: %w", err)
	}

	return cells, nil
}

func scanResolvedCell(row pgx.Rows) (*models.ResolvedCell, error) {
	var (
		cell     models.ResolvedCell
		colType  models.ColumnType
		strVal   *string
		numVal   *float64
		boolVal  *bool
		dateVal  *time.Time
		pointX   *float64
		pointY   *float64
		richVal  []byte
		iconVal  *string
	)

	if err := row.Scan(
		&cell.ID, &cell.RowID, &cell.ColumnID, &cell.UpdatedAt, &colType,
		&strVal, &numVal, &boolVal, &dateVal, &pointX, &pointY, &richVal, &iconVal,
	); err != nil {
		return nil, fmt.Errorf("failed to scan cell: %w", err)
	}

	// The write path guarantees one typed value per cell in the table the
	// column's type names; a miss here is a data-integrity failure.
	missing := func() error {
		return fmt.Errorf("cell %s has no %s value", cell.ID, colType)
	}

	switch colType {
	case models.ColumnTypeString:
		if strVal == nil {
			return nil, missing()
		}
		cell.Value = models.StringValue(*strVal)
	case models.ColumnTypeNumber:
		if numVal == nil {
			return nil, missing()
		}
		cell.Value = models.NumberValue(*numVal)
	case models.ColumnTypeBoolean:
		if boolVal == nil {
			return nil, missing()
		}
		cell.Value = models.BooleanValue(*boolVal)
	case models.ColumnTypeDate:
		if dateVal == nil {
			return nil, missing()
		}
		cell.Value = models.DateValue(*dateVal)
	case models.ColumnTypePoint:
		if pointX == nil || pointY == nil {
			return nil, missing()
		}
		cell.Value = models.PointValue(*pointX, *pointY)
	case models.ColumnTypeRichText:
		if richVal == nil {
			return nil, missing()
		}
		var blocks []models.Block
		if err := json.Unmarshal(richVal, &blocks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal richtext blocks: %w", err)
		}
		cell.Value = models.RichTextValue(blocks)
	case models.ColumnTypeIcon:
		if iconVal == nil {
			return nil, missing()
		}
		cell.Value = models.IconValue(*iconVal)
	default:
		return nil, fmt.Errorf("unknown column type %q", colType)
	}

	return &cell, nil
}

// Ensure cellRepository implements CellRepository at compile time.
var _ CellRepository = (*cellRepository)(nil)
