//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/testhelpers"
)

// cellTestContext holds test dependencies for cell repository tests. Each
// setup gets its own workspace, dataset, row, and one column per type.
type cellTestContext struct {
	t        *testing.T
	ctx      context.Context
	cells    CellRepository
	datasets DatasetRepository

	datasetID uuid.UUID
	rowID     uuid.UUID
	columns   map[models.ColumnType]uuid.UUID
}

func setupCellTest(t *testing.T) *cellTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := testhelpers.ScopedContext(t, engineDB.DB, uuid.New())

	tc := &cellTestContext{
		t:        t,
		ctx:      ctx,
		cells:    NewCellRepository(),
		datasets: NewDatasetRepository(),
		columns:  make(map[models.ColumnType]uuid.UUID),
	}

	dataset := &models.Dataset{WorkspaceID: uuid.New(), Name: "cell test"}
	require.NoError(t, tc.datasets.Create(ctx, dataset))
	tc.datasetID = dataset.ID

	for _, columnType := range models.ColumnTypes {
		column := &models.Column{DatasetID: dataset.ID, Name: "col " + string(columnType), Type: columnType}
		require.NoError(t, tc.datasets.CreateColumn(ctx, column))
		tc.columns[columnType] = column.ID
	}

	row := &models.Row{DatasetID: dataset.ID}
	require.NoError(t, tc.datasets.CreateRow(ctx, row))
	tc.rowID = row.ID

	return tc
}

func TestCellRepositoryUpsert(t *testing.T) {
	t.Run("writes every value type", func(t *testing.T) {
		tc := setupCellTest(t)

		values := map[models.ColumnType]models.CellValue{
			models.ColumnTypeString:   models.StringValue("hello"),
			models.ColumnTypeNumber:   models.NumberValue(42.5),
			models.ColumnTypeBoolean:  models.BooleanValue(true),
			models.ColumnTypeDate:     models.DateValue(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
			models.ColumnTypePoint:    models.PointValue(18.42, -33.92),
			models.ColumnTypeRichText: models.RichTextValue([]models.Block{{Type: "paragraph"}}),
			models.ColumnTypeIcon:     models.IconValue("pin"),
		}

		for columnType, value := range values {
			require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, tc.columns[columnType], value))

			got, err := tc.cells.Get(tc.ctx, tc.rowID, tc.columns[columnType])
			require.NoError(t, err)
			assert.Equal(t, columnType, got.Value.Type)
		}

		resolved, err := tc.cells.ListByRow(tc.ctx, tc.rowID)
		require.NoError(t, err)
		assert.Len(t, resolved, len(values))
	})

	t.Run("setting the same value twice equals setting it once", func(t *testing.T) {
		tc := setupCellTest(t)
		columnID := tc.columns[models.ColumnTypeString]

		require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, columnID, models.StringValue("a")))
		first, err := tc.cells.Get(tc.ctx, tc.rowID, columnID)
		require.NoError(t, err)

		require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, columnID, models.StringValue("a")))
		second, err := tc.cells.Get(tc.ctx, tc.rowID, columnID)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID, "upsert reuses the cell row")
		assert.Equal(t, "a", second.Value.String)

		resolved, err := tc.cells.ListByRow(tc.ctx, tc.rowID)
		require.NoError(t, err)
		assert.Len(t, resolved, 1)
	})

	t.Run("overwrite replaces the stored value", func(t *testing.T) {
		tc := setupCellTest(t)
		columnID := tc.columns[models.ColumnTypeNumber]

		require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, columnID, models.NumberValue(1)))
		require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, columnID, models.NumberValue(2)))

		got, err := tc.cells.Get(tc.ctx, tc.rowID, columnID)
		require.NoError(t, err)
		assert.Equal(t, 2.0, got.Value.Number)
	})
}

func TestCellRepositoryClear(t *testing.T) {
	t.Run("clears a cell and its value", func(t *testing.T) {
		tc := setupCellTest(t)
		columnID := tc.columns[models.ColumnTypeString]

		require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, columnID, models.StringValue("x")))
		require.NoError(t, tc.cells.Clear(tc.ctx, tc.rowID, columnID))

		_, err := tc.cells.Get(tc.ctx, tc.rowID, columnID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("clearing an absent cell is not found", func(t *testing.T) {
		tc := setupCellTest(t)

		err := tc.cells.Clear(tc.ctx, tc.rowID, tc.columns[models.ColumnTypeString])
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestCellRepositoryCascades(t *testing.T) {
	t.Run("deleting the column removes its cells", func(t *testing.T) {
		tc := setupCellTest(t)
		columnID := tc.columns[models.ColumnTypeString]

		require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, columnID, models.StringValue("x")))
		require.NoError(t, tc.datasets.DeleteColumn(tc.ctx, columnID))

		_, err := tc.cells.Get(tc.ctx, tc.rowID, columnID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("deleting the row removes its cells", func(t *testing.T) {
		tc := setupCellTest(t)
		columnID := tc.columns[models.ColumnTypeNumber]

		require.NoError(t, tc.cells.Upsert(tc.ctx, tc.rowID, columnID, models.NumberValue(7)))
		require.NoError(t, tc.datasets.DeleteRow(tc.ctx, tc.rowID))

		_, err := tc.cells.Get(tc.ctx, tc.rowID, columnID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
