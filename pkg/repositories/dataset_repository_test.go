//go:build integration

package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
	"github.com/atlasform-io/atlasform-engine/pkg/testhelpers"
)

func TestDatasetRepositoryCRUD(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	workspaceID := uuid.New()
	ctx := testhelpers.ScopedContext(t, engineDB.DB, workspaceID)
	repo := NewDatasetRepository()

	t.Run("create get rename delete", func(t *testing.T) {
		dataset := &models.Dataset{WorkspaceID: workspaceID, Name: "stores"}
		require.NoError(t, repo.Create(ctx, dataset))
		require.NotEqual(t, uuid.Nil, dataset.ID)

		got, err := repo.Get(ctx, dataset.ID)
		require.NoError(t, err)
		assert.Equal(t, "stores", got.Name)

		require.NoError(t, repo.Rename(ctx, dataset.ID, "shops"))
		got, err = repo.Get(ctx, dataset.ID)
		require.NoError(t, err)
		assert.Equal(t, "shops", got.Name)

		require.NoError(t, repo.Delete(ctx, dataset.ID))
		_, err = repo.Get(ctx, dataset.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("list is scoped to the workspace", func(t *testing.T) {
		dataset := &models.Dataset{WorkspaceID: workspaceID, Name: "mine"}
		require.NoError(t, repo.Create(ctx, dataset))

		listed, err := repo.List(ctx, workspaceID)
		require.NoError(t, err)
		require.NotEmpty(t, listed)
		for _, d := range listed {
			assert.Equal(t, workspaceID, d.WorkspaceID)
		}
	})

	t.Run("unknown dataset is not found", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, repo.Rename(ctx, uuid.New(), "x"), apperrors.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), apperrors.ErrNotFound)
	})
}

func TestDatasetRepositoryColumns(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	workspaceID := uuid.New()
	ctx := testhelpers.ScopedContext(t, engineDB.DB, workspaceID)
	repo := NewDatasetRepository()

	newDataset := func(t *testing.T) uuid.UUID {
		dataset := &models.Dataset{WorkspaceID: workspaceID, Name: "columns test"}
		require.NoError(t, repo.Create(ctx, dataset))
		return dataset.ID
	}

	t.Run("same name may exist once per type", func(t *testing.T) {
		datasetID := newDataset(t)

		numberAge := &models.Column{DatasetID: datasetID, Name: "age", Type: models.ColumnTypeNumber}
		require.NoError(t, repo.CreateColumn(ctx, numberAge))

		stringAge := &models.Column{DatasetID: datasetID, Name: "age", Type: models.ColumnTypeString}
		require.NoError(t, repo.CreateColumn(ctx, stringAge))

		duplicate := &models.Column{DatasetID: datasetID, Name: "age", Type: models.ColumnTypeNumber}
		assert.ErrorIs(t, repo.CreateColumn(ctx, duplicate), apperrors.ErrConflict)

		columns, err := repo.ListColumns(ctx, datasetID)
		require.NoError(t, err)
		assert.Len(t, columns, 2)
	})

	t.Run("columns list in creation order", func(t *testing.T) {
		datasetID := newDataset(t)

		for _, name := range []string{"first", "second", "third"} {
			column := &models.Column{DatasetID: datasetID, Name: name, Type: models.ColumnTypeString}
			require.NoError(t, repo.CreateColumn(ctx, column))
		}

		columns, err := repo.ListColumns(ctx, datasetID)
		require.NoError(t, err)
		require.Len(t, columns, 3)
		assert.Equal(t, "first", columns[0].Name)
		assert.Equal(t, "third", columns[2].Name)
	})
}

func TestDatasetRepositoryCreateRowWithCells(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	workspaceID := uuid.New()
	ctx := testhelpers.ScopedContext(t, engineDB.DB, workspaceID)
	repo := NewDatasetRepository()
	cells := NewCellRepository()

	dataset := &models.Dataset{WorkspaceID: workspaceID, Name: "submissions"}
	require.NoError(t, repo.Create(ctx, dataset))
	name := &models.Column{DatasetID: dataset.ID, Name: "name", Type: models.ColumnTypeString}
	require.NoError(t, repo.CreateColumn(ctx, name))
	age := &models.Column{DatasetID: dataset.ID, Name: "age", Type: models.ColumnTypeNumber}
	require.NoError(t, repo.CreateColumn(ctx, age))

	t.Run("row and cells land together", func(t *testing.T) {
		row := &models.Row{DatasetID: dataset.ID}
		err := repo.CreateRowWithCells(ctx, row, []models.CellInput{
			{ColumnID: name.ID, Value: models.StringValue("alice")},
			{ColumnID: age.ID, Value: models.NumberValue(30)},
		})
		require.NoError(t, err)

		resolved, err := cells.ListByRow(ctx, row.ID)
		require.NoError(t, err)
		assert.Len(t, resolved, 2)
	})

	t.Run("a bad cell rolls the row back", func(t *testing.T) {
		row := &models.Row{DatasetID: dataset.ID}
		err := repo.CreateRowWithCells(ctx, row, []models.CellInput{
			{ColumnID: name.ID, Value: models.StringValue("bob")},
			{ColumnID: uuid.New(), Value: models.NumberValue(1)},
		})
		require.Error(t, err)

		_, err = repo.GetRow(ctx, row.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestDatasetRepositoryCreateWithData(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	workspaceID := uuid.New()
	ctx := testhelpers.ScopedContext(t, engineDB.DB, workspaceID)
	repo := NewDatasetRepository()

	t.Run("whole import lands in one shot", func(t *testing.T) {
		dataset := &models.Dataset{ID: uuid.New(), WorkspaceID: workspaceID, Name: "imported"}
		name := &models.Column{ID: uuid.New(), DatasetID: dataset.ID, Name: "name", Type: models.ColumnTypeString}
		rowA := &models.Row{ID: uuid.New(), DatasetID: dataset.ID}
		rowB := &models.Row{ID: uuid.New(), DatasetID: dataset.ID}

		err := repo.CreateWithData(ctx, dataset,
			[]*models.Column{name},
			[]*models.Row{rowA, rowB},
			map[uuid.UUID][]models.CellInput{
				rowA.ID: {{ColumnID: name.ID, Value: models.StringValue("a")}},
				rowB.ID: {{ColumnID: name.ID, Value: models.StringValue("b")}},
			})
		require.NoError(t, err)

		got, err := repo.GetWithData(ctx, dataset.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, got.Columns, 1)
		require.Len(t, got.Rows, 2)

		byID := make(map[uuid.UUID]models.ResolvedRow)
		for _, r := range got.Rows {
			byID[r.ID] = r
		}
		assert.Equal(t, "a", byID[rowA.ID].Cells[name.ID].String)
		assert.Equal(t, "b", byID[rowB.ID].Cells[name.ID].String)
	})

	t.Run("rows page with limit and offset", func(t *testing.T) {
		dataset := &models.Dataset{WorkspaceID: workspaceID, Name: "paged"}
		require.NoError(t, repo.Create(ctx, dataset))
		name := &models.Column{DatasetID: dataset.ID, Name: "name", Type: models.ColumnTypeString}
		require.NoError(t, repo.CreateColumn(ctx, name))

		// Rows created one at a time so creation order is unambiguous.
		var ids []uuid.UUID
		for _, v := range []string{"a", "b", "c"} {
			row := &models.Row{DatasetID: dataset.ID}
			require.NoError(t, repo.CreateRowWithCells(ctx, row, []models.CellInput{
				{ColumnID: name.ID, Value: models.StringValue(v)},
			}))
			ids = append(ids, row.ID)
		}

		first, err := repo.GetWithData(ctx, dataset.ID, 2, 0)
		require.NoError(t, err)
		require.Len(t, first.Rows, 2)
		assert.Equal(t, ids[0], first.Rows[0].ID)
		assert.Equal(t, ids[1], first.Rows[1].ID)
		assert.Equal(t, "a", first.Rows[0].Cells[name.ID].String)

		second, err := repo.GetWithData(ctx, dataset.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, second.Rows, 1)
		assert.Equal(t, ids[2], second.Rows[0].ID)
		assert.Equal(t, "c", second.Rows[0].Cells[name.ID].String)

		past, err := repo.GetWithData(ctx, dataset.ID, 2, 5)
		require.NoError(t, err)
		assert.Empty(t, past.Rows)
		require.Len(t, past.Columns, 1, "columns come back regardless of the row page")
	})

	t.Run("a failure leaves no partial dataset", func(t *testing.T) {
		dataset := &models.Dataset{ID: uuid.New(), WorkspaceID: workspaceID, Name: "broken import"}
		row := &models.Row{ID: uuid.New(), DatasetID: dataset.ID}

		err := repo.CreateWithData(ctx, dataset, nil,
			[]*models.Row{row},
			map[uuid.UUID][]models.CellInput{
				row.ID: {{ColumnID: uuid.New(), Value: models.StringValue("x")}},
			})
		require.Error(t, err)

		_, err = repo.Get(ctx, dataset.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
