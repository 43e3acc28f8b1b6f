package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// mockLayerRepo implements repositories.LayerRepository for testing.
type mockLayerRepo struct {
	layers     map[uuid.UUID]*models.LayerWithConfig
	placements []models.LayerToPage
}

func newMockLayerRepo() *mockLayerRepo {
	return &mockLayerRepo{layers: make(map[uuid.UUID]*models.LayerWithConfig)}
}

func (m *mockLayerRepo) Create(_ context.Context, lw *models.LayerWithConfig) error {
	if lw.Layer.ID == uuid.Nil {
		lw.Layer.ID = uuid.New()
	}
	m.layers[lw.Layer.ID] = lw
	return nil
}

func (m *mockLayerRepo) Get(_ context.Context, id uuid.UUID) (*models.LayerWithConfig, error) {
	lw, ok := m.layers[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return lw, nil
}

func (m *mockLayerRepo) ListByWorkspace(_ context.Context, workspaceID uuid.UUID) ([]models.LayerWithConfig, error) {
	var out []models.LayerWithConfig
	for _, lw := range m.layers {
		if lw.Layer.WorkspaceID == workspaceID {
			out = append(out, *lw)
		}
	}
	return out, nil
}

func (m *mockLayerRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.layers[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.layers, id)
	return nil
}

func (m *mockLayerRepo) AttachToPage(_ context.Context, pageID, layerID uuid.UUID) (*models.LayerToPage, error) {
	position := 0
	for _, p := range m.placements {
		if p.PageID == pageID {
			if p.LayerID == layerID {
				return nil, apperrors.ErrConflict
			}
			position++
		}
	}
	placement := models.LayerToPage{PageID: pageID, LayerID: layerID, Position: position}
	m.placements = append(m.placements, placement)
	return &placement, nil
}

func (m *mockLayerRepo) DetachFromPage(_ context.Context, pageID, layerID uuid.UUID) error {
	for i, p := range m.placements {
		if p.PageID == pageID && p.LayerID == layerID {
			m.placements = append(m.placements[:i], m.placements[i+1:]...)
			for j := range m.placements {
				if m.placements[j].PageID == pageID && m.placements[j].Position > p.Position {
					m.placements[j].Position--
				}
			}
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type layerServiceFixture struct {
	service  LayerService
	layers   *mockLayerRepo
	datasets *mockDatasetRepo
	projects *mockProjectRepo

	workspaceID uuid.UUID
	datasetID   uuid.UUID
	pointColID  uuid.UUID
	titleColID  uuid.UUID
	iconColID   uuid.UUID
	numberColID uuid.UUID
}

func newLayerServiceFixture() *layerServiceFixture {
	layers := newMockLayerRepo()
	datasets := newMockDatasetRepo()
	projects := newMockProjectRepo()

	f := &layerServiceFixture{
		service:     NewLayerService(layers, datasets, projects, zap.NewNop()),
		layers:      layers,
		datasets:    datasets,
		projects:    projects,
		workspaceID: uuid.New(),
		datasetID:   uuid.New(),
		pointColID:  uuid.New(),
		titleColID:  uuid.New(),
		iconColID:   uuid.New(),
		numberColID: uuid.New(),
	}

	datasets.datasets[f.datasetID] = &models.Dataset{ID: f.datasetID, WorkspaceID: f.workspaceID, Name: "sites"}
	datasets.columns[f.pointColID] = &models.Column{ID: f.pointColID, DatasetID: f.datasetID, Name: "location", Type: models.ColumnTypePoint}
	datasets.columns[f.titleColID] = &models.Column{ID: f.titleColID, DatasetID: f.datasetID, Name: "name", Type: models.ColumnTypeString}
	datasets.columns[f.iconColID] = &models.Column{ID: f.iconColID, DatasetID: f.datasetID, Name: "icon", Type: models.ColumnTypeIcon}
	datasets.columns[f.numberColID] = &models.Column{ID: f.numberColID, DatasetID: f.datasetID, Name: "count", Type: models.ColumnTypeNumber}

	return f
}

func (f *layerServiceFixture) pointLayer() *models.LayerWithConfig {
	return &models.LayerWithConfig{
		Layer:      models.Layer{WorkspaceID: f.workspaceID, Name: "sites", Kind: models.LayerKindPoint, DatasetID: f.datasetID},
		PointLayer: &models.PointLayer{PointColumnID: f.pointColID},
	}
}

func TestLayerServiceCreateLayer(t *testing.T) {
	ctx := context.Background()

	t.Run("point layer", func(t *testing.T) {
		f := newLayerServiceFixture()

		created, err := f.service.CreateLayer(ctx, f.pointLayer())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.Layer.ID)
	})

	t.Run("marker layer with title and icon", func(t *testing.T) {
		f := newLayerServiceFixture()

		created, err := f.service.CreateLayer(ctx, &models.LayerWithConfig{
			Layer: models.Layer{WorkspaceID: f.workspaceID, Name: "labels", Kind: models.LayerKindMarker, DatasetID: f.datasetID},
			MarkerLayer: &models.MarkerLayer{
				PointColumnID: f.pointColID,
				TitleColumnID: &f.titleColID,
				IconColumnID:  &f.iconColID,
			},
		})
		require.NoError(t, err)
		require.NotNil(t, created.MarkerLayer)
	})

	t.Run("geometry column must be point-typed", func(t *testing.T) {
		f := newLayerServiceFixture()
		lw := f.pointLayer()
		lw.PointLayer.PointColumnID = f.numberColID

		_, err := f.service.CreateLayer(ctx, lw)
		assert.ErrorIs(t, err, apperrors.ErrTypeMismatch)
	})

	t.Run("title column must be string-typed", func(t *testing.T) {
		f := newLayerServiceFixture()

		_, err := f.service.CreateLayer(ctx, &models.LayerWithConfig{
			Layer: models.Layer{WorkspaceID: f.workspaceID, Name: "labels", Kind: models.LayerKindMarker, DatasetID: f.datasetID},
			MarkerLayer: &models.MarkerLayer{
				PointColumnID: f.pointColID,
				TitleColumnID: &f.numberColID,
			},
		})
		assert.ErrorIs(t, err, apperrors.ErrTypeMismatch)
	})

	t.Run("column from another dataset is out of scope", func(t *testing.T) {
		f := newLayerServiceFixture()
		other := uuid.New()
		f.datasets.datasets[other] = &models.Dataset{ID: other, WorkspaceID: f.workspaceID, Name: "other"}
		foreign := uuid.New()
		f.datasets.columns[foreign] = &models.Column{ID: foreign, DatasetID: other, Name: "location", Type: models.ColumnTypePoint}

		lw := f.pointLayer()
		lw.PointLayer.PointColumnID = foreign

		_, err := f.service.CreateLayer(ctx, lw)
		assert.ErrorIs(t, err, apperrors.ErrDatasetScope)
	})

	t.Run("missing config rejected", func(t *testing.T) {
		f := newLayerServiceFixture()
		lw := f.pointLayer()
		lw.PointLayer = nil

		_, err := f.service.CreateLayer(ctx, lw)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		f := newLayerServiceFixture()
		lw := f.pointLayer()
		lw.Layer.Kind = "heatmap"

		_, err := f.service.CreateLayer(ctx, lw)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		f := newLayerServiceFixture()
		lw := f.pointLayer()
		lw.Layer.DatasetID = uuid.New()

		_, err := f.service.CreateLayer(ctx, lw)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestLayerServiceAttach(t *testing.T) {
	ctx := context.Background()

	setup := func(f *layerServiceFixture) (pageID uuid.UUID, layerID uuid.UUID) {
		draft := seedDraft(f.projects)
		page := &models.Page{ID: uuid.New(), ProjectID: draft.ID, Title: "map"}
		f.projects.pages[page.ID] = page

		created, err := f.service.CreateLayer(ctx, f.pointLayer())
		if err != nil {
			panic(err)
		}
		return page.ID, created.Layer.ID
	}

	t.Run("attach appends placements in order", func(t *testing.T) {
		f := newLayerServiceFixture()
		pageID, layerID := setup(f)

		second, err := f.service.CreateLayer(ctx, f.pointLayer())
		require.NoError(t, err)

		first, err := f.service.AttachLayer(ctx, pageID, layerID)
		require.NoError(t, err)
		assert.Equal(t, 0, first.Position)

		next, err := f.service.AttachLayer(ctx, pageID, second.Layer.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, next.Position)
	})

	t.Run("attaching twice conflicts", func(t *testing.T) {
		f := newLayerServiceFixture()
		pageID, layerID := setup(f)

		_, err := f.service.AttachLayer(ctx, pageID, layerID)
		require.NoError(t, err)
		_, err = f.service.AttachLayer(ctx, pageID, layerID)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("pages of published versions are read-only", func(t *testing.T) {
		f := newLayerServiceFixture()
		_, layerID := setup(f)

		draft := seedDraft(f.projects)
		version := seedVersion(f.projects, draft.ID, 1)
		versionPage := &models.Page{ID: uuid.New(), ProjectID: version.ID, Title: "map"}
		f.projects.pages[versionPage.ID] = versionPage

		_, err := f.service.AttachLayer(ctx, versionPage.ID, layerID)
		assert.ErrorIs(t, err, apperrors.ErrNotRoot)
	})

	t.Run("detach compacts positions", func(t *testing.T) {
		f := newLayerServiceFixture()
		pageID, layerID := setup(f)

		second, err := f.service.CreateLayer(ctx, f.pointLayer())
		require.NoError(t, err)

		_, err = f.service.AttachLayer(ctx, pageID, layerID)
		require.NoError(t, err)
		_, err = f.service.AttachLayer(ctx, pageID, second.Layer.ID)
		require.NoError(t, err)

		require.NoError(t, f.service.DetachLayer(ctx, pageID, layerID))

		require.Len(t, f.layers.placements, 1)
		assert.Equal(t, second.Layer.ID, f.layers.placements[0].LayerID)
		assert.Equal(t, 0, f.layers.placements[0].Position)
	})

	t.Run("unknown layer", func(t *testing.T) {
		f := newLayerServiceFixture()
		pageID, _ := setup(f)

		_, err := f.service.AttachLayer(ctx, pageID, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
