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

// LayerRepository defines data access for layers, their kind-specific
// configuration, and their placements on pages.
type LayerRepository interface {
	// Create writes the layer and its sublayer config in one transaction.
	Create(ctx context.Context, layer *models.LayerWithConfig) error
	Get(ctx context.Context, id uuid.UUID) (*models.LayerWithConfig, error)
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.LayerWithConfig, error)
	// Delete removes a layer; its sublayer and placements cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	// AttachToPage places a layer at the end of a page's layer order and
	// marks the page's project dirty, in one transaction.
	AttachToPage(ctx context.Context, pageID, layerID uuid.UUID) (*models.LayerToPage, error)
	// DetachFromPage removes a placement, compacts sibling positions, and
	// marks the page's project dirty, in one transaction.
	DetachFromPage(ctx context.Context, pageID, layerID uuid.UUID) error
}

type layerRepository struct{}

// NewLayerRepository creates a new layer repository.
func NewLayerRepository() LayerRepository {
	return &layerRepository{}
}

func (r *layerRepository) Create(ctx context.Context, lw *models.LayerWithConfig) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if lw.Layer.ID == uuid.Nil {
		lw.Layer.ID = uuid.New()
	}
	now := time.Now()
	lw.Layer.CreatedAt = now
	lw.Layer.UpdatedAt = now

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_layers (id, workspace_id, name, kind, dataset_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lw.Layer.ID, lw.Layer.WorkspaceID, lw.Layer.Name, lw.Layer.Kind,
		lw.Layer.DatasetID, lw.Layer.CreatedAt, lw.Layer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create layer: %w", err)
	}

	switch lw.Layer.Kind {
	case models.LayerKindPoint:
		if lw.PointLayer == nil {
			return fmt.Errorf("%w: point layer requires point config", apperrors.ErrValidation)
		}
		if lw.PointLayer.ID == uuid.Nil {
			lw.PointLayer.ID = uuid.New()
		}
		lw.PointLayer.LayerID = lw.Layer.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO atlas_point_layers (id, layer_id, point_column_id)
			VALUES ($1, $2, $3)`,
			lw.PointLayer.ID, lw.PointLayer.LayerID, lw.PointLayer.PointColumnID)
		if err != nil {
			return fmt.Errorf("failed to create point layer: %w", err)
		}
	case models.LayerKindMarker:
		if lw.MarkerLayer == nil {
			return fmt.Errorf("%w: marker layer requires marker config", apperrors.ErrValidation)
		}
		if lw.MarkerLayer.ID == uuid.Nil {
			lw.MarkerLayer.ID = uuid.New()
		}
		lw.MarkerLayer.LayerID = lw.Layer.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO atlas_marker_layers (id, layer_id, point_column_id, title_column_id, icon_column_id)
			VALUES ($1, $2, $3, $4, $5)`,
			lw.MarkerLayer.ID, lw.MarkerLayer.LayerID, lw.MarkerLayer.PointColumnID,
			lw.MarkerLayer.TitleColumnID, lw.MarkerLayer.IconColumnID)
		if err != nil {
			return fmt.Errorf("failed to create marker layer: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown layer kind %q", apperrors.ErrValidation, lw.Layer.Kind)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *layerRepository) Get(ctx context.Context, id uuid.UUID) (*models.LayerWithConfig, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	layers, err := queryLayersWithConfig(ctx, scope.Conn, "id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return &layers[0], nil
}

func (r *layerRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]models.LayerWithConfig, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	return queryLayersWithConfig(ctx, scope.Conn, "workspace_id = $1", workspaceID)
}

func (r *layerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM atlas_layers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete layer: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *layerRepository) AttachToPage(ctx context.Context, pageID, layerID uuid.UUID) (*models.LayerToPage, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Lock the page row so concurrent attaches cannot hand out the same
	// position.
	var projectID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT project_id FROM atlas_pages WHERE id = $1 FOR UPDATE`,
		pageID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock page: %w", err)
	}

	placement := &models.LayerToPage{PageID: pageID, LayerID: layerID}
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM atlas_layers_to_pages WHERE page_id = $1`,
		pageID).Scan(&placement.Position)
	if err != nil {
		return nil, fmt.Errorf("failed to compute placement position: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_layers_to_pages (page_id, layer_id, position)
		VALUES ($1, $2, $3)`,
		placement.PageID, placement.LayerID, placement.Position)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("failed to attach layer: %w", err)
	}

	if err := markProjectDirty(ctx, tx, projectID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return placement, nil
}

func (r *layerRepository) DetachFromPage(ctx context.Context, pageID, layerID uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var projectID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT project_id FROM atlas_pages WHERE id = $1 FOR UPDATE`,
		pageID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock page: %w", err)
	}

	var position int
	err = tx.QueryRow(ctx, `
		DELETE FROM atlas_layers_to_pages WHERE page_id = $1 AND layer_id = $2
		RETURNING position`,
		pageID, layerID).Scan(&position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to detach layer: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE atlas_layers_to_pages SET position = position - 1
		WHERE page_id = $1 AND position > $2`,
		pageID, position)
	if err != nil {
		return fmt.Errorf("failed to compact placement positions: %w", err)
	}

	if err := markProjectDirty(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// queryLayersWithConfig selects layers matching the where clause joined with
// both sublayer tables; each layer carries exactly one config.
func queryLayersWithConfig(ctx context.Context, db dbtx, where string, args ...any) ([]models.LayerWithConfig, error) {
	query := fmt.Sprintf(`
		SELECT l.id, l.workspace_id, l.name, l.kind, l.dataset_id, l.created_at, l.updated_at,
		       pl.id, pl.point_column_id,
		       ml.id, ml.point_column_id, ml.title_column_id, ml.icon_column_id
		FROM atlas_layers l
		LEFT JOIN atlas_point_layers pl ON pl.layer_id = l.id
		LEFT JOIN atlas_marker_layers ml ON ml.layer_id = l.id
		WHERE l.%s
		ORDER BY l.created_at, l.id`, where)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query layers: %w", err)
	}
	defer rows.Close()

	var layers []models.LayerWithConfig
	for rows.Next() {
		var (
			lw            models.LayerWithConfig
			plID          *uuid.UUID
			plPointCol    *uuid.UUID
			mlID          *uuid.UUID
			mlPointCol    *uuid.UUID
			mlTitleCol    *uuid.UUID
			mlIconCol     *uuid.UUID
		)
		if err := rows.Scan(&lw.Layer.ID, &lw.Layer.WorkspaceID, &lw.Layer.Name,
			&lw.Layer.Kind, &lw.Layer.DatasetID, &lw.Layer.CreatedAt, &lw.Layer.UpdatedAt,
			&plID, &plPointCol, &mlID, &mlPointCol, &mlTitleCol, &mlIconCol); err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}

		if plID != nil && plPointCol != nil {
			lw.PointLayer = &models.PointLayer{
				ID:            *plID,
				LayerID:       lw.Layer.ID,
				PointColumnID: *plPointCol,
			}
		}
		if mlID != nil && mlPointCol != nil {
			lw.MarkerLayer = &models.MarkerLayer{
				ID:            *mlID,
				LayerID:       lw.Layer.ID,
				PointColumnID: *mlPointCol,
				TitleColumnID: mlTitleCol,
				IconColumnID:  mlIconCol,
			}
		}

		layers = append(layers, lw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read layers: %w", err)
	}

	return layers, nil
}

// Ensure layerRepository implements LayerRepository at compile time.
var _ LayerRepository = (*layerRepository)(nil)
