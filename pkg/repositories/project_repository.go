package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atlasform-io/atlasform-engine/pkg/apperrors"
	"github.com/atlasform-io/atlasform-engine/pkg/database"
	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// ProjectRepository defines data access for projects, their pages, and the
// version lineage produced by publishing.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListRoots(ctx context.Context, workspaceID uuid.UUID) ([]*models.Project, error)
	// Update changes a draft's name and forms flag and marks it dirty.
	Update(ctx context.Context, project *models.Project) error
	// Delete removes a project. Deleting a root cascades its whole lineage.
	Delete(ctx context.Context, id uuid.UUID) error
	// ListVersions returns published versions of a root, newest first.
	ListVersions(ctx context.Context, rootID uuid.UUID) ([]*models.Project, error)

	// CreatePage appends a page at the end of the draft's page order and
	// marks the draft dirty, in one transaction.
	CreatePage(ctx context.Context, page *models.Page) error
	GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error)
	ListPages(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error)
	// UpdatePage overwrites a page's content and view state and marks the
	// draft dirty, in one transaction.
	UpdatePage(ctx context.Context, page *models.Page) error
	// DeletePage removes a page, compacts sibling positions, and marks the
	// draft dirty, in one transaction.
	DeletePage(ctx context.Context, id uuid.UUID) error
	// ReorderPages atomically replaces the page order. The submitted id set
	// must equal the project's current pages exactly; anything else is a
	// validation error and nothing changes.
	ReorderPages(ctx context.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error

	// GetGraph loads the full aggregate: project, pages by position,
	// placements, and every referenced layer with its sublayer config.
	GetGraph(ctx context.Context, projectID uuid.UUID) (*models.ProjectGraph, error)

	// CreateVersion writes a pre-built version graph in one transaction:
	// locks the root, numbers the version from the lineage maximum, inserts
	// the whole graph parents-first, and flips the root's dirty flag. The
	// draft is otherwise untouched; a failure anywhere rolls everything back.
	// draftSeenAt is the root's updated_at at the time its graph was read;
	// if the draft changed since, the publish fails with ErrConflict rather
	// than snapshot stale content.
	CreateVersion(ctx context.Context, rootID uuid.UUID, graph *models.ProjectGraph, draftSeenAt time.Time) (int, error)
}

type projectRepository struct{}

// NewProjectRepository creates a new project repository.
func NewProjectRepository() ProjectRepository {
	return &projectRepository{}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO atlas_projects (id, workspace_id, teamspace_id, name, root_project_id,
			version, is_dirty, forms_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		project.ID, project.WorkspaceID, project.TeamspaceID, project.Name,
		project.RootProjectID, project.Version, project.IsDirty, project.FormsEnabled,
		project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	return getProject(ctx, scope.Conn, id)
}

func (r *projectRepository) ListRoots(ctx context.Context, workspaceID uuid.UUID) ([]*models.Project, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	return queryProjects(ctx, scope.Conn,
		"workspace_id = $1 AND root_project_id IS NULL ORDER BY created_at", workspaceID)
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	project.UpdatedAt = time.Now()

	result, err := scope.Conn.Exec(ctx, `
		UPDATE atlas_projects
		SET name = $2, forms_enabled = $3, is_dirty = true, updated_at = $4
		WHERE id = $1 AND root_project_id IS NULL`,
		project.ID, project.Name, project.FormsEnabled, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM atlas_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *projectRepository) ListVersions(ctx context.Context, rootID uuid.UUID) ([]*models.Project, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	return queryProjects(ctx, scope.Conn,
		"root_project_id = $1 ORDER BY version DESC", rootID)
}

func (r *projectRepository) CreatePage(ctx context.Context, page *models.Page) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	now := time.Now()
	page.CreatedAt = now
	page.UpdatedAt = now

	content, err := marshalBlocks(page.Content)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Lock the project row so concurrent page creation cannot hand out the
	// same position.
	var exists uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM atlas_projects WHERE id = $1 FOR UPDATE`,
		page.ProjectID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock project: %w", err)
	}

	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM atlas_pages WHERE project_id = $1`,
		page.ProjectID).Scan(&page.Position)
	if err != nil {
		return fmt.Errorf("failed to compute page position: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_pages (id, project_id, title, content, center_x, center_y,
			zoom, pitch, bearing, page_type, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		page.ID, page.ProjectID, page.Title, content, page.Center.X, page.Center.Y,
		page.Zoom, page.Pitch, page.Bearing, page.PageType, page.Position,
		page.CreatedAt, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	if err := markProjectDirty(ctx, tx, page.ProjectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *projectRepository) GetPage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	pages, err := queryPages(ctx, scope.Conn, "id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return pages[0], nil
}

func (r *projectRepository) ListPages(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	return queryPages(ctx, scope.Conn, "project_id = $1 ORDER BY position", projectID)
}

func (r *projectRepository) UpdatePage(ctx context.Context, page *models.Page) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	page.UpdatedAt = time.Now()

	content, err := marshalBlocks(page.Content)
	if err != nil {
		return err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var projectID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE atlas_pages
		SET title = $2, content = $3, center_x = $4, center_y = $5,
			zoom = $6, pitch = $7, bearing = $8, page_type = $9, updated_at = $10
		WHERE id = $1
		RETURNING project_id`,
		page.ID, page.Title, content, page.Center.X, page.Center.Y,
		page.Zoom, page.Pitch, page.Bearing, page.PageType, page.UpdatedAt,
	).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update page: %w", err)
	}

	if err := markProjectDirty(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *projectRepository) DeletePage(ctx context.Context, id uuid.UUID) error {
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
	var position int
	err = tx.QueryRow(ctx, `
		DELETE FROM atlas_pages WHERE id = $1 RETURNING project_id, position`,
		id).Scan(&projectID, &position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to delete page: %w", err)
	}

	// Keep positions dense so appends stay MAX+1.
	_, err = tx.Exec(ctx, `
		UPDATE atlas_pages SET position = position - 1
		WHERE project_id = $1 AND position > $2`,
		projectID, position)
	if err != nil {
		return fmt.Errorf("failed to compact page positions: %w", err)
	}

	if err := markProjectDirty(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *projectRepository) ReorderPages(ctx context.Context, projectID uuid.UUID, orderedIDs []uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var exists uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM atlas_projects WHERE id = $1 FOR UPDATE`,
		projectID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to lock project: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT id FROM atlas_pages WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to query pages: %w", err)
	}
	current := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan page id: %w", err)
		}
		current[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read page ids: %w", err)
	}
	rows.Close()

	// The submitted list must be a permutation of the current children: same
	// size, no duplicates, no dangling ids.
	if len(orderedIDs) != len(current) {
		return fmt.Errorf("%w: reorder lists %d pages, project has %d",
			apperrors.ErrValidation, len(orderedIDs), len(current))
	}
	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return fmt.Errorf("%w: duplicate page id %s in reorder", apperrors.ErrValidation, id)
		}
		seen[id] = true
		if !current[id] {
			return fmt.Errorf("%w: page %s does not belong to project", apperrors.ErrValidation, id)
		}
	}

	// The unique (project_id, position) constraint is deferred, so the swap
	// is checked once at commit.
	for position, id := range orderedIDs {
		_, err = tx.Exec(ctx, `
			UPDATE atlas_pages SET position = $2, updated_at = now() WHERE id = $1`,
			id, position)
		if err != nil {
			return fmt.Errorf("failed to reposition page: %w", err)
		}
	}

	if err := markProjectDirty(ctx, tx, projectID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *projectRepository) GetGraph(ctx context.Context, projectID uuid.UUID) (*models.ProjectGraph, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	project, err := getProject(ctx, scope.Conn, projectID)
	if err != nil {
		return nil, err
	}

	pages, err := queryPages(ctx, scope.Conn, "project_id = $1 ORDER BY position", projectID)
	if err != nil {
		return nil, err
	}

	placements, err := queryPlacements(ctx, scope.Conn, projectID)
	if err != nil {
		return nil, err
	}

	layers, err := queryLayersWithConfig(ctx, scope.Conn, `
		id IN (SELECT DISTINCT ltp.layer_id
		       FROM atlas_layers_to_pages ltp
		       JOIN atlas_pages pg ON pg.id = ltp.page_id
		       WHERE pg.project_id = $1)`, projectID)
	if err != nil {
		return nil, err
	}

	return &models.ProjectGraph{
		Project:    *project,
		Pages:      derefPages(pages),
		Layers:     layers,
		Placements: placements,
	}, nil
}

func (r *projectRepository) CreateVersion(ctx context.Context, rootID uuid.UUID, graph *models.ProjectGraph, draftSeenAt time.Time) (int, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Lock the root so concurrent publishes of the same lineage serialize
	// and version numbers never collide.
	var rootProjectID *uuid.UUID
	var rootUpdatedAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT root_project_id, updated_at FROM atlas_projects WHERE id = $1 FOR UPDATE`,
		rootID).Scan(&rootProjectID, &rootUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to lock root project: %w", err)
	}
	if rootProjectID != nil {
		return 0, apperrors.ErrNotRoot
	}
	if !rootUpdatedAt.Equal(draftSeenAt) {
		return 0, fmt.Errorf("%w: draft changed since its graph was read", apperrors.ErrConflict)
	}

	var version int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1 FROM atlas_projects WHERE root_project_id = $1`,
		rootID).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to compute version number: %w", err)
	}

	now := time.Now()
	p := graph.Project
	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_projects (id, workspace_id, teamspace_id, name, root_project_id,
			version, is_dirty, forms_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8, $8)`,
		p.ID, p.WorkspaceID, p.TeamspaceID, p.Name, rootID, version, p.FormsEnabled, now)
	if err != nil {
		return 0, fmt.Errorf("failed to create version project: %w", err)
	}

	// Pages, then layers, then sublayers and placements: children strictly
	// after everything they reference.
	for _, page := range graph.Pages {
		content, err := marshalBlocks(page.Content)
		if err != nil {
			return 0, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO atlas_pages (id, project_id, title, content, center_x, center_y,
				zoom, pitch, bearing, page_type, position, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
			page.ID, p.ID, page.Title, content, page.Center.X, page.Center.Y,
			page.Zoom, page.Pitch, page.Bearing, page.PageType, page.Position, now)
		if err != nil {
			return 0, fmt.Errorf("failed to create version page: %w", err)
		}
	}

	for _, lw := range graph.Layers {
		l := lw.Layer
		_, err = tx.Exec(ctx, `
			INSERT INTO atlas_layers (id, workspace_id, name, kind, dataset_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			l.ID, l.WorkspaceID, l.Name, l.Kind, l.DatasetID, now)
		if err != nil {
			return 0, fmt.Errorf("failed to create version layer: %w", err)
		}

		if lw.PointLayer != nil {
			pl := lw.PointLayer
			_, err = tx.Exec(ctx, `
				INSERT INTO atlas_point_layers (id, layer_id, point_column_id)
				VALUES ($1, $2, $3)`,
				pl.ID, pl.LayerID, pl.PointColumnID)
			if err != nil {
				return 0, fmt.Errorf("failed to create version point layer: %w", err)
			}
		}
		if lw.MarkerLayer != nil {
			ml := lw.MarkerLayer
			_, err = tx.Exec(ctx, `
				INSERT INTO atlas_marker_layers (id, layer_id, point_column_id, title_column_id, icon_column_id)
				VALUES ($1, $2, $3, $4, $5)`,
				ml.ID, ml.LayerID, ml.PointColumnID, ml.TitleColumnID, ml.IconColumnID)
			if err != nil {
				return 0, fmt.Errorf("failed to create version marker layer: %w", err)
			}
		}
	}

	for _, placement := range graph.Placements {
		_, err = tx.Exec(ctx, `
			INSERT INTO atlas_layers_to_pages (page_id, layer_id, position)
			VALUES ($1, $2, $3)`,
			placement.PageID, placement.LayerID, placement.Position)
		if err != nil {
			return 0, fmt.Errorf("failed to create version placement: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE atlas_projects SET is_dirty = false, updated_at = $2 WHERE id = $1`,
		rootID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reset dirty flag: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return version, nil
}

// markProjectDirty flags a draft as having unpublished changes. Published
// versions are never flagged; the root filter makes that structural.
func markProjectDirty(ctx context.Context, db dbtx, projectID uuid.UUID) error {
	_, err := db.Exec(ctx, `
		UPDATE atlas_projects SET is_dirty = true, updated_at = now()
		WHERE id = $1 AND root_project_id IS NULL`,
		projectID)
	if err != nil {
		return fmt.Errorf("failed to mark project dirty: %w", err)
	}
	return nil
}

func getProject(ctx context.Context, db dbtx, id uuid.UUID) (*models.Project, error) {
	projects, err := queryProjects(ctx, db, "id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return projects[0], nil
}

func queryProjects(ctx context.Context, db dbtx, where string, args ...any) ([]*models.Project, error) {
	query := fmt.Sprintf(`
		SELECT id, workspace_id, teamspace_id, name, root_project_id,
		       version, is_dirty, forms_enabled, created_at, updated_at
		FROM atlas_projects WHERE %s`, where)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var project models.Project
		if err := rows.Scan(&project.ID, &project.WorkspaceID, &project.TeamspaceID,
			&project.Name, &project.RootProjectID, &project.Version, &project.IsDirty,
			&project.FormsEnabled, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}

	return projects, nil
}

func queryPages(ctx context.Context, db dbtx, where string, args ...any) ([]*models.Page, error) {
	query := fmt.Sprintf(`
		SELECT id, project_id, title, content, center_x, center_y,
		       zoom, pitch, bearing, page_type, position, created_at, updated_at
		FROM atlas_pages WHERE %s`, where)

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		var page models.Page
		var content []byte
		if err := rows.Scan(&page.ID, &page.ProjectID, &page.Title, &content,
			&page.Center.X, &page.Center.Y, &page.Zoom, &page.Pitch, &page.Bearing,
			&page.PageType, &page.Position, &page.CreatedAt, &page.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		if err := json.Unmarshal(content, &page.Content); err != nil {
			return nil, fmt.Errorf("failed to unmarshal page content: %w", err)
		}
		pages = append(pages, &page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pages: %w", err)
	}

	return pages, nil
}

func queryPlacements(ctx context.Context, db dbtx, projectID uuid.UUID) ([]models.LayerToPage, error) {
	rows, err := db.Query(ctx, `
		SELECT ltp.page_id, ltp.layer_id, ltp.position
		FROM atlas_layers_to_pages ltp
		JOIN atlas_pages pg ON pg.id = ltp.page_id
		WHERE pg.project_id = $1
		ORDER BY pg.position, ltp.position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query placements: %w", err)
	}
	defer rows.Close()

	var placements []models.LayerToPage
	for rows.Next() {
		var placement models.LayerToPage
		if err := rows.Scan(&placement.PageID, &placement.LayerID, &placement.Position); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		placements = append(placements, placement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read placements: %w", err)
	}

	return placements, nil
}

func marshalBlocks(blocks []models.Block) ([]byte, error) {
	if blocks == nil {
		return []byte("[]"), nil
	}
	content, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content blocks: %w", err)
	}
	return content, nil
}

func derefPages(pages []*models.Page) []models.Page {
	out := make([]models.Page, len(pages))
	for i, p := range pages {
		out[i] = *p
	}
	return out
}

// Ensure projectRepository implements ProjectRepository at compile time.
var _ ProjectRepository = (*projectRepository)(nil)
