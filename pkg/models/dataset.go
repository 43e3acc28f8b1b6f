package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset owns columns and rows. Scoped to a workspace.
type Dataset struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Column declares a name and exactly one type for a dataset's cells. The type
// never changes after creation. BlockNoteID links a column back to the
// rich-text input block that produced it, for form-derived columns.
type Column struct {
	ID          uuid.UUID  `json:"id"`
	DatasetID   uuid.UUID  `json:"dataset_id"`
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	BlockNoteID *string    `json:"block_note_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Row belongs to exactly one dataset. Created by authoring or by a public
// form submission; both paths populate cells through the same store.
type Row struct {
	ID        uuid.UUID `json:"id"`
	DatasetID uuid.UUID `json:"dataset_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ResolvedRow is a row with its cells resolved to tagged values, keyed by
// column id.
type ResolvedRow struct {
	Row
	Cells map[uuid.UUID]CellValue `json:"cells"`
}

// DatasetWithData is the read contract for table views: the dataset, its
// columns in creation order, and its rows with resolved cell values.
type DatasetWithData struct {
	Dataset Dataset       `json:"dataset"`
	Columns []Column      `json:"columns"`
	Rows    []ResolvedRow `json:"rows"`
}

// CellInput names a target column and the value to write, used when creating
// a row together with its cells.
type CellInput struct {
	ColumnID uuid.UUID `json:"column_id"`
	Value    CellValue `json:"value"`
}
