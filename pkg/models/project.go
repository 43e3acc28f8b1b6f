package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a map-centric form: a draft root or a published version.
// A draft has RootProjectID == nil and Version == 0. Every publish creates a
// new project whose RootProjectID points back at the draft; published
// versions are read-only by convention.
type Project struct {
	ID            uuid.UUID  `json:"id"`
	WorkspaceID   uuid.UUID  `json:"workspace_id"`
	TeamspaceID   uuid.UUID  `json:"teamspace_id"`
	Name          string     `json:"name"`
	RootProjectID *uuid.UUID `json:"root_project_id,omitempty"`
	Version       int        `json:"version"`
	IsDirty       bool       `json:"is_dirty"`
	FormsEnabled  bool       `json:"forms_enabled"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsRoot reports whether the project is a draft root rather than a published
// version.
func (p *Project) IsRoot() bool {
	return p.RootProjectID == nil
}

// PageType distinguishes map-view pages from full-content pages.
type PageType string

const (
	PageTypeMap     PageType = "map"
	PageTypeContent PageType = "content"
)

// Page is one step of a project. Position is a dense 0-based rank owned by
// the page row itself and maintained transactionally with page create,
// delete, and reorder.
type Page struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Title     string    `json:"title"`
	Content   []Block   `json:"content"`
	Center    Point     `json:"center"`
	Zoom      float64   `json:"zoom"`
	Pitch     float64   `json:"pitch"`
	Bearing   float64   `json:"bearing"`
	PageType  PageType  `json:"page_type"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LayerKind selects which sublayer record configures a layer.
type LayerKind string

const (
	LayerKindPoint  LayerKind = "point"
	LayerKindMarker LayerKind = "marker"
)

// Layer renders rows of a dataset on pages. Publishing copies layers but
// never the dataset they reference.
type Layer struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	Kind        LayerKind `json:"kind"`
	DatasetID   uuid.UUID `json:"dataset_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PointLayer configures a point-kind layer: which column supplies geometry.
type PointLayer struct {
	ID            uuid.UUID `json:"id"`
	LayerID       uuid.UUID `json:"layer_id"`
	PointColumnID uuid.UUID `json:"point_column_id"`
}

// MarkerLayer configures a marker-kind layer: geometry plus optional title
// and icon columns.
type MarkerLayer struct {
	ID            uuid.UUID  `json:"id"`
	LayerID       uuid.UUID  `json:"layer_id"`
	PointColumnID uuid.UUID  `json:"point_column_id"`
	TitleColumnID *uuid.UUID `json:"title_column_id,omitempty"`
	IconColumnID  *uuid.UUID `json:"icon_column_id,omitempty"`
}

// LayerToPage records that a layer renders on a page, and in what order.
type LayerToPage struct {
	PageID   uuid.UUID `json:"page_id"`
	LayerID  uuid.UUID `json:"layer_id"`
	Position int       `json:"position"`
}

// LayerWithConfig bundles a layer with whichever sublayer record it has.
type LayerWithConfig struct {
	Layer       Layer        `json:"layer"`
	PointLayer  *PointLayer  `json:"point_layer,omitempty"`
	MarkerLayer *MarkerLayer `json:"marker_layer,omitempty"`
}

// ProjectGraph is the full aggregate of a project: its pages in order, the
// distinct layers any page references, and every layer-to-page placement.
// Publish reads a draft's graph and writes a version's graph.
type ProjectGraph struct {
	Project    Project           `json:"project"`
	Pages      []Page            `json:"pages"`
	Layers     []LayerWithConfig `json:"layers"`
	Placements []LayerToPage     `json:"placements"`
}
