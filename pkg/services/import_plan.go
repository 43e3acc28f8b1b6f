package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// dateLayouts are the formats import accepts for date-typed scalars.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

// inferScalar interprets a raw string the way spreadsheet imports expect:
// booleans first, then numbers, then dates, with string as the fallback.
// Returns false for blank input, which produces no cell at all.
func inferScalar(raw string) (models.CellValue, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return models.CellValue{}, false
	}

	switch strings.ToLower(s) {
	case "true":
		return models.BooleanValue(true), true
	case "false":
		return models.BooleanValue(false), true
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.NumberValue(float64(n)), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return models.NumberValue(f), true
	}

	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return models.DateValue(ts), true
		}
	}

	return models.StringValue(s), true
}

// columnKey identifies an import column. Keys carry the inferred type, so the
// same field name appearing with two different value types yields two columns.
type columnKey struct {
	columnType models.ColumnType
	name       string
}

// importPlan is the fully resolved output of parsing an import source,
// ready to hand to the repository as one transactional write.
type importPlan struct {
	columns []*models.Column
	rows    []*models.Row
	cells   map[uuid.UUID][]models.CellInput
}

// planBuilder accumulates an importPlan. Columns are created on first sight
// of a (type, name) pair and reused afterwards; rows keep input order.
type planBuilder struct {
	datasetID uuid.UUID
	byKey     map[columnKey]*models.Column
	plan      importPlan
}

func newPlanBuilder(datasetID uuid.UUID) *planBuilder {
	return &planBuilder{
		datasetID: datasetID,
		byKey:     make(map[columnKey]*models.Column),
		plan:      importPlan{cells: make(map[uuid.UUID][]models.CellInput)},
	}
}

func (b *planBuilder) addRow() uuid.UUID {
	row := &models.Row{ID: uuid.New(), DatasetID: b.datasetID}
	b.plan.rows = append(b.plan.rows, row)
	return row.ID
}

func (b *planBuilder) setCell(rowID uuid.UUID, name string, value models.CellValue) error {
	if err := value.Validate(); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}

	key := columnKey{columnType: value.Type, name: name}
	column, ok := b.byKey[key]
	if !ok {
		column = &models.Column{
			ID:        uuid.New(),
			DatasetID: b.datasetID,
			Name:      name,
			Type:      value.Type,
		}
		b.byKey[key] = column
		b.plan.columns = append(b.plan.columns, column)
	}

	b.plan.cells[rowID] = append(b.plan.cells[rowID], models.CellInput{
		ColumnID: column.ID,
		Value:    value,
	})
	return nil
}

// buildCSVPlan turns parsed CSV records (header first) into an import plan.
// Cell types are inferred per value, so a column of mixed values splits into
// one typed column per distinct inferred type.
func buildCSVPlan(datasetID uuid.UUID, records [][]string, maxRows int) (*importPlan, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	if len(records)-1 > maxRows {
		return nil, fmt.Errorf("csv has %d rows, limit is %d", len(records)-1, maxRows)
	}

	header := make([]string, len(records[0]))
	for i, name := range records[0] {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column %d", i+1)
		}
		header[i] = name
	}

	b := newPlanBuilder(datasetID)
	for _, record := range records[1:] {
		rowID := b.addRow()
		for i, raw := range record {
			if i >= len(header) {
				break
			}
			value, ok := inferScalar(raw)
			if !ok {
				continue
			}
			if err := b.setCell(rowID, header[i], value); err != nil {
				return nil, err
			}
		}
	}

	return &b.plan, nil
}
