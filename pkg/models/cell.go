package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ColumnType identifies which typed value table stores a column's cells.
type ColumnType string

const (
	ColumnTypeString   ColumnType = "string"
	ColumnTypeNumber   ColumnType = "number"
	ColumnTypeBoolean  ColumnType = "boolean"
	ColumnTypeDate     ColumnType = "date"
	ColumnTypePoint    ColumnType = "point"
	ColumnTypeRichText ColumnType = "richtext"
	ColumnTypeIcon     ColumnType = "icon"
)

// ColumnTypes lists every valid column type.
var ColumnTypes = []ColumnType{
	ColumnTypeString,
	ColumnTypeNumber,
	ColumnTypeBoolean,
	ColumnTypeDate,
	ColumnTypePoint,
	ColumnTypeRichText,
	ColumnTypeIcon,
}

// IsValidColumnType reports whether t is one of the seven declared types.
func IsValidColumnType(t ColumnType) bool {
	for _, ct := range ColumnTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// Point is a geographic coordinate pair (longitude, latitude).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Block is one node of a rich-text content tree.
type Block struct {
	ID       string          `json:"id,omitempty"`
	Type     string          `json:"type"`
	Props    json.RawMessage `json:"props,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
	Children []Block         `json:"children,omitempty"`
}

// CellValue is a tagged union holding exactly one typed payload, selected by
// Type. Constructing values through the typed constructors makes "two types
// populated for one cell" impossible rather than an invariant to police at
// read time.
type CellValue struct {
	Type     ColumnType `json:"type"`
	String   string     `json:"string,omitempty"`
	Number   float64    `json:"number,omitempty"`
	Boolean  bool       `json:"boolean,omitempty"`
	Date     time.Time  `json:"date,omitempty"`
	Point    Point      `json:"point,omitempty"`
	RichText []Block    `json:"richtext,omitempty"`
	Icon     string     `json:"icon,omitempty"`
}

func StringValue(s string) CellValue {
	return CellValue{Type: ColumnTypeString, String: s}
}

func NumberValue(n float64) CellValue {
	return CellValue{Type: ColumnTypeNumber, Number: n}
}

func BooleanValue(b bool) CellValue {
	return CellValue{Type: ColumnTypeBoolean, Boolean: b}
}

func DateValue(t time.Time) CellValue {
	return CellValue{Type: ColumnTypeDate, Date: t}
}

func PointValue(x, y float64) CellValue {
	return CellValue{Type: ColumnTypePoint, Point: Point{X: x, Y: y}}
}

func RichTextValue(blocks []Block) CellValue {
	return CellValue{Type: ColumnTypeRichText, RichText: blocks}
}

func IconValue(name string) CellValue {
	return CellValue{Type: ColumnTypeIcon, Icon: name}
}

// Validate checks the payload selected by the value's tag. It does not check
// that the tag matches any column; that is the cell service's job.
func (v CellValue) Validate() error {
	switch v.Type {
	case ColumnTypeString, ColumnTypeBoolean:
		return nil
	case ColumnTypeNumber:
		if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
			return fmt.Errorf("number value must be finite, got %v", v.Number)
		}
		return nil
	case ColumnTypeDate:
		if v.Date.IsZero() {
			return fmt.Errorf("date value must not be zero")
		}
		return nil
	case ColumnTypePoint:
		if v.Point.X < -180 || v.Point.X > 180 {
			return fmt.Errorf("point longitude %v out of range [-180, 180]", v.Point.X)
		}
		if v.Point.Y < -90 || v.Point.Y > 90 {
			return fmt.Errorf("point latitude %v out of range [-90, 90]", v.Point.Y)
		}
		return nil
	case ColumnTypeRichText:
		if len(v.RichText) == 0 {
			return fmt.Errorf("richtext value must contain at least one block")
		}
		return nil
	case ColumnTypeIcon:
		if !IsKnownIcon(v.Icon) {
			return fmt.Errorf("unknown icon %q", v.Icon)
		}
		return nil
	default:
		return fmt.Errorf("unknown cell value type %q", v.Type)
	}
}

// ParseCellValue interprets a raw JSON value according to the column type the
// server has on record. Clients never pick the storage type; a payload that
// does not match the declared type is rejected here.
func ParseCellValue(t ColumnType, raw json.RawMessage) (CellValue, error) {
	mismatch := func(err error) (CellValue, error) {
		return CellValue{}, fmt.Errorf("value does not match column type %s: %w", t, err)
	}

	switch t {
	case ColumnTypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return mismatch(err)
		}
		return StringValue(s), nil
	case ColumnTypeNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return mismatch(err)
		}
		return NumberValue(n), nil
	case ColumnTypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return mismatch(err)
		}
		return BooleanValue(b), nil
	case ColumnTypeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return mismatch(err)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return mismatch(err)
		}
		return DateValue(ts), nil
	case ColumnTypePoint:
		var p Point
		if err := json.Unmarshal(raw, &p); err != nil {
			return mismatch(err)
		}
		return PointValue(p.X, p.Y), nil
	case ColumnTypeRichText:
		var blocks []Block
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return mismatch(err)
		}
		return RichTextValue(blocks), nil
	case ColumnTypeIcon:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return mismatch(err)
		}
		return IconValue(s), nil
	default:
		return CellValue{}, fmt.Errorf("unknown column type %q", t)
	}
}

// Cell links a (row, column) pair to its typed value. Exactly one Cell exists
// per pair; the value lives in the table named by the column's type.
type Cell struct {
	ID        uuid.UUID `json:"id"`
	RowID     uuid.UUID `json:"row_id"`
	ColumnID  uuid.UUID `json:"column_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResolvedCell is a cell joined with its tagged value, as returned by reads.
type ResolvedCell struct {
	Cell
	Value CellValue `json:"value"`
}
