package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidColumnType(t *testing.T) {
	for _, ct := range ColumnTypes {
		assert.True(t, IsValidColumnType(ct), "expected %s to be valid", ct)
	}
	assert.False(t, IsValidColumnType("geometry"))
	assert.False(t, IsValidColumnType(""))
}

func TestCellValueValidate(t *testing.T) {
	tests := []struct {
		name    string
		value   CellValue
		wantErr bool
	}{
		{"string", StringValue("hello"), false},
		{"empty string is fine", StringValue(""), false},
		{"finite number", NumberValue(42.5), false},
		{"nan rejected", NumberValue(math.NaN()), true},
		{"infinity rejected", NumberValue(math.Inf(1)), true},
		{"boolean", BooleanValue(true), false},
		{"date", DateValue(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), false},
		{"zero date rejected", DateValue(time.Time{}), true},
		{"point in range", PointValue(18.42, -33.92), false},
		{"longitude out of range", PointValue(181, 0), true},
		{"latitude out of range", PointValue(0, 91), true},
		{"richtext with blocks", RichTextValue([]Block{{Type: "paragraph"}}), false},
		{"empty richtext rejected", RichTextValue(nil), true},
		{"known icon", IconValue("pin"), false},
		{"unknown icon rejected", IconValue("definitely-not-an-icon"), true},
		{"unknown tag rejected", CellValue{Type: "geometry"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.value.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseCellValue(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		v, err := ParseCellValue(ColumnTypeString, json.RawMessage(`"hello"`))
		require.NoError(t, err)
		assert.Equal(t, ColumnTypeString, v.Type)
		assert.Equal(t, "hello", v.String)
	})

	t.Run("number", func(t *testing.T) {
		v, err := ParseCellValue(ColumnTypeNumber, json.RawMessage(`30`))
		require.NoError(t, err)
		assert.Equal(t, 30.0, v.Number)
	})

	t.Run("boolean", func(t *testing.T) {
		v, err := ParseCellValue(ColumnTypeBoolean, json.RawMessage(`true`))
		require.NoError(t, err)
		assert.True(t, v.Boolean)
	})

	t.Run("date accepts RFC3339", func(t *testing.T) {
		v, err := ParseCellValue(ColumnTypeDate, json.RawMessage(`"2024-03-01T12:00:00Z"`))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), v.Date)
	})

	t.Run("point", func(t *testing.T) {
		v, err := ParseCellValue(ColumnTypePoint, json.RawMessage(`{"x": 18.42, "y": -33.92}`))
		require.NoError(t, err)
		assert.Equal(t, Point{X: 18.42, Y: -33.92}, v.Point)
	})

	t.Run("richtext", func(t *testing.T) {
		v, err := ParseCellValue(ColumnTypeRichText, json.RawMessage(`[{"type":"paragraph"}]`))
		require.NoError(t, err)
		require.Len(t, v.RichText, 1)
		assert.Equal(t, "paragraph", v.RichText[0].Type)
	})

	t.Run("icon", func(t *testing.T) {
		v, err := ParseCellValue(ColumnTypeIcon, json.RawMessage(`"pin"`))
		require.NoError(t, err)
		assert.Equal(t, "pin", v.Icon)
	})

	t.Run("column type wins over payload shape", func(t *testing.T) {
		// A numeric payload against a string column is a mismatch, not a
		// silent write to the number table.
		_, err := ParseCellValue(ColumnTypeString, json.RawMessage(`30`))
		assert.Error(t, err)

		_, err = ParseCellValue(ColumnTypeNumber, json.RawMessage(`"thirty"`))
		assert.Error(t, err)
	})

	t.Run("malformed date string", func(t *testing.T) {
		_, err := ParseCellValue(ColumnTypeDate, json.RawMessage(`"not a date"`))
		assert.Error(t, err)
	})

	t.Run("unknown column type", func(t *testing.T) {
		_, err := ParseCellValue("geometry", json.RawMessage(`"x"`))
		assert.Error(t, err)
	})
}

func TestIconCatalog(t *testing.T) {
	icons := IconCatalog()
	require.NotEmpty(t, icons)

	for i := 1; i < len(icons); i++ {
		assert.Less(t, icons[i-1].Name, icons[i].Name, "catalog must be sorted by name")
	}

	assert.True(t, IsKnownIcon(icons[0].Name))
	assert.False(t, IsKnownIcon("definitely-not-an-icon"))
}
