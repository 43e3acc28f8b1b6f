package services

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/atlasform-io/atlasform-engine/pkg/models"
)

// geometryColumnName is the column that receives feature geometry on
// GeoJSON import.
const geometryColumnName = "location"

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Type       string                     `json:"type"`
	Geometry   *geoJSONGeometry           `json:"geometry"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type geoJSONGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// buildGeoJSONPlan turns a FeatureCollection into an import plan. Geometry
// lands in a point column; properties go through the same per-value type
// inference as CSV fields. Only Point geometry is supported; anything else
// aborts the import.
func buildGeoJSONPlan(datasetID uuid.UUID, data []byte, maxRows int) (*importPlan, error) {
	var collection geoJSONCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, fmt.Errorf("malformed geojson: %w", err)
	}
	if collection.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", collection.Type)
	}
	if len(collection.Features) > maxRows {
		return nil, fmt.Errorf("geojson has %d features, limit is %d", len(collection.Features), maxRows)
	}

	b := newPlanBuilder(datasetID)
	for i, feature := range collection.Features {
		rowID := b.addRow()

		if feature.Geometry != nil {
			if feature.Geometry.Type != "Point" {
				return nil, fmt.Errorf("feature %d: unsupported geometry type %q", i, feature.Geometry.Type)
			}
			if len(feature.Geometry.Coordinates) < 2 {
				return nil, fmt.Errorf("feature %d: point geometry needs 2 coordinates", i)
			}
			value := models.PointValue(feature.Geometry.Coordinates[0], feature.Geometry.Coordinates[1])
			if err := b.setCell(rowID, geometryColumnName, value); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
		}

		// Map iteration is unordered; sort keys so column creation order is
		// stable across imports of the same file.
		keys := make([]string, 0, len(feature.Properties))
		for key := range feature.Properties {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			value, ok, err := inferProperty(feature.Properties[key])
			if err != nil {
				return nil, fmt.Errorf("feature %d, property %q: %w", i, key, err)
			}
			if !ok {
				continue
			}
			if err := b.setCell(rowID, key, value); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
		}
	}

	return &b.plan, nil
}

// inferProperty types a GeoJSON property value. JSON numbers and booleans
// keep their type; strings run through scalar inference; null produces no
// cell; nested objects and arrays are rejected.
func inferProperty(raw json.RawMessage) (models.CellValue, bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.CellValue{}, false, fmt.Errorf("malformed value: %w", err)
	}

	switch value := v.(type) {
	case nil:
		return models.CellValue{}, false, nil
	case bool:
		return models.BooleanValue(value), true, nil
	case float64:
		return models.NumberValue(value), true, nil
	case string:
		cell, ok := inferScalar(value)
		return cell, ok, nil
	default:
		return models.CellValue{}, false, fmt.Errorf("unsupported property value %s", raw)
	}
}
